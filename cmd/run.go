package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/billm/ipcbench/internal/config"
	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/bench"
	"github.com/billm/ipcbench/pkg/mailbox"
	"github.com/billm/ipcbench/pkg/types"
)

// session is the per-process state shared by the send and receive commands
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	runID  types.ID
	mode   types.Mode
	role   types.Party
	status types.Status
}

// startSession loads config, initializes logging and tags the logger for this run
func startSession(role types.Party, mode types.Mode) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := initLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runID := types.GenerateID()
	log := rootLog.With(
		"run_id", runID.String(),
		"role", role.String(),
		"mechanism", mode.String(),
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	s := &session{
		cfg:   cfg,
		log:   log,
		runID: runID,
		mode:  mode,
		role:  role,
	}
	s.setStatus(types.StatusStarting)
	return s, nil
}

// setStatus records and logs a lifecycle transition
func (s *session) setStatus(status types.Status, args ...any) {
	prev := s.status
	s.status = status
	s.log.Debug("Status changed", append([]any{"from", prev, "to", status}, args...)...)
}

// openMailbox sets up the mailbox and prints the mechanism banner
func (s *session) openMailbox(out io.Writer) (*mailbox.Mailbox, error) {
	mb, err := mailbox.Open(mailbox.Options{
		Mode:   s.mode,
		Role:   s.role,
		IPC:    s.cfg.IPC,
		Logger: s.log,
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, s.mode.Title())
	return mb, nil
}

func (s *session) benchOptions(out io.Writer) bench.Options {
	return bench.Options{
		Mode:       s.mode,
		ExitMarker: s.cfg.IPC.ExitMarker,
		Capacity:   s.cfg.IPC.TextSize,
		Output:     out,
		Recorder:   bench.NewRecorder(s.role, s.mode),
		Logger:     s.log,
	}
}

// finish writes the metrics textfile, if configured, and logs the result
func (s *session) finish(rec *bench.Recorder, result bench.Result, runErr error) {
	if runErr != nil {
		s.setStatus(types.StatusError, "code", types.GetErrorCode(runErr))
	} else {
		s.setStatus(types.StatusStopped)
	}

	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := rec.WriteTextfile(path); err != nil {
			s.log.Warn("Failed to write metrics textfile", "path", path, "error", err)
		} else {
			s.log.Debug("Metrics written", "path", path)
		}
	}

	s.log.Info("Run finished",
		"messages", result.Messages,
		"failures", result.Failures,
		"total", result.Total)
}

// abandon wakes a peer that is waiting on its turn so it stops instead of
// sleeping forever. A receiver also removes the shared objects, since it owns
// their teardown.
func (s *session) abandon(mb *mailbox.Mailbox) {
	s.setStatus(types.StatusStopping)
	if err := mb.Abandon(); err != nil {
		s.log.Warn("Failed to wake peer", "error", err)
	}
	if s.role == types.Receiver {
		if err := mailbox.Purge(s.cfg.IPC); err != nil {
			s.log.Error("Failed to remove ipc objects", "error", err)
		}
	}
}

// watchSignals ends the process on SIGINT or SIGTERM. Turn waits cannot be
// interrupted, so the exchange is abandoned first; the peer then fails its
// current or next turn and exits. The returned function stops watching.
func (s *session) watchSignals(mb *mailbox.Mailbox) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			s.log.Warn("Received shutdown signal", "signal", sig)
			s.abandon(mb)
			closeLogger()
			os.Exit(130)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
