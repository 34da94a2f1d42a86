// Package handshake implements the turn protocol that lets two independent
// processes share a single-slot mailbox without busy-waiting.
//
// A Handshake owns two named counting semaphores:
//
//   - the sender's turn, created with a count of 1 so the sender goes first
//   - the receiver's turn, created with a count of 0
//
// Each side acquires its own turn before touching the transport and, when
// done, releases the peer's turn:
//
//	turns, err := handshake.Open(handshake.Options{...})
//	if err != nil {
//	    return err
//	}
//	defer turns.Close()
//
//	if err := turns.AcquireTurn(types.Sender); err != nil {
//	    return err
//	}
//	// exclusive access to the slot
//	turns.ReleaseTurn(types.Sender) // wakes the receiver
//
// Because the sender cannot reacquire its turn until the receiver has
// released it, at most one process is inside the transport at a time, a
// message is never read before it is fully written, and a message is never
// overwritten before it is consumed.
//
// Semaphores are opened with open-or-create-if-absent semantics: whichever
// process starts first creates the name with its initial count and the other
// opens it as-is. The semaphore system call boundary is also the memory
// barrier that publishes slot writes to the peer process.
package handshake
