// Package mailbox pairs a System V transport with the turn handshake.
//
// A Mailbox is the only way to reach the transport: Send and Receive take
// the caller's turn, move exactly one message and hand the turn to the
// peer. The receiver is the last process to touch the shared objects, so
// closing a receiver mailbox also removes the queue or region and unlinks
// both semaphore names.
//
// Mailbox layout:
//
//	sender                         receiver
//	  AcquireTurn(Sender)             AcquireTurn(Receiver)
//	  Put  <- timed                   Get  <- timed
//	  ReleaseTurn(Sender) ----------> ...
//	  ... <-------------------------- ReleaseTurn(Receiver)
package mailbox
