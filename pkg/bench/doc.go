// Package bench runs the two halves of the benchmark: the Sender streams
// input lines through a mailbox and the Receiver prints what arrives. Both
// time only the transport call and report the accumulated total on exit.
package bench
