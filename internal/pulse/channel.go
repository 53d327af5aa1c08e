package pulse

import "context"

// Channel is a pulse generator. Implementations own a bounded symbol memory:
// Write accepts as many symbols as fit and returns the count, and Flush
// clocks out everything accepted so far.
type Channel interface {
	// Resolution is the channel clock in ticks per second.
	Resolution() uint32
	// Write queues symbols and returns how many were accepted.
	Write(symbols []Symbol) (int, error)
	// Flush blocks until every queued symbol is on the wire or ctx is done.
	Flush(ctx context.Context) error
	// Halt discards queued symbols and leaves the line low.
	Halt() error
	Close() error
}
