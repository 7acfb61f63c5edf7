// Package relay implements the connector relay: the live, bidirectional
// channel between broker-side connector processes and dashboard client
// sessions.
//
// One goroutine per connection runs a blocking read loop; all loops share a
// single mutex-guarded session registry. Frames from one connection are
// processed strictly in arrival order. Forwarding a frame to a peer never
// holds the registry lock across the network write: the lock covers the
// lookup, the send is best effort afterwards.
//
// The relay keeps no pending-command table and applies no timeouts. The
// caller's command_id is round-tripped unchanged as request_id, which is the
// whole correlation contract; a forwarded command the connector never answers
// produces silence, not an error.
package relay
