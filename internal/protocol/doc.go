// Package protocol defines the tagged JSON message catalogue spoken on the
// relay's two WebSocket endpoints.
//
// Every frame is an object with a "type" tag. The relay never rewrites
// correlation tokens: a TRADE_COMMAND's command_id becomes the forwarded
// frame's request_id byte-for-byte, and synthesized ERROR replies carry the
// same command_id back to the caller.
package protocol
