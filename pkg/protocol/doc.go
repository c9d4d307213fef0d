// ABOUTME: Sync-stream wire protocol package
// ABOUTME: Defines protocol messages, the JSON codec and the WebSocket transport
// Package protocol implements the sync-stream wire protocol.
//
// Messages are flat JSON text frames discriminated by "type". Clients send
// sync_request and ping; servers send init, audio, pong, sync,
// sync_response and global_sync. Unknown types decode without error.
//
// Example:
//
//	conn, err := protocol.Dial(ctx, "192.168.1.20", protocol.DefaultPort, opts)
//	err = conn.Send(protocol.NewSyncRequest())
//	raw, err := conn.Receive()
//	msg, err := protocol.Decode(raw)
package protocol
