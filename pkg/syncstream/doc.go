// ABOUTME: Sync-stream player runtime
// ABOUTME: Connection, reconnect, heartbeat, buffering and playback for one server
// Package syncstream plays audio from a sync-stream server.
//
// A Player owns one session at a time. While running, a session keeps a
// WebSocket connection open (reconnecting with capped exponential
// backoff), decodes incoming audio messages into a bounded drop-oldest
// buffer and drains that buffer on a dedicated playback goroutine into a
// blocking audio output.
//
// Example:
//
//	player, err := syncstream.NewPlayer(syncstream.Config{
//	    Sink: output.NewOto(),
//	    OnStatus: func(s syncstream.Status) {
//	        fmt.Println(s.Text)
//	    },
//	})
//	err = player.Start("192.168.1.20", 8765)
//	...
//	err = player.Stop()
package syncstream
