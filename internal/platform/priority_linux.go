//go:build linux

// ABOUTME: Thread priority control on Linux
// ABOUTME: Lowers the niceness of the calling OS thread via setpriority
package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// playbackNice is the niceness requested for the audio thread
const playbackNice = -10

// RaiseThreadPriority raises the scheduling priority of the calling OS
// thread. The caller must have locked its goroutine to the thread.
// Without CAP_SYS_NICE this fails with EACCES.
func RaiseThreadPriority() error {
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, playbackNice); err != nil {
		return fmt.Errorf("setpriority tid %d: %w", tid, err)
	}
	return nil
}
