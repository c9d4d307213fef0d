//go:build linux

// ABOUTME: systemd-logind sleep inhibitor over D-Bus
// ABOUTME: Holds a "sleep:idle" block lock while audio is streaming
package platform

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	logindMethod = "org.freedesktop.login1.Manager.Inhibit"
)

// Inhibitor takes a logind inhibitor lock. The lock is the returned file
// descriptor; closing it releases the lock.
type Inhibitor struct {
	Who string
	Why string

	mu   sync.Mutex
	conn *dbus.Conn
	fd   int
}

// NewInhibitor creates an inhibitor with the given description
func NewInhibitor(who, why string) *Inhibitor {
	return &Inhibitor{Who: who, Why: why, fd: -1}
}

// Acquire asks logind for the lock. Calling it while held is a no-op.
func (i *Inhibitor) Acquire() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd >= 0 {
		return nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}

	call := conn.Object(logindDest, logindPath).Call(logindMethod, 0, "sleep:idle", i.Who, i.Why, "block")
	if call.Err != nil {
		conn.Close()
		return fmt.Errorf("logind inhibit: %w", call.Err)
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		conn.Close()
		return fmt.Errorf("logind inhibit reply: %w", err)
	}

	i.conn = conn
	i.fd = int(fd)
	return nil
}

// Release drops the lock. Safe to call when not held.
func (i *Inhibitor) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd < 0 {
		return nil
	}

	err := unix.Close(i.fd)
	i.fd = -1
	if i.conn != nil {
		i.conn.Close()
		i.conn = nil
	}
	return err
}
