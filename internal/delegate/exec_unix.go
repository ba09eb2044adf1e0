//go:build unix

package delegate

import "golang.org/x/sys/unix"

// execve replaces the process image; the PID is kept.
var execve = unix.Exec
