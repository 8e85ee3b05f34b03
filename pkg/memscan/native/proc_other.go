//go:build !windows
// +build !windows

package native

import (
	"errors"

	"github.com/memscout/memscout/pkg/memscan"
)

// ErrNotSupported is returned by Attach on platforms other than
// Windows. The engine and all of its tests still build and run
// everywhere; only live process attach needs the Windows memory APIs.
var ErrNotSupported = errors.New("memory scanning is only supported on windows")

// Attach is not available on this platform.
func Attach(pid int) (*memscan.Session, error) {
	return nil, ErrNotSupported
}
