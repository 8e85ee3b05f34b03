//go:build !windows
// +build !windows

package proclist

import "errors"

func listProcesses() ([]Process, error) {
	return nil, errors.New("process listing is only supported on windows")
}
