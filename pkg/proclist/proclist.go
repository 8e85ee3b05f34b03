// Package proclist enumerates the processes running on the machine so
// a user can find something to attach to.
package proclist

import (
	"sort"
	"strings"
)

// Process describes one running process.
type Process struct {
	Pid     int
	PPid    int
	Threads int
	Name    string
}

// List returns all processes visible to the caller, sorted by pid.
func List() ([]Process, error) {
	procs, err := listProcesses()
	if err != nil {
		return nil, err
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid < procs[j].Pid })
	return procs, nil
}

// FindByName returns the processes whose executable name contains
// query, ignoring case.
func FindByName(query string) ([]Process, error) {
	procs, err := List()
	if err != nil {
		return nil, err
	}
	return filterByName(procs, query), nil
}

func filterByName(procs []Process, query string) []Process {
	query = strings.ToLower(query)
	matched := make([]Process, 0, len(procs))
	for _, p := range procs {
		if strings.Contains(strings.ToLower(p.Name), query) {
			matched = append(matched, p)
		}
	}
	return matched
}
