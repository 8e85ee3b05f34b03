package proclist

import (
	"fmt"
	"unsafe"

	sys "golang.org/x/sys/windows"
)

func listProcesses() ([]Process, error) {
	snapshot, err := sys.CreateToolhelp32Snapshot(sys.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %v", err)
	}
	defer sys.CloseHandle(snapshot)

	var entry sys.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := sys.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("Process32First: %v", err)
	}

	var procs []Process
	for {
		procs = append(procs, Process{
			Pid:     int(entry.ProcessID),
			PPid:    int(entry.ParentProcessID),
			Threads: int(entry.Threads),
			Name:    sys.UTF16ToString(entry.ExeFile[:]),
		})
		if err := sys.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return procs, nil
}
