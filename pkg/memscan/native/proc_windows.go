package native

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/windows"

	"github.com/memscout/memscout/pkg/logflags"
	"github.com/memscout/memscout/pkg/memscan"
)

// scanAccess is the set of access rights needed to enumerate, read and
// write the memory of another process.
const scanAccess = sys.PROCESS_QUERY_INFORMATION | sys.PROCESS_VM_READ | sys.PROCESS_VM_WRITE | sys.PROCESS_VM_OPERATION

// osProcessHandle implements memscan.ProcessHandle on top of a
// kernel32 process handle.
type osProcessHandle struct {
	hProcess sys.Handle
}

var debugPrivilegeOnce sync.Once

// enableDebugPrivilege enables SeDebugPrivilege for the current
// process, which allows opening processes owned by other users.
// Failure is not fatal: processes of the same user can still be opened
// without it.
func enableDebugPrivilege() {
	logger := logflags.SessionLogger()
	var token sys.Token
	err := sys.OpenProcessToken(sys.CurrentProcess(), sys.TOKEN_ADJUST_PRIVILEGES|sys.TOKEN_QUERY, &token)
	if err != nil {
		logger.Debugf("OpenProcessToken: %v", err)
		return
	}
	defer token.Close()

	seDebug, err := sys.UTF16PtrFromString("SeDebugPrivilege")
	if err != nil {
		return
	}
	var luid sys.LUID
	if err := sys.LookupPrivilegeValue(nil, seDebug, &luid); err != nil {
		logger.Debugf("LookupPrivilegeValue: %v", err)
		return
	}

	tp := sys.Tokenprivileges{PrivilegeCount: 1}
	tp.Privileges[0] = sys.LUIDAndAttributes{Luid: luid, Attributes: sys.SE_PRIVILEGE_ENABLED}
	if err := sys.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil); err != nil {
		logger.Debugf("AdjustTokenPrivileges: %v", err)
		return
	}
	logger.Debugf("SeDebugPrivilege enabled")
}

// Attach opens the process with the given PID for memory scanning and
// returns a session over it.
func Attach(pid int) (*memscan.Session, error) {
	debugPrivilegeOnce.Do(enableDebugPrivilege)

	hProcess, err := sys.OpenProcess(scanAccess, false, uint32(pid))
	if err != nil {
		switch err {
		case sys.ERROR_INVALID_PARAMETER:
			// OpenProcess reports a pid that does not exist as an
			// invalid parameter
			return nil, memscan.ErrProcessNotFound{Pid: pid}
		case sys.ERROR_ACCESS_DENIED:
			return nil, memscan.ErrAccessDenied{Pid: pid}
		}
		return nil, fmt.Errorf("could not open process %d: %v", pid, err)
	}

	name := ""
	if exepath, err := findExePath(hProcess); err == nil {
		name = filepath.Base(exepath)
	}

	logflags.SessionLogger().Debugf("attached to pid %d (%s)", pid, name)
	return memscan.NewSession(pid, name, &osProcessHandle{hProcess: hProcess}), nil
}

// findExePath returns the executable path of the process behind p.
func findExePath(p sys.Handle) (string, error) {
	n := uint32(128)
	for {
		buf := make([]uint16, int(n))
		err := sys.QueryFullProcessImageName(p, 0, &buf[0], &n)
		switch err {
		case sys.ERROR_INSUFFICIENT_BUFFER:
			// try bigger buffer
			n *= 2
			// but stop if it gets too big
			if n > 10000 {
				return "", err
			}
		case nil:
			return syscall.UTF16ToString(buf[:n]), nil
		default:
			return "", err
		}
	}
}

func (h *osProcessHandle) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var count uintptr
	err := sys.ReadProcessMemory(h.hProcess, uintptr(addr), &buf[0], uintptr(len(buf)), &count)
	if err != nil {
		return int(count), err
	}
	if int(count) != len(buf) {
		return int(count), fmt.Errorf("read %d bytes of %d at %#x", count, len(buf), addr)
	}
	return int(count), nil
}

func (h *osProcessHandle) WriteMemory(addr uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var count uintptr
	err := sys.WriteProcessMemory(h.hProcess, uintptr(addr), &data[0], uintptr(len(data)), &count)
	if err != nil {
		return int(count), err
	}
	if int(count) != len(data) {
		return int(count), fmt.Errorf("wrote %d bytes of %d at %#x", count, len(data), addr)
	}
	return int(count), nil
}

func (h *osProcessHandle) QueryRegion(addr uint64) (memscan.Region, error) {
	var mbi sys.MemoryBasicInformation
	if err := sys.VirtualQueryEx(h.hProcess, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return memscan.Region{}, fmt.Errorf("VirtualQueryEx at %#x: %v", addr, err)
	}
	return memscan.Region{
		Base:      uint64(mbi.BaseAddress),
		AllocBase: uint64(mbi.AllocationBase),
		Size:      uint64(mbi.RegionSize),
		State:     mbi.State,
		Protect:   mbi.Protect,
		Type:      mbi.Type,
	}, nil
}

func (h *osProcessHandle) Close() error {
	return sys.CloseHandle(h.hProcess)
}
