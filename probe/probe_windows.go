//go:build windows

package probe

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsProbe struct {
	handle windows.Handle
}

func newPlatformProbe() Probe {
	return &windowsProbe{}
}

// FindProcess walks a CreateToolhelp32Snapshot of running processes,
// matching the short executable name case-insensitively.
func (p *windowsProbe) FindProcess(names []string) (int, bool) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, false
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snap, &entry); err != nil {
		return 0, false
	}
	for {
		exeName := windows.UTF16ToString(entry.ExeFile[:])
		for _, want := range names {
			if MatchName("windows", exeName, want) {
				return int(entry.ProcessID), true
			}
		}
		if err := windows.Process32Next(snap, &entry); err != nil {
			break
		}
	}
	return 0, false
}

// EnumerateRegions walks the process's address space with VirtualQueryEx,
// keeping committed regions that are not no-access and not guard pages.
func (p *windowsProbe) EnumerateRegions(pid int) ([]Region, bool) {
	h, err := windows.OpenProcess(
		windows.PROCESS_VM_READ|windows.PROCESS_VM_WRITE|windows.PROCESS_VM_OPERATION|windows.PROCESS_QUERY_INFORMATION,
		false, uint32(pid))
	if err != nil {
		return nil, false
	}
	p.handle = h

	var regions []Region
	var addr uintptr
	for {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQueryEx(h, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}

		eligible := mbi.State == windows.MEM_COMMIT &&
			mbi.Protect != windows.PAGE_NOACCESS &&
			mbi.Protect&windows.PAGE_GUARD == 0 &&
			(mbi.Type == memPrivate || mbi.Type == memMapped) &&
			isReadWriteProtect(mbi.Protect)

		if eligible {
			regions = append(regions, Region{Base: uint64(mbi.BaseAddress), Size: uint64(mbi.RegionSize)})
		}

		next := mbi.BaseAddress + uintptr(mbi.RegionSize)
		if next <= addr {
			break
		}
		addr = next
	}
	return regions, true
}

// Memory region type constants. x/sys/windows only defines MEM_COMMIT and
// friends in memory_windows.go, not the region-type bits VirtualQueryEx
// also reports.
const (
	memPrivate = 0x20000
	memMapped  = 0x40000
)

// isReadWriteProtect reports whether the given page-protection constant
// grants both read and write access.
func isReadWriteProtect(protect uint32) bool {
	switch protect &^ (windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE) {
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY,
		windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return true
	default:
		return false
	}
}

func (p *windowsProbe) Read(hostAddr uint64, buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.handle, uintptr(hostAddr), &buf[0], uintptr(len(buf)), &n)
	return err == nil && int(n) == len(buf)
}

func (p *windowsProbe) Write(hostAddr uint64, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	var n uintptr
	err := windows.WriteProcessMemory(p.handle, uintptr(hostAddr), &data[0], uintptr(len(data)), &n)
	return err == nil && int(n) == len(data)
}

func (p *windowsProbe) ReleaseHandles() {
	if p.handle != 0 {
		windows.CloseHandle(p.handle)
		p.handle = 0
	}
}
