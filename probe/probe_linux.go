//go:build linux

package probe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type linuxProbe struct {
	pid int
}

func newPlatformProbe() Probe {
	return &linuxProbe{}
}

// FindProcess scans /proc for numeric pid directories and reads each
// process's short name from /proc/<pid>/comm.
func (p *linuxProbe) FindProcess(names []string) (int, bool) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, false
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))

		for _, want := range names {
			if MatchName("linux", name, want) {
				p.pid = pid
				return pid, true
			}
		}
	}
	return 0, false
}

// EnumerateRegions parses /proc/<pid>/maps, retaining entries whose
// permission field begins with "rw".
func (p *linuxProbe) EnumerateRegions(pid int) ([]Region, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var regions []Region
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		addrRange := strings.SplitN(fields[0], "-", 2)
		if len(addrRange) != 2 {
			continue
		}
		perms := fields[1]
		if len(perms) < 2 || perms[0] != 'r' || perms[1] != 'w' {
			continue
		}

		start, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || end <= start {
			continue
		}

		regions = append(regions, Region{Base: start, Size: end - start})
	}
	if err := scanner.Err(); err != nil {
		return nil, false
	}
	return regions, true
}

func (p *linuxProbe) Read(hostAddr uint64, buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	var local unix.Iovec
	local.Base = &buf[0]
	local.SetLen(len(buf))
	remote := unix.RemoteIovec{Base: uintptr(hostAddr), Len: len(buf)}

	n, err := unix.ProcessVMReadv(p.pid, []unix.Iovec{local}, []unix.RemoteIovec{remote}, 0)
	return err == nil && n == len(buf)
}

func (p *linuxProbe) Write(hostAddr uint64, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	var local unix.Iovec
	local.Base = &data[0]
	local.SetLen(len(data))
	remote := unix.RemoteIovec{Base: uintptr(hostAddr), Len: len(data)}

	n, err := unix.ProcessVMWritev(p.pid, []unix.Iovec{local}, []unix.RemoteIovec{remote}, 0)
	return err == nil && n == len(data)
}

func (p *linuxProbe) ReleaseHandles() {
	p.pid = 0
}
