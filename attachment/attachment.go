// Package attachment implements the lifecycle state machine that
// orchestrates process discovery, arena triangulation, and the initial
// probe read, and owns the platform probe for as long as an emulator
// stays hooked.
package attachment

import (
	"github.com/user-none/flycast-inspect/arena"
	"github.com/user-none/flycast-inspect/probe"
)

// Status is one of the four lifecycle states an Attachment can be in.
type Status int

const (
	StatusNotRunning Status = iota
	StatusNoEmu
	StatusHooked
	StatusUnhooked
)

func (s Status) String() string {
	switch s {
	case StatusNotRunning:
		return "notRunning"
	case StatusNoEmu:
		return "noEmu"
	case StatusHooked:
		return "hooked"
	case StatusUnhooked:
		return "unHooked"
	default:
		return "unknown"
	}
}

// RAMTotalSize is the size of Dreamcast main RAM.
const RAMTotalSize = 16 * 1024 * 1024

const probeSize = 16

// ProbeFactory constructs a fresh platform probe. Production code passes
// probe.New; tests substitute a stub that models a fake address space.
type ProbeFactory func() probe.Probe

// Attachment holds everything needed to talk to a hooked emulator
// process. It is not internally synchronized; callers issuing reads from
// multiple goroutines must serialize externally.
type Attachment struct {
	newProbe ProbeFactory

	probe   probe.Probe
	pid     int
	status  Status

	mainRamHostAddr uint64
	aramHostAddr    uint64
	aramAccessible  bool
}

// New constructs an Attachment that is not yet hooked to anything.
func New(newProbe ProbeFactory) *Attachment {
	return &Attachment{
		newProbe: newProbe,
		status:   StatusNotRunning,
	}
}

// Status returns the current lifecycle state.
func (a *Attachment) Status() Status {
	return a.status
}

// PID returns the pid of the hooked process, or -1 if not hooked.
func (a *Attachment) PID() int {
	if a.status != StatusHooked {
		return -1
	}
	return a.pid
}

// MainRamHostAddr returns the host address of guest main RAM, valid only
// while hooked.
func (a *Attachment) MainRamHostAddr() uint64 {
	return a.mainRamHostAddr
}

// AramHostAddr returns the host address of the AICA/ARAM window, valid
// only while hooked.
func (a *Attachment) AramHostAddr() uint64 {
	return a.aramHostAddr
}

// AramAccessible reports whether the AICA window is believed valid.
func (a *Attachment) AramAccessible() bool {
	return a.aramAccessible
}

// Hook performs the composite discovery sequence: find the process,
// enumerate its regions, triangulate the arena base, and perform a
// 16-byte probe read at the computed main-RAM address. It is re-entrant:
// any probe from a previous hook is released before a new one is
// created, so pids and handles are never leaked across emulator
// restarts.
func (a *Attachment) Hook(names []string) {
	a.releaseProbe()

	a.mainRamHostAddr = 0
	a.aramHostAddr = 0
	a.aramAccessible = false

	p := a.newProbe()
	a.probe = p

	pid, ok := p.FindProcess(names)
	if !ok {
		a.status = StatusNotRunning
		a.releaseProbe()
		return
	}
	a.pid = pid

	regions, ok := p.EnumerateRegions(pid)
	if !ok {
		a.status = StatusNoEmu
		a.releaseProbe()
		return
	}

	result, ok := arena.Triangulate(regions)
	if !ok {
		a.status = StatusNoEmu
		a.releaseProbe()
		return
	}

	a.mainRamHostAddr = result.Base + arena.OffsetMain
	a.aramHostAddr = result.Base + arena.OffsetAICA

	probeBuf := make([]byte, probeSize)
	if !p.Read(a.mainRamHostAddr, probeBuf) {
		a.status = StatusNoEmu
		a.mainRamHostAddr = 0
		a.aramHostAddr = 0
		a.releaseProbe()
		return
	}

	// AICA optimism: triangulation succeeding at all (score >= 2) is
	// treated as evidence the AICA window is usable, even when the AICA
	// offset itself cast zero votes. A later failed AICA read does not
	// retroactively change this — that is a TransferFailed, not a status
	// change (see the access facade's read/write contract).
	a.aramAccessible = true
	a.status = StatusHooked
}

// Unhook releases the active probe and returns to a torn-down state.
func (a *Attachment) Unhook() {
	a.releaseProbe()
	a.mainRamHostAddr = 0
	a.aramHostAddr = 0
	a.aramAccessible = false
	a.status = StatusUnhooked
}

func (a *Attachment) releaseProbe() {
	if a.probe != nil {
		a.probe.ReleaseHandles()
		a.probe = nil
	}
	a.pid = 0
}

// Read transfers len(buf) bytes from the guest offset into buf. It fails
// immediately, without touching the OS, unless status == hooked.
func (a *Attachment) Read(guestOffset uint32, buf []byte) bool {
	if a.status != StatusHooked {
		return false
	}
	return a.probe.Read(a.mainRamHostAddr+uint64(guestOffset), buf)
}

// Write transfers len(data) bytes from data into the guest offset. It
// fails immediately, without touching the OS, unless status == hooked.
func (a *Attachment) Write(guestOffset uint32, data []byte) bool {
	if a.status != StatusHooked {
		return false
	}
	return a.probe.Write(a.mainRamHostAddr+uint64(guestOffset), data)
}

// ReadARAM transfers len(buf) bytes from the AICA/ARAM window at the
// given offset from its own base. Fails immediately unless hooked and
// aramAccessible.
func (a *Attachment) ReadARAM(aramOffset uint32, buf []byte) bool {
	if a.status != StatusHooked || !a.aramAccessible {
		return false
	}
	return a.probe.Read(a.aramHostAddr+uint64(aramOffset), buf)
}

// WriteARAM transfers len(data) bytes into the AICA/ARAM window at the
// given offset from its own base. Fails immediately unless hooked and
// aramAccessible.
func (a *Attachment) WriteARAM(aramOffset uint32, data []byte) bool {
	if a.status != StatusHooked || !a.aramAccessible {
		return false
	}
	return a.probe.Write(a.aramHostAddr+uint64(aramOffset), data)
}
