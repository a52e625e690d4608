// Package api exposes the stable, OS-agnostic surface consumers drive:
// hook/unhook, status queries, and guest-address read/write with optional
// byte-swap. It depends on attachment for the state machine and on probe
// only through attachment.ProbeFactory.
package api

import (
	"github.com/user-none/flycast-inspect/attachment"
	"github.com/user-none/flycast-inspect/probe"
)

// RamTotalSize is the size of Dreamcast guest main RAM.
const RamTotalSize = attachment.RAMTotalSize

// Facade is the access surface handed to consumers. It owns an Attachment
// and never exposes the underlying probe.
type Facade struct {
	att *attachment.Attachment
}

// New constructs a Facade backed by the real platform probe.
func New() *Facade {
	return &Facade{att: attachment.New(func() probe.Probe { return probe.New() })}
}

// NewWithProbeFactory constructs a Facade backed by a caller-supplied probe
// factory. Tests use this to substitute a stub that models a fake address
// space.
func NewWithProbeFactory(newProbe attachment.ProbeFactory) *Facade {
	return &Facade{att: attachment.New(newProbe)}
}

// Hook drives the state machine's discovery sequence using the resolved
// process-name selector.
func (f *Facade) Hook(names []string) {
	f.att.Hook(names)
}

// Unhook tears down the current attachment.
func (f *Facade) Unhook() {
	f.att.Unhook()
}

// Status returns the current lifecycle state.
func (f *Facade) Status() attachment.Status {
	return f.att.Status()
}

// PID returns the pid of the hooked process, or -1 if not hooked.
func (f *Facade) PID() int {
	return f.att.PID()
}

// RamStart returns the host base address of guest main RAM. Diagnostic
// only; consumers issue reads/writes in guest-offset terms, not host
// addresses.
func (f *Facade) RamStart() uint64 {
	return f.att.MainRamHostAddr()
}

// AramStart returns the host base address of the AICA/ARAM window.
// Diagnostic only.
func (f *Facade) AramStart() uint64 {
	return f.att.AramHostAddr()
}

// AramAccessible reports whether the AICA window is believed valid.
func (f *Facade) AramAccessible() bool {
	return f.att.AramAccessible()
}

// IsMem2Present always returns false. The Dreamcast has no MEM2; the
// method is retained for API parity with sibling inspector tools that
// target consoles which do.
func (f *Facade) IsMem2Present() bool {
	return false
}

// RamTotalSize returns the constant size of guest main RAM.
func (f *Facade) RamTotalSize() uint32 {
	return RamTotalSize
}

// IsValidGuestAddress reports whether a32 addresses a byte inside guest
// main RAM.
func (f *Facade) IsValidGuestAddress(a32 uint32) bool {
	return a32 < RamTotalSize
}

// Read fills buf from the guest offset, byte-swapping the whole buffer
// first if swap is requested and len(buf) is 2, 4, or 8. It fails
// immediately, without touching the OS, unless hooked.
func (f *Facade) Read(offset uint32, buf []byte, swap bool) bool {
	if !f.att.Read(offset, buf) {
		return false
	}
	if swap {
		swapBuffer(buf)
	}
	return true
}

// Write sends data to the guest offset, byte-swapping a temporary copy
// first if swap is requested and len(data) is 2, 4, or 8. It fails
// immediately, without touching the OS, unless hooked.
func (f *Facade) Write(offset uint32, data []byte, swap bool) bool {
	if !swap {
		return f.att.Write(offset, data)
	}
	tmp := make([]byte, len(data))
	copy(tmp, data)
	swapBuffer(tmp)
	return f.att.Write(offset, tmp)
}

// ReadEntireRam captures all of guest main RAM into buf, which must be at
// least RamTotalSize bytes. It is a single unswapped read.
func (f *Facade) ReadEntireRam(buf []byte) bool {
	if len(buf) < int(RamTotalSize) {
		return false
	}
	return f.Read(0, buf[:RamTotalSize], false)
}

// FormatValue reads size raw bytes at offset and hands them to formatter
// along with the swap hint kind implies, honoring the same whole-buffer
// swap policy as Read/Write.
func (f *Facade) FormatValue(offset uint32, kind ValueKind, size int, base NumericBase, unsigned bool, formatter ValueFormatter) (string, bool) {
	buf := make([]byte, size)
	if !f.Read(offset, buf, kind.NeedsSwap()) {
		return "", false
	}
	return formatter.Format(buf, kind, base, unsigned), true
}

// swapBuffer reverses buf in place. Lengths outside {2,4,8} are left
// untouched per the facade's byte-swap policy.
func swapBuffer(buf []byte) {
	switch len(buf) {
	case 2, 4, 8:
	default:
		return
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}
