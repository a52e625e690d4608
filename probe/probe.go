// Package probe implements the per-OS half of the attachment core: finding
// the emulator process, walking its virtual address space, and moving bytes
// across the process boundary. Each supported OS gets its own build-tagged
// file implementing the same Probe interface; nothing here inherits from
// anything else.
package probe

import (
	"os"
	"runtime"
	"strings"
)

// EnvProcessName is the sole environment override for the target process
// name. When set and non-empty it replaces the per-OS default name set.
const EnvProcessName = "FME_FLYCAST_PROCESS_NAME"

// Region is a half-open host-virtual byte span that was committed,
// readable, and writable in the target process at the moment it was
// observed. Regions are snapshots: nothing here is cached across calls.
type Region struct {
	Base uint64
	Size uint64
}

// End returns the exclusive upper bound of the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// Contains reports whether addr falls within [Base, Base+Size).
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.End()
}

// Probe is the capability set every platform implementation provides.
// There is no shared state between variants; a Probe is constructed fresh
// for every hook attempt.
type Probe interface {
	// FindProcess returns the pid of the first process whose short name
	// matches one of names. The second return is false if enumeration
	// itself failed or no process matched.
	FindProcess(names []string) (pid int, ok bool)

	// EnumerateRegions walks the target's virtual address space and
	// returns every committed, readable+writable mapping. A fresh call
	// always produces a fresh snapshot.
	EnumerateRegions(pid int) ([]Region, bool)

	// Read transfers exactly len(buf) bytes from hostAddr in the target
	// process into buf. A partial transfer is reported as failure.
	Read(hostAddr uint64, buf []byte) bool

	// Write transfers exactly len(data) bytes from data into hostAddr in
	// the target process. A partial transfer is reported as failure.
	Write(hostAddr uint64, data []byte) bool

	// ReleaseHandles releases any OS-level handle or port acquired
	// during FindProcess/EnumerateRegions/Read/Write. Safe to call on a
	// Probe that never successfully opened anything.
	ReleaseHandles()
}

// defaultNames returns the built-in per-OS candidate process names, used
// when no override is supplied.
func defaultNames(goos string) []string {
	switch goos {
	case "windows":
		return []string{"flycast.exe"}
	case "darwin":
		return []string{"Flycast", "flycast", "flycast-qt", "flycast-qt6"}
	default: // linux and other unix-likes
		return []string{"flycast", "flycast-qt", "flycast-qt6"}
	}
}

// DefaultNames returns the built-in candidate process names for the
// running OS.
func DefaultNames() []string {
	return defaultNames(runtime.GOOS)
}

// ResolveNames returns the name selector to pass to FindProcess: the
// explicit override if non-empty, otherwise the per-OS default set.
func ResolveNames(override string) []string {
	if override != "" {
		return []string{override}
	}
	return DefaultNames()
}

// EnvOverride reads the process-name override from the environment. An
// empty string means "no override" — callers fall back to ResolveNames'
// default-set behavior.
func EnvOverride() string {
	return strings.TrimSpace(os.Getenv(EnvProcessName))
}

// MatchName reports whether candidate matches name under the comparison
// rule for goos: case-insensitive on Windows, exact everywhere else.
func MatchName(goos, candidate, name string) bool {
	if goos == "windows" {
		return strings.EqualFold(candidate, name)
	}
	return candidate == name
}

// New constructs the platform-appropriate Probe for the running OS.
func New() Probe {
	return newPlatformProbe()
}
