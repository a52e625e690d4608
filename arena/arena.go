// Package arena implements the OS-independent triangulation algorithm
// that infers the guest-memory arena's host base address from a snapshot
// of virtual memory regions. It has no dependency on any platform probe
// and no side effects; it is pure function over a region list.
package arena

import (
	"sort"

	"github.com/user-none/flycast-inspect/probe"
)

// Fixed offsets from the arena base at which the emulator places its
// guest-memory windows. These are inherent to the emulator's own
// virtual-memory layout and are the only fingerprint triangulation uses.
const (
	OffsetVRAM = 0x0400_0000
	OffsetMain = 0x0C00_0000
	OffsetAICA = 0x2000_0000
)

// Result is the outcome of a successful triangulation.
type Result struct {
	Base  uint64
	Score int // 2 or 3; see Triangulate.
}

type votes struct {
	vram, main, aica int
}

// Triangulate infers the arena base from regions using the multi-offset
// vote algorithm: every region casts one hypothesis vote per known
// offset, candidates are gated on both VRAM and MAIN falling inside some
// observed region, and the surviving candidate with the highest score
// wins ties by ascending base address for deterministic results.
func Triangulate(regions []probe.Region) (Result, bool) {
	candidates := make(map[uint64]*votes)

	addVote := func(base uint64, apply func(*votes)) {
		v, ok := candidates[base]
		if !ok {
			v = &votes{}
			candidates[base] = v
		}
		apply(v)
	}

	for _, r := range regions {
		addVote(r.Base-OffsetVRAM, func(v *votes) { v.vram++ })
		addVote(r.Base-OffsetMain, func(v *votes) { v.main++ })
		addVote(r.Base-OffsetAICA, func(v *votes) { v.aica++ })
	}

	bases := make([]uint64, 0, len(candidates))
	for base := range candidates {
		bases = append(bases, base)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })

	best := Result{}
	found := false
	for _, base := range bases {
		if base == 0 {
			continue
		}

		vramAddr := base + OffsetVRAM
		mainAddr := base + OffsetMain
		if !inAnyRegion(mainAddr, regions) || !inAnyRegion(vramAddr, regions) {
			continue
		}

		v := candidates[base]
		score := boolToInt(v.vram > 0) + boolToInt(v.main > 0) + boolToInt(v.aica > 0)
		if score < 2 {
			continue
		}

		if !found || score > best.Score {
			best = Result{Base: base, Score: score}
			found = true
		}
	}

	return best, found
}

func inAnyRegion(addr uint64, regions []probe.Region) bool {
	for _, r := range regions {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
