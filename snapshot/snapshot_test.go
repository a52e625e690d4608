package snapshot

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/user-none/flycast-inspect/api"
	"github.com/user-none/flycast-inspect/probe"
)

// stubProbe is a fake address space like the ones used by the api and
// attachment packages' own tests, reproduced here to keep snapshot's
// tests self-contained. Unlike those, its Read also returns the bytes of
// earlier writes that overlap the requested range, so a whole-RAM read
// sees data written at any offset.
type stubProbe struct {
	regions []probe.Region
	memory  map[uint64][]byte
}

func newHookedFacade(t *testing.T) *api.Facade {
	t.Helper()
	const base = 0x1_0000_0000
	stub := &stubProbe{
		regions: []probe.Region{
			{Base: base + 0x0400_0000, Size: 0x800000},
			{Base: base + 0x0C00_0000, Size: 0x1000000},
			{Base: base + 0x2000_0000, Size: 0x200000},
		},
		memory: make(map[uint64][]byte),
	}
	f := api.NewWithProbeFactory(func() probe.Probe { return stub })
	f.Hook(probe.DefaultNames())
	if f.Status().String() != "hooked" {
		t.Fatalf("Status() = %v, want hooked", f.Status())
	}
	return f
}

func (s *stubProbe) FindProcess(names []string) (int, bool) { return 7, true }

func (s *stubProbe) EnumerateRegions(pid int) ([]probe.Region, bool) {
	return s.regions, true
}

func (s *stubProbe) Read(hostAddr uint64, buf []byte) bool {
	for i := range buf {
		buf[i] = 0
	}
	end := hostAddr + uint64(len(buf))
	for addr, src := range s.memory {
		lo, hi := addr, addr+uint64(len(src))
		if lo < hostAddr {
			lo = hostAddr
		}
		if hi > end {
			hi = end
		}
		if lo < hi {
			copy(buf[lo-hostAddr:hi-hostAddr], src[lo-addr:hi-addr])
		}
	}
	return true
}

func (s *stubProbe) Write(hostAddr uint64, data []byte) bool {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.memory[hostAddr] = cp
	return true
}

func (s *stubProbe) ReleaseHandles() {}

func TestCaptureThenOpenSnapshotRoundTrips(t *testing.T) {
	facade := newHookedFacade(t)
	facade.Write(0x10, []byte{0xAA, 0xBB, 0xCC, 0xDD}, false)

	var buf bytes.Buffer
	if err := CaptureSnapshot(facade, &buf); err != nil {
		t.Fatalf("CaptureSnapshot failed: %v", err)
	}

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/dump.dcram", buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := OpenSnapshot(fsys, "/dump.dcram")
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	if snap.Header.GuestSize != api.RamTotalSize {
		t.Errorf("GuestSize = %d, want %d", snap.Header.GuestSize, api.RamTotalSize)
	}

	got, err := snap.ReadAt(0x10, 4)
	if err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadAt(0x10,4) = %v, want %v", got, want)
	}
}

func TestCaptureSnapshotFailsWithoutHook(t *testing.T) {
	facade := api.New()
	var buf bytes.Buffer
	if err := CaptureSnapshot(facade, &buf); err != ErrNotCaptured {
		t.Errorf("CaptureSnapshot error = %v, want %v", err, ErrNotCaptured)
	}
}

func TestOpenSnapshotCorruptPayloadCRC(t *testing.T) {
	facade := newHookedFacade(t)

	var buf bytes.Buffer
	if err := CaptureSnapshot(facade, &buf); err != nil {
		t.Fatalf("CaptureSnapshot failed: %v", err)
	}

	raw := buf.Bytes()
	// Flip a byte inside the gzip payload region, well past the header.
	flipped := make([]byte, len(raw))
	copy(flipped, raw)
	flipped[len(flipped)-1] ^= 0xFF

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/dump.dcram", flipped, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenSnapshot(fsys, "/dump.dcram"); err == nil {
		t.Fatal("expected an error opening a snapshot with a flipped byte")
	}
}

func TestOpenSnapshotUnrecognizedFormat(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/junk.bin", []byte("not a snapshot"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenSnapshot(fsys, "/junk.bin"); err != ErrFormatUnrecognized {
		t.Errorf("OpenSnapshot error = %v, want %v", err, ErrFormatUnrecognized)
	}
}

func TestOpenSnapshotFromZIPContainer(t *testing.T) {
	facade := newHookedFacade(t)

	var native bytes.Buffer
	if err := CaptureSnapshot(facade, &native); err != nil {
		t.Fatalf("CaptureSnapshot failed: %v", err)
	}

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	entry, err := zw.Create("capture.dcram")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write(native.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/dump.zip", zipBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := OpenSnapshot(fsys, "/dump.zip")
	if err != nil {
		t.Fatalf("OpenSnapshot from zip failed: %v", err)
	}
	if snap.Header.GuestSize != api.RamTotalSize {
		t.Errorf("GuestSize = %d, want %d", snap.Header.GuestSize, api.RamTotalSize)
	}
}

// countingFs wraps afero.Fs to count Open calls, so the cache test can
// verify a second Open for the same path does not touch the filesystem.
type countingFs struct {
	afero.Fs
	opens int
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens++
	return c.Fs.Open(name)
}

func TestCacheReturnsSamePointerWithoutReopening(t *testing.T) {
	facade := newHookedFacade(t)
	var buf bytes.Buffer
	if err := CaptureSnapshot(facade, &buf); err != nil {
		t.Fatalf("CaptureSnapshot failed: %v", err)
	}

	base := afero.NewMemMapFs()
	if err := afero.WriteFile(base, "/dump.dcram", buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	counting := &countingFs{Fs: base}

	cache, err := NewCache(counting, 4)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	first, err := cache.Open("/dump.dcram")
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	opensAfterFirst := counting.opens

	second, err := cache.Open("/dump.dcram")
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}

	if first != second {
		t.Error("expected the second Open to return the identical cached pointer")
	}
	if counting.opens != opensAfterFirst {
		t.Errorf("second Open touched the filesystem: opens went from %d to %d", opensAfterFirst, counting.opens)
	}
}
