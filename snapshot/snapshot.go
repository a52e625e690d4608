// Package snapshot captures a one-shot dump of guest RAM to disk and
// reopens dumps other tools produced, auto-detecting the container
// format from magic bytes. A Snapshot is an inert byte buffer once
// loaded: it has no relationship back to the live attachment.
package snapshot

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/spf13/afero"

	"github.com/user-none/flycast-inspect/api"
)

// snapshotMagic identifies the native on-disk envelope.
var snapshotMagic = [4]byte{'D', 'C', 'R', 'M'}

const headerVersion = 1

// headerSize is the fixed-width binary encoding of Header, ahead of the
// gzip-compressed payload.
const headerSize = 4 + 2 + 4 + 8 + 4

var (
	magicZIP  = []byte{0x50, 0x4B, 0x03, 0x04}
	magic7z   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip = []byte{0x1F, 0x8B}
	magicRAR  = []byte{0x52, 0x61, 0x72, 0x21}
)

// ErrFormatUnrecognized is returned when no magic bytes matched.
var ErrFormatUnrecognized = errors.New("snapshot: unrecognized container format")

// ErrCorrupt is returned when the decoded payload's CRC32 does not match
// the header.
var ErrCorrupt = errors.New("snapshot: payload checksum mismatch")

// ErrNotCaptured is returned by CaptureSnapshot when the facade is not
// hooked.
var ErrNotCaptured = errors.New("snapshot: facade is not hooked")

// Header is written at the start of every capture.
type Header struct {
	Version    uint16
	GuestSize  uint32
	CapturedAt int64
	CRC32      uint32
}

// Snapshot is a decoded, in-memory capture of guest RAM.
type Snapshot struct {
	Header  Header
	Payload []byte
}

// CaptureSnapshot reads all of guest RAM through facade and writes it to w
// as a versioned, gzip-compressed envelope. It fails without writing
// anything if facade is not currently hooked.
func CaptureSnapshot(facade *api.Facade, w io.Writer) error {
	buf := make([]byte, api.RamTotalSize)
	if !facade.ReadEntireRam(buf) {
		return ErrNotCaptured
	}

	h := Header{
		Version:    headerVersion,
		GuestSize:  uint32(len(buf)),
		CapturedAt: time.Now().Unix(),
		CRC32:      crc32.ChecksumIEEE(buf),
	}

	if err := writeHeader(w, h); err != nil {
		return fmt.Errorf("snapshot: failed to write header: %w", err)
	}

	gw := gzip.NewWriter(w)
	if _, err := gw.Write(buf); err != nil {
		return fmt.Errorf("snapshot: failed to compress payload: %w", err)
	}
	return gw.Close()
}

func writeHeader(w io.Writer, h Header) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, struct {
		Version    uint16
		GuestSize  uint32
		CapturedAt int64
		CRC32      uint32
	}{h.Version, h.GuestSize, h.CapturedAt, h.CRC32})
}

// OpenSnapshot reads path from fsys, auto-detects its container format,
// and returns the decoded Snapshot. A mismatched CRC32 is a hard error: a
// torn or hand-edited dump must not be silently accepted.
func OpenSnapshot(fsys afero.Fs, path string) (*Snapshot, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to read %s: %w", path, err)
	}
	return decodeContainer(raw)
}

// decodeContainer detects the outer container from magic bytes and
// unwraps it to the native envelope before parsing the header/payload.
func decodeContainer(raw []byte) (*Snapshot, error) {
	switch {
	case len(raw) >= 4 && bytes.Equal(raw[:4], snapshotMagic[:]):
		return parseNative(raw)

	case len(raw) >= 2 && bytes.HasPrefix(raw, magicGzip):
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to open gzip container: %w", err)
		}
		defer gr.Close()
		inner, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to inflate gzip container: %w", err)
		}
		return parseNative(inner)

	case len(raw) >= 4 && bytes.HasPrefix(raw, magicZIP):
		return decodeFromZIP(raw)

	case len(raw) >= 6 && bytes.HasPrefix(raw, magic7z):
		return decodeFrom7z(raw)

	case len(raw) >= 4 && bytes.HasPrefix(raw, magicRAR):
		return decodeFromRAR(raw)

	default:
		return nil, ErrFormatUnrecognized
	}
}

func decodeFromZIP(raw []byte) (*Snapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open zip container: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to open %s in zip: %w", f.Name, err)
		}
		inner, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to read %s from zip: %w", f.Name, err)
		}
		return parseNative(inner)
	}
	return nil, ErrFormatUnrecognized
}

func decodeFrom7z(raw []byte) (*Snapshot, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open 7z container: %w", err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to open %s in 7z: %w", f.Name, err)
		}
		inner, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to read %s from 7z: %w", f.Name, err)
		}
		return parseNative(inner)
	}
	return nil, ErrFormatUnrecognized
}

func decodeFromRAR(raw []byte) (*Snapshot, error) {
	r, err := rardecode.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open rar container: %w", err)
	}
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to read rar entry: %w", err)
		}
		if header.IsDir {
			continue
		}
		inner, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to read %s from rar: %w", header.Name, err)
		}
		return parseNative(inner)
	}
	return nil, ErrFormatUnrecognized
}

func parseNative(raw []byte) (*Snapshot, error) {
	if len(raw) < headerSize || !bytes.Equal(raw[:4], snapshotMagic[:]) {
		return nil, ErrFormatUnrecognized
	}

	var fields struct {
		Version    uint16
		GuestSize  uint32
		CapturedAt int64
		CRC32      uint32
	}
	if err := binary.Read(bytes.NewReader(raw[4:headerSize]), binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("snapshot: failed to decode header: %w", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(raw[headerSize:]))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open payload stream: %w", err)
	}
	defer gr.Close()

	payload, err := io.ReadAll(io.LimitReader(gr, int64(fields.GuestSize)+1))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to inflate payload: %w", err)
	}
	if uint32(len(payload)) != fields.GuestSize {
		return nil, ErrCorrupt
	}
	if crc32.ChecksumIEEE(payload) != fields.CRC32 {
		return nil, ErrCorrupt
	}

	return &Snapshot{
		Header: Header{
			Version:    fields.Version,
			GuestSize:  fields.GuestSize,
			CapturedAt: fields.CapturedAt,
			CRC32:      fields.CRC32,
		},
		Payload: payload,
	}, nil
}

// ReadAt returns a copy of length bytes starting at offset within the
// decoded payload, honoring the same guest-address bounds as
// api.Facade.IsValidGuestAddress.
func (s *Snapshot) ReadAt(offset uint32, length int) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if length < 0 || end > uint64(len(s.Payload)) {
		return nil, fmt.Errorf("snapshot: read [%d, %d) out of range for %d-byte payload", offset, end, len(s.Payload))
	}
	out := make([]byte, length)
	copy(out, s.Payload[offset:end])
	return out, nil
}
