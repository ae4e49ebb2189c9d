package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies the container of an input stream.
type Format int

const (
	Plain Format = iota
	Gzip
	Zstd
	LZ4
)

func (f Format) String() string {
	switch f {
	case Plain:
		return "plain"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

var (
	gzipMagic = []byte{0x1F, 0x8B}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// hasMagic reports whether r starts with magic. The read position is reset
// to the start of the stream whatever the outcome.
func hasMagic(r io.ReadSeeker, magic []byte) bool {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false
	}
	buf := make([]byte, len(magic))
	_, err := io.ReadFull(r, buf)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		return false
	}
	return err == nil && bytes.Equal(buf, magic)
}

// IsGzip reports whether r begins with the gzip magic bytes 1F 8B. The
// stream is left positioned at offset 0, so the check is repeatable.
func IsGzip(r io.ReadSeeker) bool { return hasMagic(r, gzipMagic) }

// IsZstd reports whether r begins with a zstd frame magic number.
func IsZstd(r io.ReadSeeker) bool { return hasMagic(r, zstdMagic) }

// IsLZ4 reports whether r begins with an LZ4 frame magic number.
func IsLZ4(r io.ReadSeeker) bool { return hasMagic(r, lz4Magic) }

// Detect returns the compression format of r, leaving it at offset 0.
func Detect(r io.ReadSeeker) Format {
	switch {
	case IsGzip(r):
		return Gzip
	case IsZstd(r):
		return Zstd
	case IsLZ4(r):
		return LZ4
	default:
		return Plain
	}
}

// decodedFile closes the decoder (if any) before the underlying file.
type decodedFile struct {
	io.Reader
	f       *os.File
	closeFn func() error
}

func (d *decodedFile) Close() error {
	var err error
	if d.closeFn != nil {
		err = d.closeFn()
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenInput opens path and returns a reader over its decoded contents,
// transparently decompressing gzip, zstd and LZ4 input.
func OpenInput(path string) (io.ReadCloser, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Plain, err
	}

	format := Detect(f)
	switch format {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, format, fmt.Errorf("gzip header %s: %w", path, err)
		}
		return &decodedFile{Reader: zr, f: f, closeFn: zr.Close}, format, nil
	case Zstd:
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, format, fmt.Errorf("zstd decoder %s: %w", path, err)
		}
		return &decodedFile{Reader: dec, f: f, closeFn: func() error {
			dec.Close()
			return nil
		}}, format, nil
	case LZ4:
		return &decodedFile{Reader: lz4.NewReader(f), f: f}, format, nil
	default:
		return f, format, nil
	}
}
