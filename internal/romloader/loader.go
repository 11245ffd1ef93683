// Package romloader reads cartridge images from disk, unpacking zip, 7z,
// gzip, tar.gz and rar archives.
package romloader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// GameBoyExtensions are the cartridge extensions accepted inside archives.
var GameBoyExtensions = []string{".gb", ".gbc"}

const maxROMSize = 8 * 1024 * 1024

var (
	ErrNoROMFile         = errors.New("no ROM file found in archive")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum size limit")
)

type Format int

const (
	FormatUnknown Format = iota
	FormatRaw
	FormatZIP
	Format7z
	FormatGzip
	FormatRAR
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatZIP:
		return "zip"
	case Format7z:
		return "7z"
	case FormatGzip:
		return "gzip"
	case FormatRAR:
		return "rar"
	default:
		return "unknown"
	}
}

var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21}
)

// ROM is a cartridge image and where it came from.
type ROM struct {
	Data   []byte
	Name   string
	Format Format
}

// Load reads the cartridge at path. Archives yield their first entry whose
// name ends in one of extensions.
func Load(path string, extensions []string) (ROM, error) {
	f, err := os.Open(path)
	if err != nil {
		return ROM{}, fmt.Errorf("open rom: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return ROM{}, fmt.Errorf("read rom header: %w", err)
	}
	format := detectFormat(header[:n], path, extensions)

	var (
		data []byte
		name string
	)
	switch format {
	case FormatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return ROM{}, fmt.Errorf("seek rom: %w", err)
		}
		data, err = limitedRead(f)
		name = filepath.Base(path)
	case FormatZIP:
		data, name, err = extractFromZIP(path, extensions)
	case Format7z:
		data, name, err = extractFrom7z(path, extensions)
	case FormatGzip:
		data, name, err = extractFromGzip(path, extensions)
	case FormatRAR:
		data, name, err = extractFromRAR(path, extensions)
	default:
		return ROM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return ROM{}, err
	}
	return ROM{Data: data, Name: name, Format: format}, nil
}

func detectFormat(header []byte, path string, extensions []string) Format {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return FormatZIP
	case bytes.HasPrefix(header, magicRAR):
		return FormatRAR
	case bytes.HasPrefix(header, magic7z):
		return Format7z
	case bytes.HasPrefix(header, magicGzip):
		return FormatGzip
	}

	lower := strings.ToLower(path)
	switch filepath.Ext(lower) {
	case ".zip":
		return FormatZIP
	case ".7z":
		return Format7z
	case ".gz", ".tgz":
		return FormatGzip
	case ".rar":
		return FormatRAR
	}
	if isROMFile(lower, extensions) {
		return FormatRaw
	}
	return FormatUnknown
}

func isROMFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxROMSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func extractFromZIP(path string, extensions []string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMFile(f.Name, extensions) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open %s in zip: %w", f.Name, err)
		}
		data, err := limitedRead(rc)
		_ = rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoROMFile
}

func extractFromGzip(path string, extensions []string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return extractFromTar(gr, extensions)
	}

	data, err := limitedRead(gr)
	if err != nil {
		return nil, "", fmt.Errorf("decompress gzip: %w", err)
	}
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		name = name[:len(name)-3]
	}
	return data, name, nil
}

func extractFromTar(r io.Reader, extensions []string) ([]byte, string, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, "", ErrNoROMFile
		}
		if err != nil {
			return nil, "", fmt.Errorf("read tar entry: %w", err)
		}
		if h.Typeflag != tar.TypeReg || !isROMFile(h.Name, extensions) {
			continue
		}
		data, err := limitedRead(tr)
		if err != nil {
			return nil, "", fmt.Errorf("read %s from tar: %w", h.Name, err)
		}
		return data, filepath.Base(h.Name), nil
	}
}
