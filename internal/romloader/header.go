package romloader

import "strings"

// Cartridge header layout.
const (
	headerTitleStart    = 0x134
	headerTitleEnd      = 0x144
	headerChecksumStart = 0x134
	headerChecksumEnd   = 0x14D
	headerSize          = 0x150
)

// Title returns the upper-case cartridge title, or "" for images too short to
// carry a header.
func (r ROM) Title() string {
	if len(r.Data) < headerSize {
		return ""
	}
	raw := r.Data[headerTitleStart:headerTitleEnd]
	var b strings.Builder
	for _, c := range raw {
		if c == 0 || c >= 0x80 {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// HeaderChecksumOK verifies the byte at 0x14D the way the boot ROM does.
func (r ROM) HeaderChecksumOK() bool {
	if len(r.Data) < headerSize {
		return false
	}
	var x uint8
	for _, c := range r.Data[headerChecksumStart:headerChecksumEnd] {
		x = x - c - 1
	}
	return x == r.Data[headerChecksumEnd]
}
