package emu

// MaxBCD is the largest value three packed BCD bytes can hold.
const MaxBCD = 999999

// ReadU8 returns 0 when m is nil so callers can read before a core is attached.
func ReadU8(m Memory, addr uint16) uint8 {
	if m == nil {
		return 0
	}
	return m.Peek(addr)
}

// ReadU16 reads a little-endian word.
func ReadU16(m Memory, addr uint16) uint16 {
	if m == nil {
		return 0
	}
	return uint16(m.Peek(addr)) | uint16(m.Peek(addr+1))<<8
}

// ReadBCD decodes three packed BCD bytes, most significant first.
// 0x01 0x23 0x45 decodes to 12345.
func ReadBCD(m Memory, addr uint16) uint32 {
	if m == nil {
		return 0
	}
	h := uint32(m.Peek(addr))
	mid := uint32(m.Peek(addr + 1))
	l := uint32(m.Peek(addr + 2))
	return (h>>4)*100000 + (h&0xF)*10000 +
		(mid>>4)*1000 + (mid&0xF)*100 +
		(l>>4)*10 + (l & 0xF)
}

// WriteBCD encodes v as three packed BCD bytes. Values above MaxBCD are clamped.
func WriteBCD(m MemoryWriter, addr uint16, v uint32) {
	if m == nil {
		return
	}
	if v > MaxBCD {
		v = MaxBCD
	}
	digits := [6]uint8{}
	for i := 5; i >= 0; i-- {
		digits[i] = uint8(v % 10)
		v /= 10
	}
	m.Poke(addr, digits[0]<<4|digits[1])
	m.Poke(addr+1, digits[2]<<4|digits[3])
	m.Poke(addr+2, digits[4]<<4|digits[5])
}
