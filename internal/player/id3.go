package player

const id3HeaderSize = 10

// ID3Size returns the total length of an ID3v2 tag (header plus synchsafe
// body size) at the start of b, or 0 when b does not begin with one. The
// result may exceed len(b) when the tag spans more than the bytes at hand.
func ID3Size(b []byte) int {
	if len(b) < id3HeaderSize || b[0] != 'I' || b[1] != 'D' || b[2] != '3' {
		return 0
	}

	size := int(b[6]&0x7F)<<21 | int(b[7]&0x7F)<<14 | int(b[8]&0x7F)<<7 | int(b[9]&0x7F)
	return id3HeaderSize + size
}
