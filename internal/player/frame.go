package player

import "errors"

var (
	errShortHeader = errors.New("frame header too short")
	errNoSync      = errors.New("invalid frame sync")
	errNotLayer3   = errors.New("not an MPEG layer III frame")
	errBadHeader   = errors.New("reserved or free-format header field")
)

// MPEG audio versions as encoded in the header's version bits.
const (
	mpeg25 = 0
	mpeg2  = 2
	mpeg1  = 3
)

// Layer III bitrates in kbit/s, indexed by the header's bitrate index.
var (
	bitratesV1 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitratesV2 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

var sampleRates = map[int][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

// FrameHeader is the decoded 4-byte header of an MPEG layer III frame.
type FrameHeader struct {
	Version    int
	Bitrate    int // bit/s
	SampleRate int
	Padding    int
	Channels   int
	// FrameSize is the length of the whole frame, header included.
	FrameSize int
	// Samples is the number of PCM samples per channel the frame decodes to.
	Samples int
}

// ParseFrameHeader decodes the frame header at the start of b.
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < 4 {
		return FrameHeader{}, errShortHeader
	}
	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return FrameHeader{}, errNoSync
	}

	version := int(b[1]>>3) & 0x03
	layer := int(b[1]>>1) & 0x03
	if version == 1 {
		return FrameHeader{}, errBadHeader
	}
	if layer != 1 {
		return FrameHeader{}, errNotLayer3
	}

	bitrateIndex := int(b[2]>>4) & 0x0F
	rateIndex := int(b[2]>>2) & 0x03
	if bitrateIndex == 0 || bitrateIndex == 15 || rateIndex == 3 {
		return FrameHeader{}, errBadHeader
	}

	h := FrameHeader{
		Version:    version,
		SampleRate: sampleRates[version][rateIndex],
		Padding:    int(b[2]>>1) & 0x01,
		Channels:   2,
	}
	if b[3]>>6 == 3 {
		h.Channels = 1
	}

	if version == mpeg1 {
		h.Bitrate = bitratesV1[bitrateIndex] * 1000
		h.FrameSize = 144*h.Bitrate/h.SampleRate + h.Padding
		h.Samples = 1152
	} else {
		h.Bitrate = bitratesV2[bitrateIndex] * 1000
		h.FrameSize = 72*h.Bitrate/h.SampleRate + h.Padding
		h.Samples = 576
	}
	return h, nil
}

// FindFrame returns the offset of the first byte in data at or after start
// that begins a parseable frame header, or -1.
func FindFrame(data []byte, start int) (int, FrameHeader) {
	for i := start; i < len(data)-3; i++ {
		if data[i] != 0xFF || data[i+1]&0xE0 != 0xE0 {
			continue
		}
		if h, err := ParseFrameHeader(data[i:]); err == nil {
			return i, h
		}
	}
	return -1, FrameHeader{}
}
