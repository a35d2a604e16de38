package stream

import "bytes"

// Format is the container guessed from the first bytes of a stream. It is
// used for diagnostics only.
type Format int

const (
	FormatUnknown Format = iota
	FormatID3
	FormatMPEG
	FormatWAV
	FormatFLAC
	FormatOgg
)

func (f Format) String() string {
	switch f {
	case FormatID3:
		return "MP3 (ID3)"
	case FormatMPEG:
		return "MP3"
	case FormatWAV:
		return "WAV"
	case FormatFLAC:
		return "FLAC"
	case FormatOgg:
		return "OGG"
	default:
		return "unknown"
	}
}

// Sniff classifies p by its magic bytes.
func Sniff(p []byte) Format {
	switch {
	case bytes.HasPrefix(p, []byte("ID3")):
		return FormatID3
	case len(p) >= 2 && p[0] == 0xFF && p[1]&0xE0 == 0xE0:
		return FormatMPEG
	case bytes.HasPrefix(p, []byte("RIFF")):
		return FormatWAV
	case bytes.HasPrefix(p, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(p, []byte("OggS")):
		return FormatOgg
	default:
		return FormatUnknown
	}
}
