package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"
)

// FrameInfo describes the PCM produced by one decoded frame.
type FrameInfo struct {
	SampleRate int
	Channels   int
	// OutputSamples counts interleaved samples across all channels.
	OutputSamples int
}

// FrameDecoder turns one complete MP3 frame into interleaved 16-bit PCM.
// Implementations may keep state between frames (the layer III bit
// reservoir); Reset discards it.
type FrameDecoder interface {
	Decode(frame []byte) ([]int16, FrameInfo, error)
	Reset()
}

// frameFeed hands go-mp3 exactly one frame at a time.
type frameFeed struct {
	r bytes.Reader
}

func (f *frameFeed) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

// MP3Decoder is the go-mp3 backed FrameDecoder. go-mp3 always emits
// 16-bit little-endian stereo, so Channels is 2 regardless of the source.
type MP3Decoder struct {
	feed frameFeed
	dec  *mp3.Decoder
	pcm  []byte
}

func NewMP3Decoder() *MP3Decoder {
	return &MP3Decoder{}
}

func (d *MP3Decoder) Decode(frame []byte) (samples []int16, info FrameInfo, err error) {
	h, err := ParseFrameHeader(frame)
	if err != nil {
		return nil, FrameInfo{}, err
	}
	if len(frame) < h.FrameSize {
		return nil, FrameInfo{}, fmt.Errorf("truncated frame: have %d of %d bytes", len(frame), h.FrameSize)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Debug().Msgf("mp3 decoder panic recovered: %v", r)
			d.dec = nil
			samples, info, err = nil, FrameInfo{}, fmt.Errorf("corrupt frame: %v", r)
		}
	}()

	d.feed.r.Reset(frame[:h.FrameSize])
	defer d.feed.r.Reset(nil)

	if d.dec == nil {
		dec, err := mp3.NewDecoder(&d.feed)
		if err != nil {
			return nil, FrameInfo{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
		}
		d.dec = dec
	}

	need := h.Samples * 4
	if cap(d.pcm) < need {
		d.pcm = make([]byte, need)
	}
	pcm := d.pcm[:need]

	if _, err := io.ReadFull(d.dec, pcm); err != nil {
		d.dec = nil
		return nil, FrameInfo{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	samples = make([]int16, need/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return samples, FrameInfo{
		SampleRate:    h.SampleRate,
		Channels:      2,
		OutputSamples: len(samples),
	}, nil
}

// Reset drops the bit reservoir so the next frame starts a fresh stream.
func (d *MP3Decoder) Reset() {
	d.dec = nil
	d.feed.r.Reset(nil)
}
