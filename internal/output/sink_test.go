package output

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebovdev/voxradio/internal/device"
)

func TestPercentToExponent(t *testing.T) {
	tests := []struct {
		percent  float64
		expected float64
	}{
		{0, MinVolumeDB},
		{100, 0},
		{-10, MinVolumeDB},
		{150, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("percent_%v", tt.percent), func(t *testing.T) {
			result := percentToExponent(tt.percent)
			if result != tt.expected {
				t.Errorf("percentToExponent(%v) = %v, want %v", tt.percent, result, tt.expected)
			}
		})
	}
}

func TestPercentToExponentCurve(t *testing.T) {
	p25 := percentToExponent(25)
	p50 := percentToExponent(50)
	p75 := percentToExponent(75)

	if p25 >= p50 || p50 >= p75 {
		t.Error("Volume curve should be monotonically increasing")
	}

	if p25 <= MinVolumeDB || p75 >= 0 {
		t.Error("Mid-range volumes should be between min and max")
	}
}

func TestPacketQueueSilenceWhenEmpty(t *testing.T) {
	q := newPacketQueue(2)
	samples := make([][2]float64, 16)
	for i := range samples {
		samples[i] = [2]float64{1, 1}
	}

	n, ok := q.Stream(samples)
	if n != len(samples) || !ok {
		t.Fatalf("Stream() = (%d, %v), want (%d, true)", n, ok, len(samples))
	}
	for i, s := range samples {
		if s != [2]float64{} {
			t.Fatalf("sample %d = %v, want silence", i, s)
		}
	}
}

func TestPacketQueueSpansPackets(t *testing.T) {
	q := newPacketQueue(4)
	q.packets <- []int16{16384, -16384, 0}
	q.packets <- []int16{32767}

	samples := make([][2]float64, 2)
	q.Stream(samples)
	if samples[0] != [2]float64{0.5, 0.5} || samples[1] != [2]float64{-0.5, -0.5} {
		t.Errorf("first batch = %v", samples)
	}

	samples = make([][2]float64, 4)
	q.Stream(samples)
	want := 32767.0 / 32768
	if samples[0] != [2]float64{} {
		t.Errorf("samples[0] = %v, want zero sample from first packet", samples[0])
	}
	if samples[1] != [2]float64{want, want} {
		t.Errorf("samples[1] = %v, want %v", samples[1], want)
	}
	if samples[2] != [2]float64{} || samples[3] != [2]float64{} {
		t.Errorf("tail = %v, want silence", samples[2:])
	}
	if q.pending() != 0 {
		t.Errorf("pending() = %d, want 0", q.pending())
	}
}

func TestPacketQueueReset(t *testing.T) {
	q := newPacketQueue(4)
	q.packets <- []int16{1000, 1000, 1000}
	q.packets <- []int16{2000}

	samples := make([][2]float64, 1)
	q.Stream(samples)
	q.reset()

	if q.pending() != 0 {
		t.Errorf("pending() after reset = %d, want 0", q.pending())
	}
	samples = make([][2]float64, 4)
	q.Stream(samples)
	for i, s := range samples {
		if s != [2]float64{} {
			t.Errorf("sample %d = %v, want silence after reset", i, s)
		}
	}
}

func TestMutedSinkPacesPackets(t *testing.T) {
	s := NewSink(Options{Muted: true})
	defer s.Close()

	start := time.Now()
	s.PlayPacket(device.Packet{SampleRate: 8000, FrameDurationMs: device.PacketDuration, Samples: make([]int16, 400)})
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("PlayPacket returned after %v, want about 50ms", elapsed)
	}
	if s.Queued() != 0 {
		t.Errorf("Queued() = %d, want 0 for muted sink", s.Queued())
	}
}

func TestSinkCloseReleasesPacing(t *testing.T) {
	s := NewSink(Options{Muted: true})

	done := make(chan struct{})
	go func() {
		s.PlayPacket(device.Packet{SampleRate: 8000, Samples: make([]int16, 8000*10)})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PlayPacket did not return after Close")
	}

	// Packets after Close are dropped without waiting.
	start := time.Now()
	s.PlayPacket(device.Packet{SampleRate: 8000, Samples: make([]int16, 8000)})
	if time.Since(start) > 100*time.Millisecond {
		t.Error("PlayPacket after Close should return immediately")
	}
}

func TestSinkVolumeBeforeStart(t *testing.T) {
	s := NewSink(Options{Muted: true})
	defer s.Close()

	s.SetVolume(25)
	s.ResetSampleRate()
	s.PlayPacket(device.Packet{})

	if s.volumePercent != 25 {
		t.Errorf("volumePercent = %d, want 25", s.volumePercent)
	}
}

type recordingSink struct {
	volumes []int
}

func (r *recordingSink) PlayPacket(device.Packet) {}
func (r *recordingSink) SetVolume(p int)         { r.volumes = append(r.volumes, p) }
func (r *recordingSink) ResetSampleRate()        {}

func TestMasterVolumeScalesRequests(t *testing.T) {
	rec := &recordingSink{}
	m := NewMasterVolume(rec, 50)

	m.SetVolume(80)
	m.SetMaster(100)
	m.SetMaster(0)
	m.SetMaster(150)
	m.SetVolume(-5)

	want := []int{40, 80, 0, 80, 0}
	if fmt.Sprint(rec.volumes) != fmt.Sprint(want) {
		t.Errorf("volumes = %v, want %v", rec.volumes, want)
	}
	if m.Master() != 100 {
		t.Errorf("Master() = %d, want 100", m.Master())
	}
}

func TestMasterVolumeOutputFollowsDucking(t *testing.T) {
	m := NewMasterVolume(&recordingSink{}, 80)

	m.SetVolume(75)
	if got := m.Output(); got != 60 {
		t.Errorf("Output() during playback = %d, want 60", got)
	}
	m.SetVolume(25)
	if got := m.Output(); got != 20 {
		t.Errorf("Output() when quiescent = %d, want 20", got)
	}
}
