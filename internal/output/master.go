package output

import (
	"sync"

	"github.com/glebovdev/voxradio/internal/device"
	"github.com/rs/zerolog/log"
)

// MasterVolume scales every level the engine requests by a user-controlled
// master percentage before it reaches the wrapped sink.
type MasterVolume struct {
	device.AudioSink

	mu        sync.Mutex
	master    int
	requested int
}

func NewMasterVolume(sink device.AudioSink, master int) *MasterVolume {
	return &MasterVolume{
		AudioSink: sink,
		master:    clampPercent(master),
		requested: 100,
	}
}

func (m *MasterVolume) SetVolume(percent int) {
	m.mu.Lock()
	m.requested = clampPercent(percent)
	level := m.levelLocked()
	m.mu.Unlock()

	m.AudioSink.SetVolume(level)
}

// SetMaster changes the master level and reapplies the last requested volume.
func (m *MasterVolume) SetMaster(percent int) {
	m.mu.Lock()
	m.master = clampPercent(percent)
	level := m.levelLocked()
	m.mu.Unlock()

	log.Debug().Msgf("Master volume %d%%, output %d%%", percent, level)
	m.AudioSink.SetVolume(level)
}

func (m *MasterVolume) Master() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

// Output is the level currently applied to the wrapped sink.
func (m *MasterVolume) Output() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levelLocked()
}

func (m *MasterVolume) levelLocked() int {
	return m.requested * m.master / 100
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}
