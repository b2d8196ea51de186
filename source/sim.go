package source

import (
	"math"
	"sync"
	"time"
)

// SimSource is an in-process data provider for development and tests.
// It serves deterministic waveforms for the supplied tags and advances a
// handshake counter on every read so liveness detection sees a live beat.
type SimSource struct {
	tags    []string
	beatTag string

	mu        sync.Mutex
	handshake int
	start     time.Time
}

// NewSimSource creates a simulator for the given tag list. beatTag is
// reported via settings as the designated liveness tag.
func NewSimSource(tags []string, beatTag string) *SimSource {
	if beatTag == "" {
		beatTag = "TOHMI_handshake"
	}
	return &SimSource{
		tags:    tags,
		beatTag: beatTag,
		start:   time.Now(),
	}
}

// GetAllData returns the current simulated value set in the map shape.
func (s *SimSource) GetAllData() (interface{}, error) {
	s.mu.Lock()
	s.handshake++
	if s.handshake > 300 {
		s.handshake = 1
	}
	beat := s.handshake
	s.mu.Unlock()

	now := time.Since(s.start).Milliseconds()
	data := make(map[string]interface{}, len(s.tags)+1)

	for i, tag := range s.tags {
		data[tag] = map[string]interface{}{
			"value":     simValue(i, now),
			"timestamp": float64(now),
		}
	}

	data[s.beatTag] = map[string]interface{}{
		"value":     float64(beat),
		"timestamp": float64(now),
	}

	return data, nil
}

// GetSettings reports the designated liveness tag.
func (s *SimSource) GetSettings() (map[string]string, error) {
	return map[string]string{SettingHeartbeat: s.beatTag}, nil
}

// simValue produces a slow waveform so consecutive polls mostly see
// unchanged values, exercising the diff path realistically.
func simValue(i int, nowMs int64) float64 {
	phase := float64(nowMs/1000) / 10.0
	return math.Round(100*math.Sin(phase+float64(i)))/10 + float64(i*10)
}
