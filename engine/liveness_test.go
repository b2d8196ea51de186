package engine

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for liveness tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestClassifyBeat(t *testing.T) {
	tests := []struct {
		tag  string
		want BeatKind
	}{
		{"TOHMI_heartbeat", BeatToggle},
		{"Plant_HeartBeat_1", BeatToggle},
		{"TOHMI_handshake", BeatCounter},
		{"Line2_Handshake", BeatCounter},
		{"TOHMI_status", BeatGeneric},
		{"", BeatGeneric},
	}

	for _, tc := range tests {
		if got := ClassifyBeat(tc.tag); got != tc.want {
			t.Errorf("ClassifyBeat(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func TestLivenessToggle(t *testing.T) {
	clock := newFakeClock()
	l := NewLiveness("TOHMI_heartbeat", 1500*time.Millisecond, clock.Now)

	// First observation is never a beat.
	if l.Evaluate(float64(0)) {
		t.Error("alive after first observation")
	}

	// Unchanged value: still no beat.
	clock.Advance(250 * time.Millisecond)
	if l.Evaluate(float64(0)) {
		t.Error("alive without any beat")
	}

	// Toggle counts as a beat.
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(1)) {
		t.Error("not alive after toggle")
	}

	// Repeat keeps the old beat time but stays within the window.
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(1)) {
		t.Error("not alive within window after repeated value")
	}

	// Toggle back is a beat again.
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(0)) {
		t.Error("not alive after toggle back")
	}
}

func TestLivenessCounter(t *testing.T) {
	clock := newFakeClock()
	l := NewLiveness("TOHMI_handshake", 1500*time.Millisecond, clock.Now)

	if l.Evaluate(float64(299)) {
		t.Error("alive after first observation")
	}

	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(300)) {
		t.Error("not alive after counter increment")
	}

	// Wraparound is still a beat.
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(1)) {
		t.Error("not alive after counter wraparound")
	}

	// Stalled counter stops producing beats.
	clock.Advance(250 * time.Millisecond)
	l.Evaluate(float64(1))
	clock.Advance(1500 * time.Millisecond)
	if l.Evaluate(float64(1)) {
		t.Error("alive after counter stalled past the window")
	}
}

func TestLivenessCounterRejectsInvalid(t *testing.T) {
	clock := newFakeClock()
	l := NewLiveness("TOHMI_handshake", 1500*time.Millisecond, clock.Now)

	l.Evaluate(float64(5))
	clock.Advance(250 * time.Millisecond)

	// Negative and non-numeric values never count as beats.
	if l.Evaluate(float64(-1)) {
		t.Error("negative value counted as beat")
	}
	if l.Evaluate("broken") {
		t.Error("non-numeric value counted as beat")
	}

	// A valid change afterwards still beats against the last valid value.
	if !l.Evaluate(float64(6)) {
		t.Error("not alive after valid counter change")
	}
}

func TestLivenessGeneric(t *testing.T) {
	clock := newFakeClock()
	l := NewLiveness("TOHMI_status", 1500*time.Millisecond, clock.Now)

	l.Evaluate("idle")
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate("running") {
		t.Error("not alive after value change")
	}

	// Type changes count too.
	clock.Advance(250 * time.Millisecond)
	if !l.Evaluate(float64(3)) {
		t.Error("not alive after type change")
	}
}

func TestLivenessTimeoutBoundary(t *testing.T) {
	timeout := 1500 * time.Millisecond
	clock := newFakeClock()
	l := NewLiveness("TOHMI_handshake", timeout, clock.Now)

	l.Evaluate(float64(1))
	clock.Advance(250 * time.Millisecond)
	l.Evaluate(float64(2)) // Beat recorded here.

	clock.Advance(timeout - time.Millisecond)
	if !l.OK() {
		t.Error("not alive just inside the window")
	}

	clock.Advance(2 * time.Millisecond)
	if l.OK() {
		t.Error("alive just past the window")
	}
}

func TestLivenessNoBeatEver(t *testing.T) {
	clock := newFakeClock()
	l := NewLiveness("TOHMI_heartbeat", 1500*time.Millisecond, clock.Now)

	if l.OK() {
		t.Error("alive before any observation")
	}
	l.Evaluate(float64(0))
	if l.OK() {
		t.Error("alive after a single observation")
	}
}
