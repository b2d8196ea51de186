package engine

import (
	"strings"
	"time"
)

// BeatKind selects how value changes on the designated liveness tag are
// interpreted as beats.
type BeatKind int

const (
	// BeatGeneric treats any value change as a beat.
	BeatGeneric BeatKind = iota
	// BeatToggle is for boolean heartbeat tags; any change from the
	// previous raw value counts as a beat.
	BeatToggle
	// BeatCounter is for monotonic handshake counters; the value must be
	// numeric and non-negative, and any numeric change (including
	// wraparound) counts as a beat.
	BeatCounter
)

func (k BeatKind) String() string {
	switch k {
	case BeatToggle:
		return "toggle"
	case BeatCounter:
		return "counter"
	default:
		return "generic"
	}
}

// ClassifyBeat infers beat semantics from the tag name.
func ClassifyBeat(tagName string) BeatKind {
	lower := strings.ToLower(tagName)
	switch {
	case strings.Contains(lower, "heartbeat"):
		return BeatToggle
	case strings.Contains(lower, "handshake"):
		return BeatCounter
	default:
		return BeatGeneric
	}
}

// Liveness infers whether the upstream source is still communicating from
// the trajectory of one designated tag. State advances at most once per poll
// tick; the poll loop is the only writer.
type Liveness struct {
	kind    BeatKind
	tag     string
	timeout time.Duration
	now     func() time.Time

	lastBeat    time.Time
	hasBeat     bool
	lastRaw     interface{}
	hasRaw      bool
	lastNumeric float64
	hasNumeric  bool
}

// NewLiveness creates a detector for the given beat tag. timeout is the
// maximum allowed time since the last beat before comms are declared lost.
// now is injectable for tests; nil means time.Now.
func NewLiveness(tag string, timeout time.Duration, now func() time.Time) *Liveness {
	if now == nil {
		now = time.Now
	}
	return &Liveness{
		kind:    ClassifyBeat(tag),
		tag:     tag,
		timeout: timeout,
		now:     now,
	}
}

// Tag returns the designated beat tag name.
func (l *Liveness) Tag() string { return l.tag }

// Kind returns the classified beat semantics.
func (l *Liveness) Kind() BeatKind { return l.kind }

// Timeout returns the liveness window.
func (l *Liveness) Timeout() time.Duration { return l.timeout }

// Evaluate advances the detector with the beat tag's current raw value and
// reports whether comms are considered alive. The very first observation
// establishes the reference value and is never itself a beat.
func (l *Liveness) Evaluate(raw interface{}) bool {
	if l.detectBeat(raw) {
		l.lastBeat = l.now()
		l.hasBeat = true
	}
	return l.OK()
}

// OK reports liveness without advancing state: a beat has been observed and
// the last one is within the timeout window.
func (l *Liveness) OK() bool {
	if !l.hasBeat {
		return false
	}
	return l.now().Sub(l.lastBeat) <= l.timeout
}

func (l *Liveness) detectBeat(raw interface{}) bool {
	switch l.kind {
	case BeatCounter:
		n, ok := toFloat(raw)
		if !ok || n < 0 {
			return false
		}
		beat := l.hasNumeric && n != l.lastNumeric
		l.lastNumeric = n
		l.hasNumeric = true
		return beat

	default:
		// Toggle and generic: any change from the previous raw value.
		beat := l.hasRaw && !valueEqual(raw, l.lastRaw)
		l.lastRaw = raw
		l.hasRaw = true
		return beat
	}
}

// toFloat converts JSON-decoded numeric values to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
