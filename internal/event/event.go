// Package event defines the input-event values injected into a simulated
// display: pointer events, key events, and the uptime clock that stamps them.
package event

import "time"

// PointerAction identifies what a pointer event reports.
type PointerAction uint8

const (
	// PointerDown is the initial press.
	PointerDown PointerAction = iota + 1
	// PointerUp is the release.
	PointerUp
	// PointerMove is a movement while pressed.
	PointerMove
	// PointerCancel aborts the current gesture.
	PointerCancel
	// PointerOutside notifies a window of a press outside its bounds.
	// Never injected directly; synthesized during routing.
	PointerOutside
)

func (a PointerAction) String() string {
	switch a {
	case PointerDown:
		return "down"
	case PointerUp:
		return "up"
	case PointerMove:
		return "move"
	case PointerCancel:
		return "cancel"
	case PointerOutside:
		return "outside"
	default:
		return "unknown"
	}
}

// ParsePointerAction maps a script-level action name to its value.
func ParsePointerAction(name string) (PointerAction, bool) {
	switch name {
	case "down":
		return PointerDown, true
	case "up":
		return PointerUp, true
	case "move":
		return PointerMove, true
	case "cancel":
		return PointerCancel, true
	case "outside":
		return PointerOutside, true
	default:
		return 0, false
	}
}

// KeyAction identifies the direction of a key event.
type KeyAction uint8

const (
	// KeyDown is a key press.
	KeyDown KeyAction = iota + 1
	// KeyUp is a key release.
	KeyUp
)

func (a KeyAction) String() string {
	switch a {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	default:
		return "unknown"
	}
}

// Meta is the modifier state attached to a key event.
type Meta uint16

const (
	// MetaShift marks a shifted key press.
	MetaShift Meta = 1 << 0
)

// Pointer is a single-pointer input event. Coordinates are in display space
// until routing translates a delivered copy into window-local space.
//
// Pointer is a value type: routing and retries work on copies, so the
// caller's event is never mutated.
type Pointer struct {
	Action    PointerAction `json:"action"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	DownTime  time.Duration `json:"down_time"`
	EventTime time.Duration `json:"event_time"`
}

// Offset returns a copy of p translated by (dx, dy).
func (p Pointer) Offset(dx, dy float64) Pointer {
	p.X += dx
	p.Y += dy
	return p
}

// WithAction returns a copy of p with the action replaced.
func (p Pointer) WithAction(a PointerAction) Pointer {
	p.Action = a
	return p
}

// Key is a key input event.
type Key struct {
	Action    KeyAction     `json:"action"`
	Code      Code          `json:"code"`
	Meta      Meta          `json:"meta,omitempty"`
	Repeat    int           `json:"repeat,omitempty"`
	DownTime  time.Duration `json:"down_time"`
	EventTime time.Duration `json:"event_time"`
}

// Refresh returns a copy of k restamped at now with the repeat count reset.
// Downstream consumers may reject events whose timestamps have gone stale, so
// every retried injection passes through Refresh first.
func Refresh(k Key, now time.Duration) Key {
	k.EventTime = now
	k.Repeat = 0
	return k
}
