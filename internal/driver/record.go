package driver

import "time"

// Record kinds for injections and waits.
const (
	KindPointer = "pointer"
	KindKey     = "key"
	KindText    = "text"

	WaitUntilIdleKind = "until_idle"
	WaitAtLeastKind   = "at_least"
)

// DeliveryRecord is one routed event hitting one window, stamped with its
// own sequence number.
type DeliveryRecord struct {
	Token  string  `json:"token"`
	Seq    int64   `json:"seq"`
	Window string  `json:"window"`
	Action string  `json:"action"`
	Code   string  `json:"code,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// InjectionRecord is one completed injection call with every delivery it
// made. Recorded once, after the outcome is known, so consumers can persist
// the whole record atomically.
type InjectionRecord struct {
	Token      string           `json:"token"`
	Seq        int64            `json:"seq"`
	Kind       string           `json:"kind"`
	Detail     string           `json:"detail"`
	Outcome    string           `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	Deliveries []DeliveryRecord `json:"deliveries,omitempty"`
}

// WaitRecord is one completed wait. Token is empty for waits called
// directly; waits inside an injection carry the injection's token.
type WaitRecord struct {
	Token   string        `json:"token,omitempty"`
	Seq     int64         `json:"seq"`
	Kind    string        `json:"kind"`
	Passes  int           `json:"passes"`
	Outcome string        `json:"outcome"`
	Stalled []string      `json:"stalled,omitempty"`
	Elapsed time.Duration `json:"-"`
}

// Recorder observes completed driver operations. Implementations append to
// the journal or a trace. Calls arrive on the control goroutine, in sequence
// order.
type Recorder interface {
	RecordInjection(InjectionRecord)
	RecordWait(WaitRecord)
}
