package journal

import (
	"fmt"
	"strings"

	"github.com/calmloop/settle/internal/driver"
)

// Filter narrows injection queries. Zero-value fields match everything.
// All values are bound parameters, never interpolated into the SQL.
type Filter struct {
	// Token matches one injection exactly.
	Token string
	// Kind is one of the injection kinds: pointer, key, text.
	Kind string
	// Outcome is one of the recorded outcomes, e.g. ok or idle_timeout.
	Outcome string
	// Window matches injections that delivered to the named window.
	Window string
	// SinceSeq is an exclusive lower bound on the injection sequence.
	SinceSeq int64
}

// WaitFilter narrows wait queries. Zero-value fields match everything.
type WaitFilter struct {
	// Token matches waits tied to one injection; bare waits have none.
	Token string
	// Kind is until_idle or at_least.
	Kind string
	// Outcome is one of the recorded outcomes.
	Outcome string
}

var injectionKinds = map[string]bool{
	driver.KindPointer: true,
	driver.KindKey:     true,
	driver.KindText:    true,
}

var waitKinds = map[string]bool{
	driver.WaitUntilIdleKind: true,
	driver.WaitAtLeastKind:   true,
}

var outcomes = map[string]bool{
	driver.OutcomeOK:           true,
	driver.OutcomePrecondition: true,
	driver.OutcomeIdleTimeout:  true,
	driver.OutcomeTranslation:  true,
	driver.OutcomeRejected:     true,
}

// compile turns the filter into a WHERE clause over the aliased injections
// table i, plus its parameters. An empty filter compiles to no clause.
func (f Filter) compile() (string, []any, error) {
	var conds []string
	var params []any

	if f.Token != "" {
		conds = append(conds, "i.token = ?")
		params = append(params, f.Token)
	}
	if f.Kind != "" {
		if !injectionKinds[f.Kind] {
			return "", nil, fmt.Errorf("unknown injection kind %q", f.Kind)
		}
		conds = append(conds, "i.kind = ?")
		params = append(params, f.Kind)
	}
	if f.Outcome != "" {
		if !outcomes[f.Outcome] {
			return "", nil, fmt.Errorf("unknown outcome %q", f.Outcome)
		}
		conds = append(conds, "i.outcome = ?")
		params = append(params, f.Outcome)
	}
	if f.Window != "" {
		conds = append(conds,
			`EXISTS (SELECT 1 FROM deliveries d WHERE d.token = i.token AND d."window" = ?)`)
		params = append(params, f.Window)
	}
	if f.SinceSeq > 0 {
		conds = append(conds, "i.seq > ?")
		params = append(params, f.SinceSeq)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params, nil
}

// compile turns the filter into a WHERE clause over the waits table w.
func (f WaitFilter) compile() (string, []any, error) {
	var conds []string
	var params []any

	if f.Token != "" {
		conds = append(conds, "w.token = ?")
		params = append(params, f.Token)
	}
	if f.Kind != "" {
		if !waitKinds[f.Kind] {
			return "", nil, fmt.Errorf("unknown wait kind %q", f.Kind)
		}
		conds = append(conds, "w.kind = ?")
		params = append(params, f.Kind)
	}
	if f.Outcome != "" {
		if !outcomes[f.Outcome] {
			return "", nil, fmt.Errorf("unknown outcome %q", f.Outcome)
		}
		conds = append(conds, "w.outcome = ?")
		params = append(params, f.Outcome)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params, nil
}
