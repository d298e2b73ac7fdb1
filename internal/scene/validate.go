package scene

import (
	"fmt"

	"github.com/calmloop/settle/internal/display"
)

// Validation error codes.
const (
	ErrUnknownLayer        = "E100" // window layer not in the display vocabulary
	ErrUnknownFlag         = "E101" // window flag not in the display vocabulary
	ErrDuplicateWindow     = "E102" // window name declared twice
	ErrEmptyName           = "E103" // empty window, resource, loop, or app name
	ErrNonPositiveSize     = "E104" // frame width or height not positive
	ErrUnknownResourceKind = "E105" // resource kind not counter or gate
	ErrDuplicateResource   = "E106" // resource or loop name collides in the registry
	ErrDuplicateLoop       = "E107" // loop name declared twice
	ErrMissingScene        = "E108" // scene definition not found
	WarnStartedNoWindow    = "E109" // started app has no base window
)

// ValidationError represents a single scene validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
	// Warning findings do not block a run.
	Warning bool `json:"warning,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Errors filters findings down to the blocking ones.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if !f.Warning {
			out = append(out, f)
		}
	}
	return out
}

// Warnings filters findings down to the non-blocking ones.
func Warnings(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Warning {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks a compiled scene against the display vocabulary and the
// registry naming rules. It returns all findings, not just the first.
func Validate(s *Scene) []ValidationError {
	var findings []ValidationError

	baseApps := make(map[string]bool)
	windowNames := make(map[string]bool)

	for i, w := range s.Windows {
		field := fmt.Sprintf("windows[%d]", i)
		if w.Name == "" {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: "window name must not be empty",
				Code:    ErrEmptyName,
			})
		} else {
			field = fmt.Sprintf("windows.%s", w.Name)
			if windowNames[w.Name] {
				findings = append(findings, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("window %q declared more than once", w.Name),
					Code:    ErrDuplicateWindow,
				})
			}
			windowNames[w.Name] = true
		}

		layer, ok := display.ParseLayer(w.Layer)
		if !ok {
			findings = append(findings, ValidationError{
				Field: field + ".layer",
				Message: fmt.Sprintf("unknown layer %q, must be one of base, application, panel, overlay",
					w.Layer),
				Code: ErrUnknownLayer,
			})
		} else if layer == display.LayerBase && w.App != "" {
			baseApps[w.App] = true
		}

		for _, flag := range w.Flags {
			if _, ok := display.ParseFlag(flag); !ok {
				findings = append(findings, ValidationError{
					Field:   field + ".flags",
					Message: fmt.Sprintf("unknown flag %q", flag),
					Code:    ErrUnknownFlag,
				})
			}
		}

		if w.Frame.Width <= 0 || w.Frame.Height <= 0 {
			findings = append(findings, ValidationError{
				Field: field + ".frame",
				Message: fmt.Sprintf("frame size %dx%d must be positive",
					w.Frame.Width, w.Frame.Height),
				Code: ErrNonPositiveSize,
			})
		}
	}

	// Resources and loops register under one namespace, so a loop name
	// must not collide with a resource name either.
	resourceNames := make(map[string]bool)

	for i, r := range s.Resources {
		field := fmt.Sprintf("resources[%d]", i)
		if r.Name == "" {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: "resource name must not be empty",
				Code:    ErrEmptyName,
			})
		} else {
			field = fmt.Sprintf("resources.%s", r.Name)
			if resourceNames[r.Name] {
				findings = append(findings, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("resource %q declared more than once", r.Name),
					Code:    ErrDuplicateResource,
				})
			}
			resourceNames[r.Name] = true
		}

		if r.Kind != KindCounter && r.Kind != KindGate {
			findings = append(findings, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown resource kind %q, must be %q or %q", r.Kind, KindCounter, KindGate),
				Code:    ErrUnknownResourceKind,
			})
		}
	}

	loopNames := make(map[string]bool)
	for i, name := range s.Loops {
		field := fmt.Sprintf("loops[%d]", i)
		if name == "" {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: "loop name must not be empty",
				Code:    ErrEmptyName,
			})
			continue
		}
		field = fmt.Sprintf("loops.%s", name)
		if loopNames[name] {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("loop %q declared more than once", name),
				Code:    ErrDuplicateLoop,
			})
		}
		loopNames[name] = true
		if resourceNames[name] {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("loop %q collides with a resource of the same name", name),
				Code:    ErrDuplicateResource,
			})
		}
	}

	for i, app := range s.Started {
		field := fmt.Sprintf("started[%d]", i)
		if app == "" {
			findings = append(findings, ValidationError{
				Field:   field,
				Message: "started app name must not be empty",
				Code:    ErrEmptyName,
			})
			continue
		}
		if !baseApps[app] {
			findings = append(findings, ValidationError{
				Field:   fmt.Sprintf("started.%s", app),
				Message: fmt.Sprintf("started app %q has no base window", app),
				Code:    WarnStartedNoWindow,
				Warning: true,
			})
		}
	}

	return findings
}
