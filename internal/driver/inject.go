package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/calmloop/settle/internal/display"
	"github.com/calmloop/settle/internal/event"
	"github.com/calmloop/settle/internal/keymap"
)

// maxKeyEventAttempts bounds retries of one derived key event during text
// injection. Each attempt restamps the event first (CP-5).
const maxKeyEventAttempts = 4

// InjectPointer forces idleness, routes ev through the current window
// stack, and forces idleness again.
func (c *Controller) InjectPointer(ev event.Pointer) error {
	if err := c.checkOnLoop(opInjectPointer); err != nil {
		return err
	}

	token := c.tokens.NewToken()
	seq := c.seq.Next()
	slog.Info("pointer injection",
		"token", token,
		"action", ev.Action,
		"x", ev.X,
		"y", ev.Y)

	var made []DeliveryRecord
	err := c.injectPointer(opInjectPointer, token, ev, &made)

	c.recordInjection(InjectionRecord{
		Token:      token,
		Seq:        seq,
		Kind:       KindPointer,
		Detail:     fmt.Sprintf("%s @(%g,%g)", ev.Action, ev.X, ev.Y),
		Outcome:    OutcomeOf(err),
		Error:      errText(err),
		Deliveries: made,
	})
	return err
}

func (c *Controller) injectPointer(op, token string, ev event.Pointer, made *[]DeliveryRecord) error {
	if err := c.waitUntilIdle(token); err != nil {
		return err
	}

	stack, err := c.snapshot(op)
	if err != nil {
		return err
	}

	deliveries, derr := stack.DispatchPointer(ev)
	c.collect(token, deliveries, made)
	if derr != nil {
		return fmt.Errorf("%s: %w", op, derr)
	}

	return c.waitUntilIdle(token)
}

// InjectKey forces idleness, routes ev to the first focusable window, and
// forces idleness again.
func (c *Controller) InjectKey(ev event.Key) error {
	if err := c.checkOnLoop(opInjectKey); err != nil {
		return err
	}

	token := c.tokens.NewToken()
	seq := c.seq.Next()
	slog.Info("key injection",
		"token", token,
		"action", ev.Action,
		"code", ev.Code)

	var made []DeliveryRecord
	err := c.injectKey(opInjectKey, token, ev, &made)

	c.recordInjection(InjectionRecord{
		Token:      token,
		Seq:        seq,
		Kind:       KindKey,
		Detail:     fmt.Sprintf("%s %s", ev.Action, ev.Code),
		Outcome:    OutcomeOf(err),
		Error:      errText(err),
		Deliveries: made,
	})
	return err
}

func (c *Controller) injectKey(op, token string, ev event.Key, made *[]DeliveryRecord) error {
	if err := c.waitUntilIdle(token); err != nil {
		return err
	}

	stack, err := c.snapshot(op)
	if err != nil {
		return err
	}

	delivery, derr := stack.DispatchKey(ev)
	if delivery != nil {
		*made = append(*made, DeliveryRecord{
			Token:  token,
			Seq:    c.seq.Next(),
			Window: delivery.Window,
			Action: delivery.Action,
			Code:   delivery.Code,
		})
	}
	if derr != nil {
		return fmt.Errorf("%s: %w", op, derr)
	}

	return c.waitUntilIdle(token)
}

// InjectText translates text into key events and injects them in order.
// Empty text succeeds immediately without consulting the keymap. Each
// derived event gets up to maxKeyEventAttempts tries, restamped before each.
func (c *Controller) InjectText(text string) error {
	if err := c.checkOnLoop(opInjectText); err != nil {
		return err
	}

	if text == "" {
		slog.Info("text injection skipped, empty text")
		return nil
	}

	token := c.tokens.NewToken()
	seq := c.seq.Next()

	var made []DeliveryRecord
	err := c.injectText(token, text, &made)

	c.recordInjection(InjectionRecord{
		Token:      token,
		Seq:        seq,
		Kind:       KindText,
		Detail:     text,
		Outcome:    OutcomeOf(err),
		Error:      errText(err),
		Deliveries: made,
	})
	return err
}

func (c *Controller) injectText(token, text string, made *[]DeliveryRecord) error {
	events, err := keymap.Events(text)
	if err != nil {
		terr := &TranslationError{Text: text, Err: err}
		slog.Error("text translation failed", "token", token, "err", terr)
		return terr
	}

	slog.Info("text injection",
		"token", token,
		"runes", utf8.RuneCountInString(text),
		"events", len(events))

	for _, k := range events {
		if err := c.injectKeyEventWithRetries(token, k, made); err != nil {
			return err
		}
	}
	return nil
}

// injectKeyEventWithRetries drives one derived key event to delivery.
// Transient dispatch failures are retried with a fresh timestamp; contract
// failures (precondition, timeout) end the whole text injection at once.
func (c *Controller) injectKeyEventWithRetries(token string, k event.Key, made *[]DeliveryRecord) error {
	var last error
	for attempt := 1; attempt <= maxKeyEventAttempts; attempt++ {
		fresh := event.Refresh(k, c.clock.Uptime())
		if fresh.DownTime == 0 {
			fresh.DownTime = fresh.EventTime
		}

		err := c.injectKey(opInjectText, token, fresh, made)
		if err == nil {
			return nil
		}
		if IsPrecondition(err) || IsIdleTimeout(err) {
			return err
		}

		last = err
		slog.Warn("key event injection failed, retrying",
			"token", token,
			"code", k.Code,
			"attempt", attempt)
	}
	return fmt.Errorf("inject key event %s after %d attempts: %w", k.Code, maxKeyEventAttempts, last)
}

// snapshot builds the routing stack, mapping source failures onto the
// precondition taxonomy.
func (c *Controller) snapshot(op string) (*display.Stack, error) {
	stack, err := display.Snapshot(c.src)
	if err != nil {
		if errors.Is(err, display.ErrSourceMismatch) || errors.Is(err, display.ErrEmptyStack) {
			return nil, &PreconditionError{Op: op, Message: err.Error()}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stack, nil
}

func (c *Controller) collect(token string, deliveries []display.Delivery, made *[]DeliveryRecord) {
	for _, d := range deliveries {
		*made = append(*made, DeliveryRecord{
			Token:  token,
			Seq:    c.seq.Next(),
			Window: d.Window,
			Action: d.Action,
			Code:   d.Code,
			X:      d.X,
			Y:      d.Y,
		})
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
