package routing

import (
	"context"
	"errors"
	"strings"

	"calltrack/internal/forwarding"
	"calltrack/internal/numbers"
	"calltrack/internal/whisper"
	"calltrack/pkg/logger"
)

type NumberLookup interface {
	GetByNumber(ctx context.Context, number string) (numbers.OwnedNumber, error)
}

type ForwardingLookup interface {
	GetByNumberID(ctx context.Context, numberID string) (forwarding.Rule, error)
}

type WhisperLookup interface {
	GetByNumberID(ctx context.Context, numberID string) (whisper.Config, error)
	PlaybackURL(ctx context.Context, c whisper.Config) string
}

// Engine evaluates per-number configuration for an inbound call.
//
// Order:
//  1. Owned number (routable) or "not in service"
//  2. Enabled forwarding rule or "no one is available"
//  3. Whisper config decides whether the dialled leg gets a whisper URL
//
// Engine only reads. Rendering and call tracking live in Router.
type Engine struct {
	Numbers    NumberLookup
	Forwarding ForwardingLookup
	Configs    WhisperLookup
}

// Route decides what to do with an inbound call. On error the returned
// Decision is still the safest one to render.
func (e *Engine) Route(ctx context.Context, called, caller string) (Decision, error) {
	called, caller = strings.TrimSpace(called), strings.TrimSpace(caller)
	d := Decision{Called: called, Caller: caller, Action: ActionNotInService}
	if called == "" {
		d.Reason = "missing_called_number"
		return d, nil
	}

	n, err := e.Numbers.GetByNumber(ctx, called)
	if errors.Is(err, numbers.ErrNotFound) {
		d.Reason = "number_not_found"
		return d, nil
	}
	if err != nil {
		d.Reason = "number_lookup_failed"
		return d, err
	}
	d.UserID, d.NumberID = n.UserID, n.ID
	d.Action = ActionUnavailable

	rule, err := e.Forwarding.GetByNumberID(ctx, n.ID)
	switch {
	case errors.Is(err, forwarding.ErrNotFound):
		d.Reason = "no_forwarding"
		return d, nil
	case err != nil:
		d.Reason = "forwarding_lookup_failed"
		return d, err
	case !rule.Enabled:
		d.Reason = "forwarding_disabled"
		return d, nil
	}

	// Every forwarding type currently behaves as "always".
	d.Action = ActionForward
	d.ForwardTo = rule.ForwardTo
	d.RingTimeoutSeconds = rule.RingTimeoutSeconds
	if d.RingTimeoutSeconds <= 0 {
		d.RingTimeoutSeconds = forwarding.DefaultRingTimeout
	}
	d.Reason = "forward_" + string(rule.Type)

	cfg, err := e.Configs.GetByNumberID(ctx, n.ID)
	switch {
	case errors.Is(err, whisper.ErrNotFound):
	case err != nil:
		// Forward without a whisper rather than drop the call.
		logger.From(ctx).Warn("whisper lookup failed", "number_id", n.ID, "err", err)
	default:
		d.Whisper = cfg.Enabled
	}
	return d, nil
}

// Whisper decides what the callee hears once the dialled leg answers.
func (e *Engine) Whisper(ctx context.Context, called, caller string) (WhisperDecision, error) {
	called, caller = strings.TrimSpace(called), strings.TrimSpace(caller)
	none := WhisperDecision{Action: WhisperNone}

	n, err := e.Numbers.GetByNumber(ctx, called)
	if errors.Is(err, numbers.ErrNotFound) {
		none.Reason = "number_not_found"
		return none, nil
	}
	if err != nil {
		none.Reason = "number_lookup_failed"
		return none, err
	}

	cfg, err := e.Configs.GetByNumberID(ctx, n.ID)
	if errors.Is(err, whisper.ErrNotFound) {
		none.Reason = "no_whisper"
		return none, nil
	}
	if err != nil {
		none.Reason = "whisper_lookup_failed"
		return none, err
	}
	if !cfg.Enabled {
		none.Reason = "whisper_disabled"
		return none, nil
	}

	say := WhisperDecision{
		Action:   WhisperSay,
		Voice:    orDefault(cfg.Voice, whisper.DefaultVoice),
		Language: orDefault(cfg.Language, whisper.DefaultLanguage),
	}
	label := n.DisplayLabel()

	if cfg.Mode == whisper.ModePlay {
		if u := e.Configs.PlaybackURL(ctx, cfg); u != "" {
			return WhisperDecision{Action: WhisperPlay, URL: u, Reason: "play"}, nil
		}
		say.Text = whisper.Render(DefaultWhisperText, label, caller)
		say.Reason = "audio_unavailable"
		return say, nil
	}

	tmpl := cfg.Text
	say.Reason = "say"
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultWhisperText
		say.Reason = "say_default"
	}
	say.Text = whisper.Render(tmpl, label, caller)
	return say, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
