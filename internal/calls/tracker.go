package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/billing"
	"calltrack/internal/numbers"
	"calltrack/internal/telephony"
	"calltrack/pkg/logger"
	"calltrack/pkg/metrics"
)

// NumberDirectory resolves owned numbers for attribution and click-to-call.
type NumberDirectory interface {
	OwnerOf(ctx context.Context, number string) (numbers.OwnedNumber, error)
	Get(ctx context.Context, userID, id string) (numbers.OwnedNumber, error)
}

type Charger interface {
	ChargeRecording(ctx context.Context, userID, callSID, recordingSID string, durationSeconds int) (billing.Charge, error)
}

// CallbackURLs are the webhook URLs handed to the provider for click-to-call.
type CallbackURLs interface {
	ConnectURL(to, callerID string, record bool) string
	StatusURL() string
}

// StatusCallbackEvents are the call progress events we subscribe to.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

type Deps struct {
	Numbers  NumberDirectory
	Billing  Charger
	Provider telephony.Provider
	URLs     CallbackURLs
	Audit    audit.Appender
	Metrics  *metrics.Metrics
}

// Tracker keeps call records consistent with provider callbacks. Status and
// recording callbacks arrive in any order and may be redelivered; both paths
// upsert through Repository.Apply.
type Tracker struct {
	repo  Repository
	deps  Deps
	clock func() time.Time
}

func NewTracker(repo Repository, deps Deps) *Tracker {
	return &Tracker{repo: repo, deps: deps, clock: time.Now}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RecordInbound creates the inbound call row when the router first sees a call.
func (t *Tracker) RecordInbound(ctx context.Context, in InboundCall) error {
	if in.CallSID == "" || in.UserID == "" {
		return ErrInvalidArgument
	}
	now := t.clock().UTC()
	_, err := t.repo.Apply(ctx, in.CallSID, func(cur Record, exists bool) (Record, error) {
		if !exists {
			cur.Direction = DirectionInbound
			cur.From = in.From
			cur.To = in.To
			cur.StartedAt = &now
			cur.CreatedAt = now
		}
		// A status callback may have created the row first.
		if cur.UserID == "" {
			cur.UserID = in.UserID
		}
		if cur.NumberID == "" {
			cur.NumberID = in.NumberID
		}
		cur.Status = Advance(cur.Status, StatusRinging)
		cur.UpdatedAt = now
		return cur, nil
	})
	return err
}

// attribute finds the owned number on either end of a call we have not seen.
func (t *Tracker) attribute(ctx context.Context, candidates ...string) (numbers.OwnedNumber, error) {
	for _, n := range candidates {
		if n == "" {
			continue
		}
		owned, err := t.deps.Numbers.OwnerOf(ctx, n)
		if err == nil {
			return owned, nil
		}
		if !errors.Is(err, numbers.ErrNotFound) {
			return numbers.OwnedNumber{}, err
		}
	}
	return numbers.OwnedNumber{}, ErrUnknownCall
}

// HandleStatus applies a call-status callback. Replays leave the row as is.
func (t *Tracker) HandleStatus(ctx context.Context, ev StatusEvent) (Record, error) {
	if ev.CallSID == "" {
		return Record{}, ErrInvalidArgument
	}
	status, ok := ParseStatus(ev.Status)
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, ev.Status)
	}
	now := t.clock().UTC()
	at := ev.Timestamp.UTC()
	if ev.Timestamp.IsZero() {
		at = now
	}

	rec, err := t.repo.Apply(ctx, ev.CallSID, func(cur Record, exists bool) (Record, error) {
		if !exists {
			direction := ParseDirection(ev.Direction)
			candidates := []string{ev.To, ev.From}
			if direction == DirectionOutbound {
				candidates = []string{ev.From, ev.To}
			}
			owned, err := t.attribute(ctx, candidates...)
			if err != nil {
				return Record{}, err
			}
			cur.UserID = owned.UserID
			cur.NumberID = owned.ID
			cur.From = ev.From
			cur.To = ev.To
			cur.Direction = direction
			cur.CreatedAt = now
		}

		cur.Status = Advance(cur.Status, status)
		if cur.StartedAt == nil {
			cur.StartedAt = &at
		}
		if status.Terminal() {
			if cur.EndedAt == nil {
				cur.EndedAt = &at
			}
			// Parent and dialled leg both report a duration; keep the longest.
			cur.DurationSeconds = max(cur.DurationSeconds, ev.DurationSeconds)
			if ev.Price != nil {
				cur.Price = ev.Price
				cur.PriceUnit = ev.PriceUnit
			}
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return Record{}, err
	}

	logger.From(ctx).Debug("call status applied",
		"call_sid", ev.CallSID,
		"child_call_sid", ev.ChildCallSID,
		"reported", string(status),
		"status", string(rec.Status),
	)
	return rec, nil
}

// HandleRecording attaches recording metadata and, once the recording is
// complete, bills it. Billing is keyed by recording SID so redelivery never
// debits twice.
func (t *Tracker) HandleRecording(ctx context.Context, ev RecordingEvent) (Record, error) {
	if ev.CallSID == "" || ev.RecordingSID == "" {
		return Record{}, ErrInvalidArgument
	}
	now := t.clock().UTC()

	rec, err := t.repo.Apply(ctx, ev.CallSID, func(cur Record, exists bool) (Record, error) {
		// Recording starts only on calls we connected, so the row already
		// exists: RecordInbound writes it before the dial TwiML goes out and
		// StartOutbound writes it when the call is placed.
		if !exists {
			return Record{}, ErrUnknownCall
		}
		if r := cur.Recording; r != nil && r.SID == ev.RecordingSID && r.Status == RecordingCompleted {
			return cur, nil
		}
		cur.Recording = &Recording{
			SID:             ev.RecordingSID,
			URL:             ev.URL,
			DurationSeconds: ev.DurationSeconds,
			Channels:        ev.Channels,
			Status:          ev.Status,
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return Record{}, err
	}
	if ev.Status != RecordingCompleted {
		return rec, nil
	}

	_, err = t.deps.Billing.ChargeRecording(ctx, rec.UserID, rec.CallSID, ev.RecordingSID, ev.DurationSeconds)
	switch {
	case billing.IsDuplicate(err):
		t.deps.Metrics.RecordingCharge("duplicate")
		logger.From(ctx).Info("recording already charged", "call_sid", rec.CallSID, "recording_sid", ev.RecordingSID)
		return rec, nil
	case err != nil:
		t.deps.Metrics.RecordingCharge("error")
		return rec, fmt.Errorf("calls: charge recording %s: %w", ev.RecordingSID, err)
	}
	t.deps.Metrics.RecordingCharge("charged")
	return rec, nil
}

// StartOutbound places a click-to-call through the provider.
func (t *Tracker) StartOutbound(ctx context.Context, userID string, req OutboundRequest) (Record, error) {
	agent := telephony.NormalizePhone(req.AgentNumber)
	to := telephony.NormalizePhone(req.To)
	if userID == "" || req.FromNumberID == "" {
		return Record{}, ErrInvalidArgument
	}
	if !telephony.IsE164(agent) || !telephony.IsE164(to) {
		return Record{}, fmt.Errorf("%w: agent_number and to must be E.164", ErrInvalidArgument)
	}
	if agent == to {
		return Record{}, fmt.Errorf("%w: agent_number and to must differ", ErrInvalidArgument)
	}

	from, err := t.deps.Numbers.Get(ctx, userID, req.FromNumberID)
	if errors.Is(err, numbers.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if !from.Routable() {
		return Record{}, fmt.Errorf("%w: number is not active", ErrInvalidArgument)
	}

	record := req.Record == nil || *req.Record
	res, err := t.deps.Provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		From:                from.Number,
		To:                  agent,
		AnswerURL:           t.deps.URLs.ConnectURL(to, from.Number, record),
		StatusCallback:      t.deps.URLs.StatusURL(),
		StatusCallbackEvent: StatusCallbackEvents,
	})
	if err != nil {
		return Record{}, fmt.Errorf("calls: place call: %w", err)
	}

	now := t.clock().UTC()
	rec, err := t.repo.Apply(ctx, res.CallSid, func(cur Record, exists bool) (Record, error) {
		if !exists {
			cur.CreatedAt = now
			cur.StartedAt = &now
		}
		cur.UserID = userID
		cur.NumberID = from.ID
		cur.From = from.Number
		cur.To = to
		cur.Direction = DirectionOutbound
		cur.Status = Advance(cur.Status, StatusQueued)
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return Record{}, err
	}

	audit.Record(ctx, t.deps.Audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventOutboundCall,
		TargetID: rec.CallSID,
		Metadata: map[string]any{"from": from.Number, "to": to, "record": record},
	})
	return rec, nil
}

func (t *Tracker) Get(ctx context.Context, userID, callSID string) (Record, error) {
	if userID == "" || callSID == "" {
		return Record{}, ErrInvalidArgument
	}
	return t.repo.Get(ctx, userID, callSID)
}

func (t *Tracker) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	limit, offset = clampPage(limit, offset)
	return t.repo.List(ctx, userID, limit, offset)
}

func (t *Tracker) ListRecordings(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	limit, offset = clampPage(limit, offset)
	return t.repo.ListRecordings(ctx, userID, limit, offset)
}

// ListBetween returns the calls created in [from, to).
func (t *Tracker) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]Record, error) {
	if userID == "" || !to.After(from) {
		return nil, ErrInvalidArgument
	}
	return t.repo.ListBetween(ctx, userID, from, to)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
