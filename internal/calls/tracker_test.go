package calls

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/billing"
	"calltrack/internal/numbers"
	"calltrack/internal/telephony"

	"github.com/shopspring/decimal"
)

type fakeDirectory map[string]numbers.OwnedNumber // by number

func (f fakeDirectory) OwnerOf(ctx context.Context, number string) (numbers.OwnedNumber, error) {
	n, ok := f[number]
	if !ok {
		return numbers.OwnedNumber{}, numbers.ErrNotFound
	}
	return n, nil
}

func (f fakeDirectory) Get(ctx context.Context, userID, id string) (numbers.OwnedNumber, error) {
	for _, n := range f {
		if n.ID == id && n.UserID == userID {
			return n, nil
		}
	}
	return numbers.OwnedNumber{}, numbers.ErrNotFound
}

type fakeProvider struct {
	placed []telephony.PlaceCallRequest
	err    error
}

func (p *fakeProvider) Name() string                          { return "fake" }
func (p *fakeProvider) HealthCheck(ctx context.Context) error { return nil }
func (p *fakeProvider) BuyNumber(ctx context.Context, req telephony.BuyNumberRequest) (telephony.BuyNumberResult, error) {
	return telephony.BuyNumberResult{}, errors.New("not supported")
}
func (p *fakeProvider) ReleaseNumber(ctx context.Context, req telephony.ReleaseNumberRequest) error {
	return nil
}
func (p *fakeProvider) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	if p.err != nil {
		return telephony.PlaceCallResult{}, p.err
	}
	p.placed = append(p.placed, req)
	return telephony.PlaceCallResult{CallSid: "CAout1"}, nil
}

type fakeURLs struct{}

func (fakeURLs) ConnectURL(to, callerID string, record bool) string {
	q := url.Values{"to": {to}, "from": {callerID}}
	if record {
		q.Set("record", "1")
	}
	return "https://api.example.com/webhooks/twilio/outbound/connect?" + q.Encode()
}

func (fakeURLs) StatusURL() string { return "https://api.example.com/webhooks/twilio/status" }

var owned = numbers.OwnedNumber{ID: "n1", UserID: "u1", Number: "+15550000001", Label: "Sales", Active: true}

type fixture struct {
	tracker  *Tracker
	repo     *MemoryRepo
	billing  *billing.MemoryRepo
	provider *fakeProvider
	audit    *audit.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	now := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

	billingRepo := billing.NewMemoryRepo()
	billingRepo.Seed(billing.Counters{UserID: "u1", FreeSecondsRemaining: 600, LastResetAt: now, Balance: decimal.RequireFromString("10")})
	plan := billing.Plan{FreeMinutes: 100, RatePerMinute: decimal.RequireFromString("0.0085"), Currency: "USD"}
	auditRepo := audit.NewMemoryRepo()
	auditor := audit.NewService(auditRepo)

	repo := NewMemoryRepo()
	provider := &fakeProvider{}
	tr := NewTracker(repo, Deps{
		Numbers:  fakeDirectory{owned.Number: owned},
		Billing:  billing.NewService(billingRepo, plan, auditor),
		Provider: provider,
		URLs:     fakeURLs{},
		Audit:    auditor,
	})
	tr.clock = func() time.Time { return now }
	return fixture{tracker: tr, repo: repo, billing: billingRepo, provider: provider, audit: auditRepo}
}

func TestHandleStatus_CreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA1", From: "+15559999999", To: owned.Number, Direction: "inbound", Status: "ringing"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.UserID != "u1" || rec.NumberID != "n1" || rec.Direction != DirectionInbound {
		t.Fatalf("expected attribution to owned number, got %+v", rec)
	}

	price := decimal.RequireFromString("0.0085")
	rec, err = f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA1", Status: "completed", DurationSeconds: 42, Price: &price, PriceUnit: "USD"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Status != StatusCompleted || rec.DurationSeconds != 42 || rec.EndedAt == nil || rec.Price == nil {
		t.Fatalf("unexpected record %+v", rec)
	}

	// Replay and a late ringing event change nothing.
	again, err := f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA1", Status: "completed", DurationSeconds: 42, Price: &price})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	late, err := f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA1", Status: "ringing"})
	if err != nil {
		t.Fatalf("late: %v", err)
	}
	if again.Status != StatusCompleted || late.Status != StatusCompleted || late.DurationSeconds != 42 {
		t.Fatalf("terminal status was disturbed: %+v", late)
	}
}

func TestHandleStatus_UnknownCall(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.HandleStatus(context.Background(), StatusEvent{CallSID: "CA2", From: "+15551111111", To: "+15552222222", Status: "ringing"})
	if !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
	if _, err := f.repo.GetBySID(context.Background(), "CA2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no row written, got %v", err)
	}
}

func TestHandleStatus_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	if _, err := f.tracker.HandleStatus(context.Background(), StatusEvent{CallSID: "CA1", Status: "melted"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRecordInbound_ThenStatusBeforeRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Status callback lands before the router wrote its row.
	if _, err := f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA3", From: "+15559999999", To: owned.Number, Status: "in-progress"}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA3", UserID: "u1", NumberID: "n1", From: "+15559999999", To: owned.Number}); err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	rec, _ := f.repo.GetBySID(ctx, "CA3")
	if rec.Status != StatusInProgress {
		t.Fatalf("expected in-progress kept, got %q", rec.Status)
	}
}

func TestRecordInbound_UnansweredForwardCompletesFromParentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA4", UserID: "u1", NumberID: "n1", From: "+15559999999", To: owned.Number}); err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	rec, _ := f.repo.GetBySID(ctx, "CA4")
	if rec.Status != StatusRinging {
		t.Fatalf("expected ringing after routing, got %q", rec.Status)
	}

	// The forward target never answers. Only the parent leg, reported via
	// the number's status callback, tells us the call is over.
	rec, err := f.tracker.HandleStatus(ctx, StatusEvent{CallSID: "CA4", From: "+15559999999", To: owned.Number, Direction: "inbound", Status: "completed", DurationSeconds: 18})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Status != StatusCompleted || rec.EndedAt == nil || rec.DurationSeconds != 18 {
		t.Fatalf("expected completed call with duration, got %+v", rec)
	}
	if rec.UserID != "u1" || rec.NumberID != "n1" {
		t.Fatalf("expected attribution kept, got %+v", rec)
	}
}

func TestHandleRecording_ChargesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA1", UserID: "u1", NumberID: "n1", From: "+15559999999", To: owned.Number}); err != nil {
		t.Fatalf("record inbound: %v", err)
	}

	ev := RecordingEvent{CallSID: "CA1", RecordingSID: "RE1", URL: "https://api.twilio.com/rec/RE1", Status: "completed", DurationSeconds: 900, Channels: 2}
	for i := 0; i < 2; i++ {
		rec, err := f.tracker.HandleRecording(ctx, ev)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if rec.Recording == nil || rec.Recording.SID != "RE1" || rec.Recording.Channels != 2 {
			t.Fatalf("unexpected recording %+v", rec.Recording)
		}
	}

	c, _ := f.billing.Counters("u1")
	if !c.Balance.Equal(decimal.RequireFromString("9.9575")) {
		t.Fatalf("expected a single 0.0425 debit, balance %s", c.Balance)
	}
	if c.FreeSecondsRemaining != 0 {
		t.Fatalf("expected free seconds exhausted, got %d", c.FreeSecondsRemaining)
	}
}

func TestHandleRecording_InProgressDoesNotBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA1", UserID: "u1", NumberID: "n1"})

	if _, err := f.tracker.HandleRecording(ctx, RecordingEvent{CallSID: "CA1", RecordingSID: "RE1", Status: "in-progress"}); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if c, _ := f.billing.Counters("u1"); c.FreeSecondsRemaining != 600 {
		t.Fatalf("expected no charge, free=%d", c.FreeSecondsRemaining)
	}
}

func TestHandleRecording_UnknownCall(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.HandleRecording(context.Background(), RecordingEvent{CallSID: "CAx", RecordingSID: "RE1", Status: "completed", DurationSeconds: 60})
	if !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
}

func TestStartOutbound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.tracker.StartOutbound(ctx, "u1", OutboundRequest{FromNumberID: "n1", AgentNumber: "+15557777777", To: "+15558888888"})
	if err != nil {
		t.Fatalf("start outbound: %v", err)
	}
	if rec.CallSID != "CAout1" || rec.Status != StatusQueued || rec.Direction != DirectionOutbound || rec.To != "+15558888888" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(f.provider.placed) != 1 {
		t.Fatalf("expected one call placed")
	}
	placed := f.provider.placed[0]
	if placed.From != owned.Number || placed.To != "+15557777777" {
		t.Fatalf("expected agent rung from owned number, got %+v", placed)
	}
	u, _ := url.Parse(placed.AnswerURL)
	if u.Query().Get("to") != "+15558888888" || u.Query().Get("record") != "1" {
		t.Fatalf("unexpected connect url %s", placed.AnswerURL)
	}
	if evs := f.audit.Events(); len(evs) != 1 || evs[0].Type != audit.EventOutboundCall {
		t.Fatalf("expected outbound audit event, got %+v", evs)
	}
}

func TestStartOutbound_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.StartOutbound(ctx, "u1", OutboundRequest{FromNumberID: "n1", AgentNumber: "555", To: "+15558888888"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := f.tracker.StartOutbound(ctx, "u2", OutboundRequest{FromNumberID: "n1", AgentNumber: "+15557777777", To: "+15558888888"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign number, got %v", err)
	}

	f.provider.err = errors.New("twilio down")
	if _, err := f.tracker.StartOutbound(ctx, "u1", OutboundRequest{FromNumberID: "n1", AgentNumber: "+15557777777", To: "+15558888888"}); err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestListRecordingsOnlyReturnsRecordedCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA1", UserID: "u1", NumberID: "n1"})
	_ = f.tracker.RecordInbound(ctx, InboundCall{CallSID: "CA2", UserID: "u1", NumberID: "n1"})
	if _, err := f.tracker.HandleRecording(ctx, RecordingEvent{CallSID: "CA2", RecordingSID: "RE2", Status: "completed", DurationSeconds: 30}); err != nil {
		t.Fatalf("recording: %v", err)
	}

	all, _ := f.tracker.List(ctx, "u1", 0, 0)
	recs, _ := f.tracker.ListRecordings(ctx, "u1", 0, 0)
	if len(all) != 2 || len(recs) != 1 || recs[0].CallSID != "CA2" {
		t.Fatalf("unexpected lists all=%d recordings=%+v", len(all), recs)
	}
	if _, err := f.tracker.Get(ctx, "u2", "CA1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other tenant to get ErrNotFound, got %v", err)
	}
}
