package routing

import (
	"context"
	"strings"

	"calltrack/internal/calls"
	"calltrack/internal/telephony"
	"calltrack/pkg/logger"
	"calltrack/pkg/metrics"
)

// CallRecorder persists the inbound call row. Failures never affect routing.
type CallRecorder interface {
	RecordInbound(ctx context.Context, in calls.InboundCall) error
}

// Router turns Engine decisions into TwiML. Every method returns markup:
// Twilio cannot act on an HTTP error, so failures degrade to the safest
// terminal response.
type Router struct {
	engine    *Engine
	callbacks Callbacks
	recorder  CallRecorder
	metrics   *metrics.Metrics
}

func NewRouter(engine *Engine, callbacks Callbacks, recorder CallRecorder, m *metrics.Metrics) *Router {
	return &Router{engine: engine, callbacks: callbacks, recorder: recorder, metrics: m}
}

// InboundRequest is the subset of the voice webhook the router trusts.
type InboundRequest struct {
	CallSID string
	Called  string
	Caller  string
}

// Inbound answers the voice webhook.
func (r *Router) Inbound(ctx context.Context, req InboundRequest) string {
	log := logger.From(ctx)

	d, err := r.engine.Route(ctx, req.Called, req.Caller)
	if err != nil {
		log.Error("inbound routing failed", "call_sid", req.CallSID, "called", req.Called, "reason", d.Reason, "err", err)
	}
	if d.Action == ActionNotInService {
		log.Error("inbound call to unowned number", "call_sid", req.CallSID, "called", req.Called, "reason", d.Reason)
	}
	r.metrics.RouterDecision(string(d.Action))

	if d.UserID != "" && req.CallSID != "" && r.recorder != nil {
		if err := r.recorder.RecordInbound(ctx, calls.InboundCall{
			CallSID:  req.CallSID,
			UserID:   d.UserID,
			NumberID: d.NumberID,
			From:     d.Caller,
			To:       d.Called,
		}); err != nil {
			log.Warn("record inbound call failed", "call_sid", req.CallSID, "err", err)
		}
	}

	xml, err := r.render(d)
	if err != nil {
		log.Error("render inbound twiml failed", "call_sid", req.CallSID, "err", err)
		return r.fallback(MessageUnavailable)
	}
	log.Info("inbound call routed",
		"call_sid", req.CallSID,
		"action", string(d.Action),
		"reason", d.Reason,
		"whisper", d.Whisper,
	)
	return xml
}

func (r *Router) render(d Decision) (string, error) {
	switch d.Action {
	case ActionForward:
		num := telephony.DialNumber{Number: d.ForwardTo}
		if d.Whisper {
			num.WhisperURL = r.callbacks.WhisperURL(d.Called, d.Caller)
		}
		return telephony.NewResponse().Dial(r.recordedDial(d.RingTimeoutSeconds, "", num)).Render()
	case ActionUnavailable:
		return sayAndHangup(MessageUnavailable)
	default:
		return sayAndHangup(MessageNotInService)
	}
}

// recordedDial always records both channels and reports progress back.
func (r *Router) recordedDial(timeout int, callerID string, num telephony.DialNumber) telephony.Dial {
	num.StatusCallback = r.callbacks.StatusURL()
	num.StatusCallbackEvent = calls.StatusCallbackEvents
	return telephony.Dial{
		TimeoutSeconds:               timeout,
		CallerID:                     callerID,
		Record:                       telephony.RecordFromAnswerDual,
		RecordingStatusCallback:      r.callbacks.RecordingURL(),
		RecordingStatusCallbackEvent: []string{"completed"},
		Numbers:                      []telephony.DialNumber{num},
	}
}

// Whisper answers the whisper callback for the dialled leg.
func (r *Router) Whisper(ctx context.Context, called, caller string) string {
	log := logger.From(ctx)

	wd, err := r.engine.Whisper(ctx, called, caller)
	if err != nil {
		log.Error("whisper lookup failed", "called", called, "err", err)
	}
	r.metrics.RouterDecision("whisper_" + string(wd.Action))

	resp := telephony.NewResponse()
	switch wd.Action {
	case WhisperSay:
		resp.Say(telephony.Say{Text: wd.Text, Voice: wd.Voice, Language: wd.Language})
	case WhisperPlay:
		resp.Play(wd.URL)
	}
	xml, err := resp.Render()
	if err != nil {
		log.Error("render whisper twiml failed", "called", called, "err", err)
		return emptyResponse()
	}
	log.Debug("whisper served", "called", called, "action", string(wd.Action), "reason", wd.Reason)
	return xml
}

// Connect answers the agent leg of a click-to-call by dialling the
// destination from the owned number.
func (r *Router) Connect(ctx context.Context, to, callerID string, record bool) string {
	to = telephony.NormalizePhone(to)
	if !telephony.IsE164(to) {
		logger.From(ctx).Error("outbound connect with invalid destination", "to", to)
		return r.fallback("The destination number is invalid. Goodbye.")
	}
	dial := r.recordedDial(0, strings.TrimSpace(callerID), telephony.DialNumber{Number: to})
	if !record {
		dial.Record = ""
		dial.RecordingStatusCallback = ""
		dial.RecordingStatusCallbackEvent = nil
	}
	xml, err := telephony.NewResponse().Dial(dial).Render()
	if err != nil {
		logger.From(ctx).Error("render connect twiml failed", "err", err)
		return r.fallback(MessageUnavailable)
	}
	return xml
}

// Fallback is the markup served when a webhook cannot be handled at all.
func (r *Router) Fallback() string { return r.fallback(MessageUnavailable) }

func (r *Router) fallback(msg string) string {
	xml, err := sayAndHangup(msg)
	if err != nil {
		return emptyResponse()
	}
	return xml
}

func sayAndHangup(msg string) (string, error) {
	return telephony.NewResponse().Say(telephony.Say{Text: msg}).Hangup().Render()
}

func emptyResponse() string {
	xml, _ := telephony.NewResponse().Render()
	return xml
}
