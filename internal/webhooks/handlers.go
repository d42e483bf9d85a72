package webhooks

import (
	"context"
	"errors"
	"net/http"

	"calltrack/internal/calls"
	"calltrack/internal/routing"
	"calltrack/internal/telephony"
	"calltrack/internal/whisper"
	"calltrack/pkg/logger"
	"calltrack/pkg/metrics"

	"github.com/gin-gonic/gin"
)

const contentTypeXML = "application/xml"

type Router interface {
	Inbound(ctx context.Context, req routing.InboundRequest) string
	Whisper(ctx context.Context, called, caller string) string
	Connect(ctx context.Context, to, callerID string, record bool) string
	Fallback() string
}

type Tracker interface {
	HandleStatus(ctx context.Context, ev calls.StatusEvent) (calls.Record, error)
	HandleRecording(ctx context.Context, ev calls.RecordingEvent) (calls.Record, error)
}

type AudioSource interface {
	Audio(ctx context.Context, numberID string) (whisper.Audio, error)
}

// Handlers serves the Twilio-facing endpoints. Twilio cannot act on our
// errors: voice-type endpoints always answer with TwiML and callbacks always
// answer 200.
//
// NOTE: Twilio request signature validation is expected at the edge.
type Handlers struct {
	Router  Router
	Calls   Tracker
	Audio   AudioSource
	Metrics *metrics.Metrics
}

// Register mounts the webhook routes.
func (h Handlers) Register(r gin.IRoutes) {
	r.POST(routing.PathVoice, h.Voice)
	r.GET(routing.PathWhisper, h.Whisper)
	r.POST(routing.PathWhisper, h.Whisper)
	r.GET(routing.PathWhisperAudio+"/:number_id", h.WhisperAudio)
	r.POST(routing.PathStatus, h.Status)
	r.POST(routing.PathRecording, h.Recording)
	r.POST(routing.PathConnect, h.Connect)
}

func twiml(c *gin.Context, body string) {
	c.Data(http.StatusOK, contentTypeXML, []byte(body))
}

// Voice handles an inbound call.
func (h Handlers) Voice(c *gin.Context) {
	form, err := telephony.ParseInboundForm(c.Request)
	if err != nil {
		logger.FromGin(c).Error("invalid voice webhook", "err", err)
		h.Metrics.WebhookEvent("voice", "invalid")
		twiml(c, h.Router.Fallback())
		return
	}
	h.Metrics.WebhookEvent("voice", "ok")
	twiml(c, h.Router.Inbound(c.Request.Context(), routing.InboundRequest{
		CallSID: form.CallSid,
		Called:  form.To,
		Caller:  form.From,
	}))
}

// Whisper is fetched by Twilio on the dialled leg before bridging.
func (h Handlers) Whisper(c *gin.Context) {
	called := c.Query("called")
	caller := c.Query("caller")
	if called == "" {
		logger.FromGin(c).Warn("whisper webhook without called number")
		h.Metrics.WebhookEvent("whisper", "invalid")
	} else {
		h.Metrics.WebhookEvent("whisper", "ok")
	}
	twiml(c, h.Router.Whisper(c.Request.Context(), called, caller))
}

// WhisperAudio streams an inline whisper clip stored in Postgres.
func (h Handlers) WhisperAudio(c *gin.Context) {
	a, err := h.Audio.Audio(c.Request.Context(), c.Param("number_id"))
	if errors.Is(err, whisper.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromGin(c).Error("whisper audio lookup failed", "number_id", c.Param("number_id"), "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "private, max-age=60")
	c.Data(http.StatusOK, a.MIME, a.Data)
}

// Status applies a call progress callback.
func (h Handlers) Status(c *gin.Context) {
	log := logger.FromGin(c)
	form, err := telephony.ParseStatusForm(c.Request)
	if err != nil {
		log.Warn("invalid status webhook", "err", err)
		h.Metrics.WebhookEvent("status", "invalid")
		c.Status(http.StatusOK)
		return
	}

	ev := calls.StatusEvent{
		CallSID:         form.ParentOrCallSid(),
		From:            form.From,
		To:              form.To,
		Direction:       form.Direction,
		Status:          form.CallStatus,
		DurationSeconds: form.CallDuration,
		Price:           form.Price,
		PriceUnit:       form.PriceUnit,
		Timestamp:       form.Timestamp,
	}
	if form.ParentCallSid != "" {
		ev.ChildCallSID = form.CallSid
	}
	_, err = h.Calls.HandleStatus(c.Request.Context(), ev)
	h.acknowledge(c, "status", ev.CallSID, err)
}

// Recording attaches recording metadata and bills completed recordings.
func (h Handlers) Recording(c *gin.Context) {
	form, err := telephony.ParseRecordingForm(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("invalid recording webhook", "err", err)
		h.Metrics.WebhookEvent("recording", "invalid")
		c.Status(http.StatusOK)
		return
	}
	_, err = h.Calls.HandleRecording(c.Request.Context(), calls.RecordingEvent{
		CallSID:         form.CallSid,
		RecordingSID:    form.RecordingSid,
		URL:             form.RecordingURL,
		Status:          form.RecordingStatus,
		DurationSeconds: form.RecordingDuration,
		Channels:        form.RecordingChannels,
	})
	h.acknowledge(c, "recording", form.CallSid, err)
}

// acknowledge logs the outcome and always answers 200; Twilio retries are
// not useful for our failures.
func (h Handlers) acknowledge(c *gin.Context, kind, callSID string, err error) {
	log := logger.FromGin(c)
	switch {
	case err == nil:
		h.Metrics.WebhookEvent(kind, "ok")
	case errors.Is(err, calls.ErrUnknownCall):
		log.Warn("callback for unknown call ignored", "kind", kind, "call_sid", callSID)
		h.Metrics.WebhookEvent(kind, "unknown_call")
	case errors.Is(err, calls.ErrInvalidArgument):
		log.Warn("callback rejected", "kind", kind, "call_sid", callSID, "err", err)
		h.Metrics.WebhookEvent(kind, "invalid")
	default:
		log.Error("callback failed", "kind", kind, "call_sid", callSID, "err", err)
		h.Metrics.WebhookEvent(kind, "error")
	}
	c.Status(http.StatusOK)
}

// Connect answers the agent leg of a click-to-call.
func (h Handlers) Connect(c *gin.Context) {
	h.Metrics.WebhookEvent("connect", "ok")
	twiml(c, h.Router.Connect(c.Request.Context(), c.Query("to"), c.Query("from"), c.Query("record") != "0"))
}
