package telephony

import (
	"context"
	"errors"
)

// Provider is the outbound surface we need from a carrier.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	BuyNumber(ctx context.Context, req BuyNumberRequest) (BuyNumberResult, error)
	ReleaseNumber(ctx context.Context, req ReleaseNumberRequest) error

	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

var ErrProviderUnavailable = errors.New("telephony: provider unavailable")

type BuyNumberRequest struct {
	// Number is the E.164 number to purchase.
	Number string
	Label  string
	// VoiceURL is where the carrier will POST inbound calls.
	VoiceURL string
	// StatusCallbackURL receives status events for the parent leg of
	// inbound calls, including calls that never reach a forward target.
	StatusCallbackURL string
}

type BuyNumberResult struct {
	Number           string
	ProviderNumberID string
}

type ReleaseNumberRequest struct {
	Number           string
	ProviderNumberID string
}

// PlaceCallRequest starts a call from an owned number. The carrier fetches
// AnswerURL once To picks up.
type PlaceCallRequest struct {
	From                string
	To                  string
	AnswerURL           string
	StatusCallback      string
	StatusCallbackEvent []string
}

type PlaceCallResult struct {
	CallSid string
}
