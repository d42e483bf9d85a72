package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioAPI is the slice of *openapi.ApiService we call.
type twilioAPI interface {
	FetchAccount(sid string) (*openapi.ApiV2010Account, error)
	CreateIncomingPhoneNumber(params *openapi.CreateIncomingPhoneNumberParams) (*openapi.ApiV2010IncomingPhoneNumber, error)
	DeleteIncomingPhoneNumber(sid string, params *openapi.DeleteIncomingPhoneNumberParams) error
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

// TwilioProvider talks to the Twilio REST API.
type TwilioProvider struct {
	accountSID string
	api        twilioAPI
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{accountSID: accountSID, api: client.Api}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.accountSID == "" {
		return fmt.Errorf("%w: account sid not configured", ErrProviderUnavailable)
	}
	if _, err := p.api.FetchAccount(p.accountSID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func (p *TwilioProvider) BuyNumber(ctx context.Context, req BuyNumberRequest) (BuyNumberResult, error) {
	if err := ctx.Err(); err != nil {
		return BuyNumberResult{}, err
	}
	if strings.TrimSpace(req.Number) == "" {
		return BuyNumberResult{}, errors.New("telephony: number required")
	}

	params := &openapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(req.Number)
	if req.Label != "" {
		params.SetFriendlyName(req.Label)
	}
	if req.VoiceURL != "" {
		params.SetVoiceUrl(req.VoiceURL)
		params.SetVoiceMethod("POST")
	}
	if req.StatusCallbackURL != "" {
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackMethod("POST")
	}

	resp, err := p.api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return BuyNumberResult{}, fmt.Errorf("telephony: twilio buy number: %w", err)
	}
	out := BuyNumberResult{Number: req.Number}
	if resp != nil {
		if resp.Sid != nil {
			out.ProviderNumberID = *resp.Sid
		}
		if resp.PhoneNumber != nil && *resp.PhoneNumber != "" {
			out.Number = *resp.PhoneNumber
		}
	}
	if out.ProviderNumberID == "" {
		return BuyNumberResult{}, errors.New("telephony: twilio returned no number sid")
	}
	return out, nil
}

func (p *TwilioProvider) ReleaseNumber(ctx context.Context, req ReleaseNumberRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.ProviderNumberID == "" {
		return errors.New("telephony: provider number id required")
	}
	if err := p.api.DeleteIncomingPhoneNumber(req.ProviderNumberID, &openapi.DeleteIncomingPhoneNumberParams{}); err != nil {
		return fmt.Errorf("telephony: twilio release number: %w", err)
	}
	return nil
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if err := ctx.Err(); err != nil {
		return PlaceCallResult{}, err
	}
	if req.From == "" || req.To == "" || req.AnswerURL == "" {
		return PlaceCallResult{}, errors.New("telephony: from, to and answer url are required")
	}

	params := &openapi.CreateCallParams{}
	params.SetFrom(req.From)
	params.SetTo(req.To)
	params.SetUrl(req.AnswerURL)
	params.SetMethod("POST")
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback)
		params.SetStatusCallbackMethod("POST")
		if len(req.StatusCallbackEvent) > 0 {
			params.SetStatusCallbackEvent(req.StatusCallbackEvent)
		}
	}

	resp, err := p.api.CreateCall(params)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: twilio create call: %w", err)
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return PlaceCallResult{}, errors.New("telephony: twilio returned no call sid")
	}
	return PlaceCallResult{CallSid: *resp.Sid}, nil
}
