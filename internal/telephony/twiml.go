package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs we emit are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName                      xml.Name      `xml:"Dial"`
	Timeout                      int           `xml:"timeout,attr,omitempty"`
	CallerID                     string        `xml:"callerId,attr,omitempty"`
	Record                       string        `xml:"record,attr,omitempty"`
	RecordingStatusCallback      string        `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackEvent string        `xml:"recordingStatusCallbackEvent,attr,omitempty"`
	Numbers                      []twimlNumber `xml:"Number"`
}

type twimlNumber struct {
	URL                 string `xml:"url,attr,omitempty"`
	StatusCallback      string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent string `xml:"statusCallbackEvent,attr,omitempty"`
	Value               string `xml:",chardata"`
}

// Say is a spoken prompt. Empty Voice/Language fall back to Twilio defaults.
type Say struct {
	Text     string
	Voice    string
	Language string
}

// DialNumber describes one <Dial><Number> leg.
type DialNumber struct {
	Number string
	// WhisperURL is fetched by Twilio on the callee leg once it answers.
	WhisperURL          string
	StatusCallback      string
	StatusCallbackEvent []string
}

// Dial describes a <Dial> verb. Record uses Twilio's values, e.g.
// "record-from-answer-dual"; empty disables recording.
type Dial struct {
	TimeoutSeconds               int
	CallerID                     string
	Record                       string
	RecordingStatusCallback      string
	RecordingStatusCallbackEvent []string
	Numbers                      []DialNumber
}

const (
	RecordFromAnswerDual = "record-from-answer-dual"
)

// Response accumulates verbs in the order they will execute.
type Response struct {
	verbs []any
	err   error
}

func NewResponse() *Response { return &Response{} }

func (r *Response) Say(s Say) *Response {
	if strings.TrimSpace(s.Text) == "" {
		return r
	}
	r.verbs = append(r.verbs, twimlSay{Voice: s.Voice, Language: s.Language, Text: s.Text})
	return r
}

func (r *Response) Play(url string) *Response {
	if strings.TrimSpace(url) == "" {
		r.setErr(errors.New("telephony: play url required"))
		return r
	}
	r.verbs = append(r.verbs, twimlPlay{URL: url})
	return r
}

func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, twimlHangup{})
	return r
}

func (r *Response) Dial(d Dial) *Response {
	if len(d.Numbers) == 0 {
		r.setErr(errors.New("telephony: dial requires at least one number"))
		return r
	}
	td := twimlDial{
		Timeout:                      d.TimeoutSeconds,
		CallerID:                     d.CallerID,
		Record:                       d.Record,
		RecordingStatusCallback:      d.RecordingStatusCallback,
		RecordingStatusCallbackEvent: strings.Join(d.RecordingStatusCallbackEvent, " "),
	}
	for _, n := range d.Numbers {
		if strings.TrimSpace(n.Number) == "" {
			r.setErr(errors.New("telephony: dial number required"))
			return r
		}
		td.Numbers = append(td.Numbers, twimlNumber{
			URL:                 n.WhisperURL,
			StatusCallback:      n.StatusCallback,
			StatusCallbackEvent: strings.Join(n.StatusCallbackEvent, " "),
			Value:               n.Number,
		})
	}
	r.verbs = append(r.verbs, td)
	return r
}

func (r *Response) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Render serialises the response with an XML declaration. An empty response
// renders as <Response></Response>, which Twilio treats as "continue".
func (r *Response) Render() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	out := twimlResponse{Verbs: r.verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
