package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs we send on outbound calls are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

const (
	DefaultSayVoice    = "alice"
	DefaultSayLanguage = "en-US"
)

// RenderPlayTwiML plays a single audio file to the callee.
func RenderPlayTwiML(audioURL string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", errors.New("telephony: audio url required")
	}
	return renderTwiML(twimlResponse{Verbs: []any{twimlPlay{URL: audioURL}}})
}

// RenderSayTwiML speaks text with the provider's text-to-speech.
func RenderSayTwiML(text, voice, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("telephony: text required")
	}
	if voice == "" {
		voice = DefaultSayVoice
	}
	if language == "" {
		language = DefaultSayLanguage
	}
	return renderTwiML(twimlResponse{Verbs: []any{twimlSay{Voice: voice, Language: language, Text: text}}})
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
