package carrier

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML builders for the verbs this service emits.
// Intentionally avoids any provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

// StreamParameter is a custom key/value passed to the media stream's start
// event by the carrier.
type StreamParameter struct {
	Name  string
	Value string
}

// RenderStreamTwiML directs the carrier to open a bidirectional media stream
// to streamURL, forwarding the given custom parameters.
func RenderStreamTwiML(streamURL string, params []StreamParameter) (string, error) {
	if strings.TrimSpace(streamURL) == "" {
		return "", errors.New("carrier: stream url required")
	}
	stream := twimlStream{URL: streamURL}
	for _, p := range params {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: p.Name, Value: p.Value})
	}
	var r twimlResponse
	r.Verbs = append(r.Verbs, twimlConnect{Stream: stream})
	return renderTwiML(r)
}

// RenderSMSReplyTwiML wraps a reply body in a messaging response. An empty
// body renders an empty <Response/>, which tells the carrier to send nothing.
func RenderSMSReplyTwiML(body string) (string, error) {
	var r twimlResponse
	if strings.TrimSpace(body) != "" {
		r.Verbs = append(r.Verbs, twimlMessage{Body: body})
	}
	return renderTwiML(r)
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
