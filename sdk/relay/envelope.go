// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PayloadKind discriminates the three shapes a relayed body can take.
// The relay classifies the body once; downstream code switches on Kind
// instead of re-sniffing.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadJSON
	PayloadBinary
	PayloadText
)

// Payload is the tagged body of an Envelope. Exactly one of the value
// fields is meaningful, selected by Kind.
type Payload struct {
	Kind  PayloadKind
	JSON  json.RawMessage
	Bytes []byte
	Text  string
}

func JSONPayload(raw json.RawMessage) Payload { return Payload{Kind: PayloadJSON, JSON: raw} }
func BinaryPayload(b []byte) Payload          { return Payload{Kind: PayloadBinary, Bytes: b} }
func TextPayload(s string) Payload            { return Payload{Kind: PayloadText, Text: s} }

func (p Payload) IsZero() bool { return p.Kind == PayloadNone }

// AsBytes reconstructs the raw body bytes, whatever encoding the transport
// applied. Numeric byte sequences are read one value per byte; strings are
// tried as base64 (standard, then URL-safe alphabet) and fall back to one
// byte per character code.
func (p Payload) AsBytes() ([]byte, error) {
	switch p.Kind {
	case PayloadBinary:
		return p.Bytes, nil
	case PayloadText:
		if b, err := base64.StdEncoding.DecodeString(p.Text); err == nil {
			return b, nil
		}
		alt := strings.NewReplacer("-", "+", "_", "/").Replace(p.Text)
		if pad := len(alt) % 4; pad != 0 {
			alt += strings.Repeat("=", 4-pad)
		}
		if b, err := base64.StdEncoding.DecodeString(alt); err == nil {
			return b, nil
		}
		out := make([]byte, 0, len(p.Text))
		for _, r := range p.Text {
			out = append(out, byte(r))
		}
		return out, nil
	case PayloadJSON:
		return []byte(p.JSON), nil
	default:
		return nil, fmt.Errorf("empty payload")
	}
}

// AsJSON unmarshals the payload into v. Binary and text payloads are
// reinterpreted as JSON when their bytes decode to a JSON document; some
// transports lose the content-type signal and deliver JSON as raw bytes.
func (p Payload) AsJSON(v any) error {
	switch p.Kind {
	case PayloadJSON:
		return json.Unmarshal(p.JSON, v)
	case PayloadBinary, PayloadText:
		b, err := p.AsBytes()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("payload is not json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("empty payload")
	}
}

// Envelope is the normalized result of a relayed HTTP call and the unit
// every client of the relay consumes.
type Envelope struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Payload    Payload
	Redirect   string
}

// envelopeWire is the JSON form of Envelope on the proxy transport.
// Binary bodies travel as an ordered sequence of byte values (0–255)
// because the transport only carries JSON-safe values.
type envelopeWire struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       json.RawMessage   `json:"data,omitempty"`
	IsBinary   bool              `json:"isBinary,omitempty"`
	Redirect   string            `json:"redirect,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	w := envelopeWire{
		Status:     e.Status,
		StatusText: e.StatusText,
		Headers:    e.Headers,
		Redirect:   e.Redirect,
	}
	switch e.Payload.Kind {
	case PayloadJSON:
		w.Data = e.Payload.JSON
	case PayloadText:
		raw, err := json.Marshal(e.Payload.Text)
		if err != nil {
			return nil, err
		}
		w.Data = raw
	case PayloadBinary:
		vals := make([]uint16, len(e.Payload.Bytes))
		for i, b := range e.Payload.Bytes {
			vals[i] = uint16(b)
		}
		raw, err := json.Marshal(vals)
		if err != nil {
			return nil, err
		}
		w.Data = raw
		w.IsBinary = true
	}
	return json.Marshal(w)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Status = w.Status
	e.StatusText = w.StatusText
	e.Headers = w.Headers
	e.Redirect = w.Redirect
	e.Payload = decodeWireData(w.Data, w.IsBinary)
	return nil
}

// decodeWireData rebuilds the tagged payload from the wire `data` value.
// Byte-value arrays become Binary, JSON strings become Text, everything
// else stays JSON. The isBinary flag forces the binary reading for arrays.
func decodeWireData(data json.RawMessage, isBinary bool) Payload {
	if len(data) == 0 {
		return Payload{}
	}
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	switch {
	case strings.HasPrefix(trimmed, "["):
		var vals []float64
		if err := json.Unmarshal(data, &vals); err == nil && (isBinary || looksLikeByteSeq(vals)) {
			b := make([]byte, len(vals))
			for i, v := range vals {
				b[i] = byte(int(v))
			}
			return BinaryPayload(b)
		}
		return JSONPayload(data)
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return TextPayload(s)
		}
		return JSONPayload(data)
	default:
		return JSONPayload(data)
	}
}

// looksLikeByteSeq reports whether every element is an integral value in
// [0,255]. An empty array is not treated as bytes.
func looksLikeByteSeq(vals []float64) bool {
	if len(vals) == 0 {
		return false
	}
	for _, v := range vals {
		if v != float64(int(v)) || v < 0 || v > 255 {
			return false
		}
	}
	return true
}

// binaryContentTypes are content types that always mean a binary body.
var binaryContentTypes = []string{
	"application/octet-stream",
	"application/gzip",
	"application/x-gzip",
	"application/zip",
	"application/x-parquet",
	"application/vnd.apache.parquet",
}

// dataFileExtensions are file suffixes the export service produces.
var dataFileExtensions = []string{
	".gz", ".csv", ".parquet", ".zip", ".json", ".jsonl", ".tsv", ".txt",
}

// Classify determines the payload shape of a response body. Priority:
// explicit JSON content type, then a structurally-JSON body, then known
// binary content types, then filename/URL heuristics. A body classified
// binary that still reads as a JSON object carrying a "urls" key is
// reinterpreted as JSON: the transport is not payload-type-aware and
// will happily mangle the URL-resolution response.
func Classify(contentType, requestURL string, body []byte) Payload {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	if strings.Contains(ct, "application/json") {
		if json.Valid(body) {
			return JSONPayload(append(json.RawMessage(nil), body...))
		}
		return TextPayload(string(body))
	}

	binaryCT := false
	for _, b := range binaryContentTypes {
		if ct == b {
			binaryCT = true
			break
		}
	}

	if !binaryCT && isStructuredJSON(body) {
		return JSONPayload(append(json.RawMessage(nil), body...))
	}

	if binaryCT || binaryByURL(requestURL) {
		return rescueJSON(body)
	}

	if utf8.Valid(body) {
		return TextPayload(string(body))
	}
	return BinaryPayload(body)
}

// isStructuredJSON reports whether body parses as a JSON object or array.
func isStructuredJSON(body []byte) bool {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	return json.Valid(body)
}

// binaryByURL applies the filename/URL heuristics: a data-file extension
// or an object-download path segment.
func binaryByURL(rawurl string) bool {
	u := rawurl
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	lower := strings.ToLower(u)
	for _, ext := range dataFileExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.Contains(lower, "/object/") || strings.Contains(lower, "/download/")
}

// rescueJSON resolves the binary-vs-JSON tie in favor of JSON when the
// bytes decode as an object containing an expected key.
func rescueJSON(body []byte) Payload {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") && json.Valid(body) {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(body, &probe); err == nil {
			if _, ok := probe["urls"]; ok {
				return JSONPayload(append(json.RawMessage(nil), body...))
			}
		}
	}
	return BinaryPayload(body)
}

// ErrorMessage extracts a human-readable message from an error envelope,
// falling back to the status text.
func ErrorMessage(env *Envelope) string {
	if env == nil {
		return ""
	}
	var m map[string]any
	if err := env.Payload.AsJSON(&m); err == nil {
		for _, key := range []string{"message", "error", "error_description"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return env.StatusText
}
