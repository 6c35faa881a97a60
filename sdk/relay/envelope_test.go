// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireBinaryRoundTrip(t *testing.T) {
	content := []byte{0x1f, 0x8b, 0x08, 0x00, 0xff, 0x41, 0x00}
	env := Envelope{
		Status:     http.StatusOK,
		StatusText: "200 OK",
		Headers:    map[string]string{"Content-Type": "application/gzip"},
		Payload:    BinaryPayload(content),
	}

	wire, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(wire), `"isBinary":true`)

	var got Envelope
	require.NoError(t, json.Unmarshal(wire, &got))
	assert.Equal(t, PayloadBinary, got.Payload.Kind)
	assert.Equal(t, content, got.Payload.Bytes)
	assert.Equal(t, env.Status, got.Status)
	assert.Equal(t, env.Headers, got.Headers)
}

func TestEnvelopeWireJSONAndText(t *testing.T) {
	env := Envelope{Status: 200, Payload: JSONPayload(json.RawMessage(`{"tables":["users"]}`))}
	wire, err := json.Marshal(env)
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(wire, &got))
	assert.Equal(t, PayloadJSON, got.Payload.Kind)

	var body struct {
		Tables []string `json:"tables"`
	}
	require.NoError(t, got.Payload.AsJSON(&body))
	assert.Equal(t, []string{"users"}, body.Tables)

	env = Envelope{Status: 200, Payload: TextPayload("plain text")}
	wire, err = json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(wire, &got))
	assert.Equal(t, PayloadText, got.Payload.Kind)
	assert.Equal(t, "plain text", got.Payload.Text)
}

func TestDecodeWireDataByteSeqHeuristic(t *testing.T) {
	// a real byte sequence
	p := decodeWireData(json.RawMessage(`[31,139,8,0]`), false)
	assert.Equal(t, PayloadBinary, p.Kind)
	assert.Equal(t, []byte{31, 139, 8, 0}, p.Bytes)

	// out-of-range values stay JSON
	p = decodeWireData(json.RawMessage(`[31,300,8]`), false)
	assert.Equal(t, PayloadJSON, p.Kind)

	// fractional values stay JSON
	p = decodeWireData(json.RawMessage(`[1.5,2]`), false)
	assert.Equal(t, PayloadJSON, p.Kind)

	// empty array is not bytes
	p = decodeWireData(json.RawMessage(`[]`), false)
	assert.Equal(t, PayloadJSON, p.Kind)

	// the flag forces the binary reading
	p = decodeWireData(json.RawMessage(`[]`), true)
	assert.Equal(t, PayloadBinary, p.Kind)
	assert.Empty(t, p.Bytes)
}

func TestAsBytesDecodingPaths(t *testing.T) {
	raw := []byte("col1,col2\n1,2\n")

	// binary passes through untouched
	got, err := BinaryPayload(raw).AsBytes()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// standard base64
	got, err = TextPayload(base64.StdEncoding.EncodeToString(raw)).AsBytes()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// URL-safe alphabet without padding
	urlSafe := base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff, 0x3e})
	got, err = TextPayload(urlSafe).AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfb, 0xff, 0x3e}, got)

	// not base64 at all: one byte per character code
	got, err = TextPayload("{not base64}").AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("{not base64}"), got)
}

func TestClassifyPriorities(t *testing.T) {
	jsonBody := []byte(`{"ok":true}`)

	p := Classify("application/json; charset=utf-8", "https://api.example.com/x", jsonBody)
	assert.Equal(t, PayloadJSON, p.Kind)

	// structurally JSON body wins over a text content type
	p = Classify("text/plain", "https://api.example.com/x", jsonBody)
	assert.Equal(t, PayloadJSON, p.Kind)

	// binary content type
	p = Classify("application/gzip", "https://api.example.com/x", []byte{0x1f, 0x8b})
	assert.Equal(t, PayloadBinary, p.Kind)

	// data-file extension in the URL
	p = Classify("", "https://bucket.s3.amazonaws.com/exports/users.csv.gz?sig=abc", []byte{0x1f, 0x8b})
	assert.Equal(t, PayloadBinary, p.Kind)

	// object-download path segment
	p = Classify("", "https://api.example.com/dap/object/o1", []byte{0x00, 0x01})
	assert.Equal(t, PayloadBinary, p.Kind)

	// plain text fallback
	p = Classify("text/plain", "https://api.example.com/x", []byte("hello"))
	assert.Equal(t, PayloadText, p.Kind)
	assert.Equal(t, "hello", p.Text)

	// invalid UTF-8 without any other signal is binary
	p = Classify("", "https://api.example.com/x", []byte{0xff, 0xfe, 0x00})
	assert.Equal(t, PayloadBinary, p.Kind)
}

func TestClassifyRescuesMisclassifiedURLsDocument(t *testing.T) {
	body := []byte(`{"urls":{"o1":{"url":"https://signed.example.com/f.gz"}}}`)

	// binary content type, but the body is the url-resolution document
	p := Classify("application/octet-stream", "https://api.example.com/dap/object/url", body)
	require.Equal(t, PayloadJSON, p.Kind)

	var resp struct {
		URLs map[string]struct {
			URL string `json:"url"`
		} `json:"urls"`
	}
	require.NoError(t, p.AsJSON(&resp))
	assert.Equal(t, "https://signed.example.com/f.gz", resp.URLs["o1"].URL)

	// a binary body without the key stays binary
	p = Classify("application/octet-stream", "https://api.example.com/dap/object/url", []byte(`{"other":1}`))
	assert.Equal(t, PayloadBinary, p.Kind)
}

func TestAsJSONReinterpretsBinary(t *testing.T) {
	body := []byte(`{"access_token":"abc","expires_in":3600}`)

	var got map[string]any
	require.NoError(t, BinaryPayload(body).AsJSON(&got))
	assert.Equal(t, "abc", got["access_token"])

	err := BinaryPayload([]byte{0x1f, 0x8b}).AsJSON(&got)
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	env := &Envelope{
		Status:     http.StatusForbidden,
		StatusText: "403 Forbidden",
		Payload:    JSONPayload(json.RawMessage(`{"message":"invalid client"}`)),
	}
	assert.Equal(t, "invalid client", ErrorMessage(env))

	env.Payload = JSONPayload(json.RawMessage(`{"error":"access_denied"}`))
	assert.Equal(t, "access_denied", ErrorMessage(env))

	env.Payload = TextPayload("not json")
	assert.Equal(t, "403 Forbidden", ErrorMessage(env))

	assert.Equal(t, "", ErrorMessage(nil))
}
