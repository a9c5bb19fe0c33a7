package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Envelope{
		Request{ID: json.RawMessage(`1`), Method: "peer/join", Params: json.RawMessage(`["alice"]`)},
		Response{ID: json.RawMessage(`1`), Response: json.RawMessage(`true`)},
		ResponseError{ID: json.RawMessage(`1`), Message: "rejected"},
		Notification{Method: "peer/info", Params: json.RawMessage(`{}`)},
		Broadcast{ClientID: "peer-1", Method: "room/joined", Params: json.RawMessage(`{}`)},
		Error{Message: "boom"},
	}

	for _, want := range cases {
		data, err := Encode(want)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want.EnvelopeKind(), got.EnvelopeKind())
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	frame := []byte(`{"version":"9.9.9","kind":"notification","method":"peer/info"}`)

	_, err := Decode(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	frame := []byte(`{"version":"0.1.0","kind":"bogus"}`)

	_, err := Decode(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
}

func TestDecodeRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"request without method", `{"version":"0.1.0","kind":"request","id":1}`},
		{"response without id", `{"version":"0.1.0","kind":"response"}`},
		{"notification without method", `{"version":"0.1.0","kind":"notification"}`},
		{"broadcast without method", `{"version":"0.1.0","kind":"broadcast"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaInvalid))
		})
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
}
