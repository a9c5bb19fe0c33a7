// Package protocol implements the broker's wire envelope schema: encoding,
// decoding, and the validation that rejects malformed frames before they
// reach a Peer.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version stamped on every envelope. Envelopes
// carrying any other value are rejected during decode.
const Version = "0.1.0"

// Kind discriminates the six envelope shapes on the wire.
type Kind string

const (
	KindRequest        Kind = "request"
	KindResponse       Kind = "response"
	KindResponseError  Kind = "response-error"
	KindNotification   Kind = "notification"
	KindBroadcast      Kind = "broadcast"
	KindError          Kind = "error"
)

// ErrSchemaInvalid is returned for any envelope that fails decode or
// validation: wrong version, missing kind-specific required fields, or an
// unrecognized kind.
var ErrSchemaInvalid = errors.New("protocol: schema invalid")

// raw mirrors the union of all envelope fields so a single json.Unmarshal
// pass can discriminate on kind before producing a typed envelope.
type raw struct {
	Version  string          `json:"version"`
	Kind     Kind            `json:"kind"`
	ID       json.RawMessage `json:"id,omitempty"`
	Method   string          `json:"method,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Message  string          `json:"message,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
}

// Envelope is the common interface satisfied by all six wire shapes.
type Envelope interface {
	EnvelopeKind() Kind
}

// Request is an RPC call from a peer to another peer (always the host).
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (Request) EnvelopeKind() Kind { return KindRequest }

// Response is a success reply correlated by ID.
type Response struct {
	ID       json.RawMessage `json:"id"`
	Response json.RawMessage `json:"response,omitempty"`
}

func (Response) EnvelopeKind() Kind { return KindResponse }

// ResponseError is an error reply correlated by ID.
type ResponseError struct {
	ID      json.RawMessage `json:"id"`
	Message string          `json:"message"`
}

func (ResponseError) EnvelopeKind() Kind { return KindResponseError }

// Notification is a fire-and-forget call to the host.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (Notification) EnvelopeKind() Kind { return KindNotification }

// Broadcast fans out to every room peer except its origin.
type Broadcast struct {
	ClientID string          `json:"clientId"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params,omitempty"`
}

func (Broadcast) EnvelopeKind() Kind { return KindBroadcast }

// Error is an unsolicited, server-originated error. Sending one is always
// immediately followed by closing the channel.
type Error struct {
	Message string `json:"message"`
}

func (Error) EnvelopeKind() Kind { return KindError }

// Encode serializes an envelope, stamping version and kind.
func Encode(e Envelope) ([]byte, error) {
	var out raw
	out.Version = Version
	out.Kind = e.EnvelopeKind()

	switch v := e.(type) {
	case Request:
		out.ID = v.ID
		out.Method = v.Method
		out.Params = v.Params
	case Response:
		out.ID = v.ID
		out.Response = v.Response
	case ResponseError:
		out.ID = v.ID
		out.Message = v.Message
	case Notification:
		out.Method = v.Method
		out.Params = v.Params
	case Broadcast:
		out.ClientID = v.ClientID
		out.Method = v.Method
		out.Params = v.Params
	case Error:
		out.Message = v.Message
	default:
		return nil, fmt.Errorf("protocol: unknown envelope type %T", e)
	}

	return json.Marshal(out)
}

// Decode parses and validates a raw frame, returning a typed Envelope or
// ErrSchemaInvalid.
func Decode(data []byte) (Envelope, error) {
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	if r.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrSchemaInvalid, r.Version)
	}

	switch r.Kind {
	case KindRequest:
		if len(r.ID) == 0 || r.Method == "" {
			return nil, fmt.Errorf("%w: request requires id and method", ErrSchemaInvalid)
		}
		return Request{ID: r.ID, Method: r.Method, Params: r.Params}, nil
	case KindResponse:
		if len(r.ID) == 0 {
			return nil, fmt.Errorf("%w: response requires id", ErrSchemaInvalid)
		}
		return Response{ID: r.ID, Response: r.Response}, nil
	case KindResponseError:
		if len(r.ID) == 0 {
			return nil, fmt.Errorf("%w: response-error requires id", ErrSchemaInvalid)
		}
		return ResponseError{ID: r.ID, Message: r.Message}, nil
	case KindNotification:
		if r.Method == "" {
			return nil, fmt.Errorf("%w: notification requires method", ErrSchemaInvalid)
		}
		return Notification{Method: r.Method, Params: r.Params}, nil
	case KindBroadcast:
		if r.Method == "" {
			return nil, fmt.Errorf("%w: broadcast requires method", ErrSchemaInvalid)
		}
		return Broadcast{ClientID: r.ClientID, Method: r.Method, Params: r.Params}, nil
	case KindError:
		return Error{Message: r.Message}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrSchemaInvalid, r.Kind)
	}
}
