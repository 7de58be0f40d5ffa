package envelope

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
)

var (
	// ErrMalformed is returned for input that is not a JSON object.
	ErrMalformed = errors.New("malformed envelope")

	// ErrNoHandlerName is returned for a request envelope without a handler name.
	ErrNoHandlerName = errors.New("envelope has no handler name")
)

var api = sonic.ConfigDefault

// Field order of these structs is the wire order.
type wireCall struct {
	HandlerName string  `json:"handlerName"`
	Data        *string `json:"data,omitempty"`
	CallbackID  string  `json:"callbackId,omitempty"`
}

type wireReply struct {
	ResponseID   string  `json:"responseId"`
	ResponseData *string `json:"responseData,omitempty"`
}

// Call is an outbound invocation of a remote handler. A nil Data and an empty
// CallbackID are left out of the wire form.
type Call struct {
	HandlerName string
	Data        any
	CallbackID  string
}

// Encode returns the wire form of the call.
func (c Call) Encode() (string, error) {
	return encodeCall(c.HandlerName, encodePayload(c.Data), c.CallbackID)
}

// Kind tells which shape a Response carries.
type Kind int

const (
	KindReply Kind = iota + 1
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Response is an inbound or outbound message: either a reply to an earlier
// call or a new request. Exactly one shape is populated; the accessors of the
// other shape return zero values. Build one with NewReply, NewRequest or Parse.
//
// The payload is held as wire text so it can be decoded against a shape once
// the receiver knows which one applies.
type Response struct {
	kind        Kind
	responseID  string
	handlerName string
	callbackID  string
	payload     *string
}

// NewReply builds a reply addressed to responseID.
func NewReply(responseID string, data any) Response {
	return Response{kind: KindReply, responseID: responseID, payload: encodePayload(data)}
}

// NewRequest builds a request for handlerName. callbackID may be empty.
func NewRequest(handlerName string, data any, callbackID string) Response {
	return Response{kind: KindRequest, handlerName: handlerName, callbackID: callbackID, payload: encodePayload(data)}
}

func (r Response) Kind() Kind { return r.kind }
func (r Response) IsReply() bool { return r.kind == KindReply }
func (r Response) ResponseID() string { return r.responseID }
func (r Response) HandlerName() string { return r.handlerName }
func (r Response) CallbackID() string { return r.callbackID }
func (r Response) WantsReply() bool { return r.kind == KindRequest && r.callbackID != "" }

// Payload returns the wire text of the data and whether any was present.
func (r Response) Payload() (string, bool) {
	if r.payload == nil {
		return "", false
	}
	return *r.payload, true
}

// Decode decodes the payload against shape. An absent payload decodes to nil.
func (r Response) Decode(shape codec.Shape) any {
	if r.payload == nil {
		return nil
	}
	return codec.DecodeAs(*r.payload, shape)
}

// Encode returns the wire form.
func (r Response) Encode() (string, error) {
	switch r.kind {
	case KindReply:
		out, err := api.MarshalToString(wireReply{ResponseID: r.responseID, ResponseData: r.payload})
		if err != nil {
			return "", fmt.Errorf("encode reply: %w", err)
		}
		return out, nil
	case KindRequest:
		return encodeCall(r.handlerName, r.payload, r.callbackID)
	default:
		return "", fmt.Errorf("encode: %w", ErrMalformed)
	}
}

// Parse reads one inbound envelope. A non-empty responseId makes it a reply,
// anything else must name a handler. data and responseData may hold either a
// JSON string with encoded text or a raw JSON value.
func Parse(raw string) (Response, error) {
	if !gjson.Valid(raw) {
		return Response{}, ErrMalformed
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return Response{}, ErrMalformed
	}

	if id := root.Get("responseId"); id.Exists() && id.String() != "" {
		return Response{
			kind:       KindReply,
			responseID: id.String(),
			payload:    payloadOf(root.Get("responseData")),
		}, nil
	}

	name := root.Get("handlerName").String()
	if name == "" {
		return Response{}, ErrNoHandlerName
	}
	return Response{
		kind:        KindRequest,
		handlerName: name,
		callbackID:  root.Get("callbackId").String(),
		payload:     payloadOf(root.Get("data")),
	}, nil
}

func payloadOf(r gjson.Result) *string {
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return nil
	case r.Type == gjson.String:
		s := r.Str
		return &s
	default:
		s := r.Raw
		return &s
	}
}

func encodePayload(data any) *string {
	if data == nil {
		return nil
	}
	s := codec.Encode(data)
	return &s
}

func encodeCall(name string, payload *string, callbackID string) (string, error) {
	out, err := api.MarshalToString(wireCall{HandlerName: name, Data: payload, CallbackID: callbackID})
	if err != nil {
		return "", fmt.Errorf("encode call %s: %w", name, err)
	}
	return out, nil
}
