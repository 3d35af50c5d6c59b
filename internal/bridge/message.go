package bridge

import "errors"

// ErrClosed is returned by writes on a closed endpoint or transport.
var ErrClosed = errors.New("bridge: closed")

// ErrNotBound is returned when an endpoint has no transport yet.
var ErrNotBound = errors.New("bridge: no transport bound")

// Message is the wire envelope shared by both directions.
//
// A request names a handler and, if the sender awaits an answer, carries a
// CallbackID. A response carries ResponseID equal to that CallbackID.
type Message struct {
	HandlerName  string `json:"handlerName,omitempty" cbor:"handlerName,omitempty"`
	Data         string `json:"data,omitempty" cbor:"data,omitempty"`
	CallbackID   string `json:"callbackId,omitempty" cbor:"callbackId,omitempty"`
	ResponseID   string `json:"responseId,omitempty" cbor:"responseId,omitempty"`
	ResponseData string `json:"responseData,omitempty" cbor:"responseData,omitempty"`
}

// IsResponse reports whether m answers an earlier request.
func (m Message) IsResponse() bool {
	return m.ResponseID != ""
}

// Callback receives the single answer to a command. It is invoked exactly
// once; "" means no answer (no handler, transport failure, or teardown).
type Callback func(data string)

// Handler serves one named command. respond may be called at most once,
// from any goroutine, now or later.
type Handler func(payload string, respond Callback)

// Sync adapts a function that answers immediately.
func Sync(fn func(payload string) string) Handler {
	return func(payload string, respond Callback) {
		respond(fn(payload))
	}
}

// Notify adapts a function with nothing to answer.
func Notify(fn func(payload string)) Handler {
	return func(payload string, respond Callback) {
		fn(payload)
		respond("")
	}
}

// Transport carries messages to the peer endpoint. Inbound messages are
// handed to Endpoint.Deliver by the transport's reader.
type Transport interface {
	Write(msg Message) error
	Close() error
}
