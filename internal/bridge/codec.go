package bridge

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/fxamacker/cbor/v2"
)

// Websocket subprotocols selecting the frame codec.
const (
	SubprotocolJSON = "bridge.json"
	SubprotocolCBOR = "bridge.cbor"
)

// Codec encodes messages for a byte-oriented transport.
type Codec interface {
	Name() string
	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
	// Binary reports whether frames are binary rather than text.
	Binary() bool
}

var (
	JSONCodec Codec = jsonCodec{}
	CBORCodec Codec = cborCodec{}
)

// CodecFor returns the codec negotiated by a websocket subprotocol. An empty
// subprotocol selects JSON, which is what a plain browser page speaks.
func CodecFor(subprotocol string) (Codec, error) {
	switch subprotocol {
	case "", SubprotocolJSON:
		return JSONCodec, nil
	case SubprotocolCBOR:
		return CBORCodec, nil
	default:
		return nil, fmt.Errorf("bridge: unsupported subprotocol %q", subprotocol)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return SubprotocolJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(msg Message) ([]byte, error) {
	return sonic.ConfigStd.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg *Message) error {
	return sonic.ConfigStd.Unmarshal(data, msg)
}

var cborEnc, _ = cbor.CanonicalEncOptions().EncMode()

type cborCodec struct{}

func (cborCodec) Name() string { return SubprotocolCBOR }
func (cborCodec) Binary() bool { return true }

func (cborCodec) Marshal(msg Message) ([]byte, error) {
	return cborEnc.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg *Message) error {
	return cbor.Unmarshal(data, msg)
}
