package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecsCarrySameMessages(t *testing.T) {
	messages := []Message{
		{HandlerName: "setMode", Data: "REWARDS"},
		{HandlerName: "onGetUserByEmail", Data: "a@b.c", CallbackID: "cb-1"},
		{ResponseID: "cb-1", ResponseData: `{"rewards":[]}`},
		{ResponseID: "cb-2"},
	}

	for _, codec := range []Codec{JSONCodec, CBORCodec} {
		t.Run(codec.Name(), func(t *testing.T) {
			for _, want := range messages {
				data, err := codec.Marshal(want)
				require.NoError(t, err)

				var got Message
				require.NoError(t, codec.Unmarshal(data, &got))
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestJSONWireNames(t *testing.T) {
	data, err := JSONCodec.Marshal(Message{HandlerName: "share", Data: "hi", CallbackID: "7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"handlerName":"share","data":"hi","callbackId":"7"}`, string(data))

	var msg Message
	require.NoError(t, JSONCodec.Unmarshal([]byte(`{"responseId":"7","responseData":"true"}`), &msg))
	assert.True(t, msg.IsResponse())
	assert.Equal(t, "true", msg.ResponseData)
}

func TestCodecFor(t *testing.T) {
	c, err := CodecFor("")
	require.NoError(t, err)
	assert.Equal(t, JSONCodec, c)

	c, err = CodecFor(SubprotocolCBOR)
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = CodecFor("bridge.xml")
	assert.Error(t, err)
}
