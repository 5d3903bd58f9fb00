package wire_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joeycumines/go-winloop/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFrames(t *testing.T) {
	want := []wire.Message{
		{Op: wire.OpSync, Serial: 7},
		{Op: wire.OpConfigure, Window: 3, X: 640, Y: 480.5},
		{Op: wire.OpKey, Device: 2, Code: 30, Flag: true},
		{Op: wire.OpRelativeMotion, X: -1.25, Y: 3},
		{Op: wire.OpDone},
	}
	var b []byte
	for _, m := range want {
		b = wire.AppendFrame(b, m)
	}

	var got []wire.Message
	for len(b) > 0 {
		m, n, err := wire.ConsumeFrame(b)
		require.NoError(t, err)
		require.NotZero(t, n)
		got = append(got, m)
		b = b[n:]
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumeFrame_Incomplete(t *testing.T) {
	frame := wire.AppendFrame(nil, wire.Message{Op: wire.OpScale, Window: 1, X: 2})
	for i := range len(frame) {
		_, n, err := wire.ConsumeFrame(frame[:i])
		require.NoError(t, err, "prefix %d", i)
		assert.Zero(t, n, "prefix %d", i)
	}
	_, n, err := wire.ConsumeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
}

func TestConsumeFrame_TooLarge(t *testing.T) {
	b := protowire.AppendVarint(nil, wire.MaxFrameSize+1)
	_, _, err := wire.ConsumeFrame(b)
	assert.ErrorIs(t, err, wire.ErrFrameTooLarge)
}

func TestParseMessage(t *testing.T) {
	b := wire.AppendMessage(nil, wire.Message{Op: wire.OpFocus, Window: 9, Flag: true})
	// unknown fields are skipped
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "extension")
	b = protowire.AppendTag(b, 16, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	m, err := wire.ParseMessage(b)
	require.NoError(t, err)
	assert.Equal(t, wire.Message{Op: wire.OpFocus, Window: 9, Flag: true}, m)

	_, err = wire.ParseMessage(protowire.AppendVarint(protowire.AppendTag(nil, 2, protowire.VarintType), 1))
	assert.EqualError(t, err, "wire: message has no opcode")

	_, err = wire.ParseMessage([]byte{0x08})
	assert.Error(t, err, "truncated varint")
}

func TestOpcode_String(t *testing.T) {
	assert.Equal(t, "FrameDone", wire.OpFrameDone.String())
	assert.Equal(t, "Opcode(99)", wire.Opcode(99).String())
}
