package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay/src/venue"
)

func TestDecode(t *testing.T) {
	a, err := Decode([]byte(`{"text":{"content":{"p":{"name":"S1","message":"buy eurusd 20 40"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, Alert{Name: "S1", Instruction: "buy eurusd 20 40"}, a)

	for _, raw := range []string{
		`not json`,
		`{"type":"pong"}`,
		`{"text":{"content":{"p":{"name":"S1"}}}}`,
		`{"text":{"content":{"p":{"message":"buy eurusd 20 40"}}}}`,
		`{"text":"plain"}`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrNoAlert, raw)
	}
}

func TestParseInstruction(t *testing.T) {
	ins, err := ParseInstruction("  BUY EurUsd 20 40 ")
	require.NoError(t, err)
	assert.Equal(t, venue.SideBuy, ins.Action)
	assert.Equal(t, "EURUSD", ins.Symbol)
	assert.Equal(t, 20.0, ins.StopLossPips)
	assert.Equal(t, 40.0, ins.TakeProfitPips)

	ins, err = ParseInstruction("sell gbpjpy 12.5 30")
	require.NoError(t, err)
	assert.Equal(t, venue.SideSell, ins.Action)
	assert.Equal(t, 12.5, ins.StopLossPips)
}

func TestParseInstructionRejects(t *testing.T) {
	cases := []struct {
		text string
		want error
	}{
		{"buy eurusd 20", ErrTokenCount},
		{"buy eurusd 20 40 extra", ErrTokenCount},
		{"", ErrTokenCount},
		{"long eurusd 20 40", ErrUnknownAction},
		{"buy eurusd twenty 40", ErrNonNumericDistance},
		{"sell eurusd 20 forty", ErrNonNumericDistance},
	}
	for _, tc := range cases {
		_, err := ParseInstruction(tc.text)
		assert.ErrorIs(t, err, tc.want, tc.text)
	}
}
