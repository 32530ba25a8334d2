package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"signalrelay/src/venue"
)

var (
	ErrNoAlert            = errors.New("alert: message carries no alert")
	ErrTokenCount         = errors.New("alert: instruction must have exactly 4 parts")
	ErrUnknownAction      = errors.New("alert: unknown action")
	ErrNonNumericDistance = errors.New("alert: SL and TP pips must be numeric values")
)

// envelope mirrors {"text": {"content": {"p": {"name": ..., "message": ...}}}}.
type envelope struct {
	Text struct {
		Content struct {
			P struct {
				Name    string `json:"name"`
				Message string `json:"message"`
			} `json:"p"`
		} `json:"content"`
	} `json:"text"`
}

// Alert is what the stream delivers for one fired alert.
type Alert struct {
	Name        string
	Instruction string
}

// Decode extracts the alert from a raw stream frame. Frames of any other shape,
// including non-JSON ones and frames missing name or message, yield ErrNoAlert.
func Decode(raw []byte) (Alert, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Alert{}, fmt.Errorf("%w: %v", ErrNoAlert, err)
	}
	p := env.Text.Content.P
	if p.Name == "" || p.Message == "" {
		return Alert{}, ErrNoAlert
	}
	return Alert{Name: p.Name, Instruction: p.Message}, nil
}

// Instruction is the parsed "<buy|sell> <symbol> <sl_pips> <tp_pips>" text.
type Instruction struct {
	Action         venue.Side
	Symbol         string
	StopLossPips   float64
	TakeProfitPips float64
}

// ParseInstruction lower-cases and tokenizes the alert text. The returned Symbol is upper-case.
func ParseInstruction(text string) (Instruction, error) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(parts) != 4 {
		return Instruction{}, fmt.Errorf("%w: got %d", ErrTokenCount, len(parts))
	}

	action := venue.Side(parts[0])
	if action != venue.SideBuy && action != venue.SideSell {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnknownAction, parts[0])
	}

	sl, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %q", ErrNonNumericDistance, parts[2])
	}
	tp, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %q", ErrNonNumericDistance, parts[3])
	}

	return Instruction{
		Action:         action,
		Symbol:         strings.ToUpper(parts[1]),
		StopLossPips:   sl,
		TakeProfitPips: tp,
	}, nil
}
