package strategy

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var ErrValidation = errors.New("strategy: invalid input")

// ValidationError lists the offending fields. errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "strategy: invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Input is the editable part of a strategy. Nil numbers fall back to defaults on create
// and keep the stored value on update; an empty password on update keeps the stored one.
type Input struct {
	Name           string   `json:"name"`
	RiskPercentage *float64 `json:"risk_percentage"`
	AccountID      string   `json:"account_id"`
	Password       string   `json:"password"`
	Server         string   `json:"server"`
	Directory      string   `json:"directory"`
	WebsocketURL   string   `json:"websocket_url"`
	Commission     *float64 `json:"commission"`
}

func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Server = strings.TrimSpace(in.Server)
	in.Directory = strings.TrimSpace(in.Directory)
	in.WebsocketURL = strings.TrimSpace(in.WebsocketURL)
}

func validate(name string, risk, commission float64, accountID, server, directory, wsURL string, hasPassword bool) error {
	fields := map[string]string{}

	if name == "" {
		fields["name"] = "is required"
	} else if len(name) > 150 {
		fields["name"] = "must be at most 150 characters"
	}
	if risk <= 0 || risk > 100 {
		fields["risk_percentage"] = "must be greater than 0 and at most 100"
	}
	if commission < 0 {
		fields["commission"] = "must not be negative"
	}
	if accountID == "" {
		fields["account_id"] = "is required"
	} else if _, err := strconv.ParseUint(accountID, 10, 64); err != nil {
		fields["account_id"] = "must be numeric"
	}
	if !hasPassword {
		fields["password"] = "is required"
	}
	if server == "" {
		fields["server"] = "is required"
	}
	if directory == "" {
		fields["directory"] = "is required"
	}
	if wsURL == "" {
		fields["websocket_url"] = "is required"
	} else if u, err := url.Parse(wsURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		fields["websocket_url"] = "must be a ws:// or wss:// URL"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
