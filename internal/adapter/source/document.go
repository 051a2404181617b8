package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"birr-rate-service/internal/domain/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// flexFloat accepts JSON numbers and numeric strings such as "1,234.50".
// Anything else decodes as absent.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = flexFloat{Value: v, Valid: true}
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat{Value: v, Valid: true}
	}
	return nil
}

func (f flexFloat) positive() (float64, bool) {
	return f.Value, f.Valid && f.Value > 0
}

type rateFields struct {
	Code     string    `json:"code"`
	Currency string    `json:"currency"`
	Buying   flexFloat `json:"buying"`
	Selling  flexFloat `json:"selling"`
	Rate     flexFloat `json:"rate"`
	Price    flexFloat `json:"price"`
	Value    flexFloat `json:"value"`
}

// rateEntry is the validated form of one decoded currency.
type rateEntry struct {
	Code    string   `validate:"required,len=3,alpha,uppercase"`
	Rate    float64  `validate:"gt=0"`
	Buying  *float64 `validate:"omitempty,gt=0"`
	Selling *float64 `validate:"omitempty,gt=0"`
}

func (f rateFields) entry(code string) rateEntry {
	e := rateEntry{Code: strings.ToUpper(strings.TrimSpace(code))}
	buying, hasBuy := f.Buying.positive()
	selling, hasSell := f.Selling.positive()
	if hasBuy {
		e.Buying = model.Float(buying)
	}
	if hasSell {
		e.Selling = model.Float(selling)
	}

	if hasBuy && hasSell {
		e.Rate = (buying + selling) / 2
		return e
	}
	for _, cand := range []flexFloat{f.Rate, f.Price, f.Value} {
		if v, ok := cand.positive(); ok {
			e.Rate = v
			break
		}
	}
	return e
}

func (e rateEntry) rate() model.Rate {
	return model.Rate{Code: e.Code, Rate: e.Rate, Buying: e.Buying, Selling: e.Selling}
}

// DecodeRates reads a rate document. Accepted shapes are a flat object keyed
// by currency code, the same object under a "rates" key, or an array of rows
// carrying "code" or "currency". Values may be numbers, numeric strings or
// objects with buying/selling and rate/price/value fields.
func DecodeRates(data []byte) ([]model.Rate, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty rate document")
	}

	var entries []rateEntry
	if data[0] == '[' {
		var rows []rateFields
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode rate rows: %w", err)
		}
		for _, row := range rows {
			code := row.Code
			if code == "" {
				code = row.Currency
			}
			entries = append(entries, row.entry(code))
		}
	} else {
		members, err := objectMembers(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode rate document: %w", err)
		}
		// Top-level codes win over the same code under "rates".
		entries = append(entries, memberEntries(members)...)
		for _, m := range members {
			if m.key != "rates" {
				continue
			}
			if inner, err := objectMembers(m.value); err == nil {
				entries = append(entries, memberEntries(inner)...)
			}
		}
	}

	rates := make([]model.Rate, 0, len(entries))
	for _, e := range entries {
		if err := validate.Struct(e); err != nil {
			continue
		}
		rates = append(rates, e.rate())
	}
	return model.NormalizeRates(rates), nil
}

type member struct {
	key   string
	value json.RawMessage
}

// objectMembers decodes a JSON object keeping key order.
func objectMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object")
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// memberEntries skips keys that cannot be currency codes.
func memberEntries(members []member) []rateEntry {
	entries := make([]rateEntry, 0, len(members))
	for _, m := range members {
		if len(strings.TrimSpace(m.key)) != 3 {
			continue
		}
		raw := bytes.TrimSpace(m.value)
		if len(raw) == 0 {
			continue
		}

		var fields rateFields
		if raw[0] == '{' {
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue
			}
		} else {
			_ = fields.Rate.UnmarshalJSON(raw)
		}
		entries = append(entries, fields.entry(m.key))
	}
	return entries
}
