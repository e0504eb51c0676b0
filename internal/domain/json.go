package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// JSONFloat is a float64 whose non-finite values survive encoding/json,
// which rejects IEEE infinities and NaN as bare numbers. The profit
// factor convention uses +Inf for lossless strategies, so every payload
// carrying one encodes non-finite values as the strings "Infinity",
// "-Infinity" and "NaN" instead. In-memory values stay plain float64;
// this type only appears at the (un)marshal boundary.
type JSONFloat float64

// MarshalJSON encodes non-finite values as strings.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts both numbers and the non-finite string forms.
func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"Infinity"`:
		*f = JSONFloat(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*f = JSONFloat(math.Inf(-1))
		return nil
	case `"NaN"`:
		*f = JSONFloat(math.NaN())
		return nil
	case "null":
		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse float %s: %w", data, err)
	}
	*f = JSONFloat(v)
	return nil
}

// MarshalJSON keeps the +Inf profit factor representable in evidence
// and response payloads.
func (s AlgoSummary) MarshalJSON() ([]byte, error) {
	type alias AlgoSummary
	return json.Marshal(struct {
		alias
		ProfitFactor JSONFloat `json:"profit_factor"`
	}{alias: alias(s), ProfitFactor: JSONFloat(s.ProfitFactor)})
}

// UnmarshalJSON restores non-finite profit factors.
func (s *AlgoSummary) UnmarshalJSON(data []byte) error {
	type alias AlgoSummary
	aux := struct {
		*alias
		ProfitFactor JSONFloat `json:"profit_factor"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.ProfitFactor = float64(aux.ProfitFactor)
	return nil
}

// MarshalJSON keeps lossless validate folds representable: a fold with
// wins and no losses carries a +Inf profit factor.
func (f FoldResult) MarshalJSON() ([]byte, error) {
	type alias FoldResult
	return json.Marshal(struct {
		alias
		ProfitFactor JSONFloat `json:"profit_factor"`
	}{alias: alias(f), ProfitFactor: JSONFloat(f.ProfitFactor)})
}

// UnmarshalJSON restores non-finite fold profit factors.
func (f *FoldResult) UnmarshalJSON(data []byte) error {
	type alias FoldResult
	aux := struct {
		*alias
		ProfitFactor JSONFloat `json:"profit_factor"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.ProfitFactor = float64(aux.ProfitFactor)
	return nil
}
