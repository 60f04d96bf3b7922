package pos

import (
	"encoding/json"
	"fmt"
)

// EncodeState renders the whole aggregate as one JSON document:
// {"products":[...],"clients":[...],"sales":[...],"payments":[...]}.
func EncodeState(s *State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return b, nil
}

// DecodeState parses a document produced by EncodeState. Any parse or
// identity failure is reported as a *MalformedStateError tagged with source.
func DecodeState(source string, b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, &MalformedStateError{Source: source, Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &MalformedStateError{Source: source, Err: err}
	}
	if s.Sales == nil {
		s.Sales = []Sale{}
	}
	if s.Payments == nil {
		s.Payments = []CreditPayment{}
	}
	return &s, nil
}
