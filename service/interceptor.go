package service

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/casepilot/casepilot/domain"
)

// interceptVerdict parses and validates a terminal resolution payload.
// The raw payload is preserved so fields beyond the schema survive
// persistence untouched.
func (s *Service) interceptVerdict(payload json.RawMessage) (*domain.StructuredOutput, error) {
	var out domain.StructuredOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &MalformedVerdictError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	out.Raw = append(json.RawMessage(nil), payload...)

	if err := s.validate.Struct(&out); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return nil, &MalformedVerdictError{
				Reason: fmt.Sprintf("field %s failed %s validation", verrs[0].Field(), verrs[0].Tag()),
			}
		}
		return nil, &MalformedVerdictError{Reason: err.Error()}
	}
	if out.ConfidenceScore < 0 || out.ConfidenceScore > 1 {
		return nil, &MalformedVerdictError{
			Reason: fmt.Sprintf("confidence_score %v outside [0, 1]", out.ConfidenceScore),
		}
	}
	return &out, nil
}
