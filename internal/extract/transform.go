package extract

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/normalize"
)

// transformModelOutput converts the model's JSON object into a submission.
func transformModelOutput(obj map[string]interface{}, sms string) (*Result, error) {
	isFinancial, err := getOptionalBoolField(obj, "is_financial")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	if isFinancial != nil && !*isFinancial {
		return nil, ErrNotFinancial
	}

	// Required fields
	amount, err := getFloat64Field(obj, "amount", true)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	direction, err := getStringField(obj, "direction", true)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	description, err := getStringField(obj, "description", true)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}

	// Optional fields
	category, err := getStringField(obj, "category", false)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	currency, err := getOptionalStringField(obj, "currency")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	counterparty, err := getOptionalStringField(obj, "counterparty")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	medium, err := getOptionalStringField(obj, "medium")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	date, err := getOptionalStringField(obj, "date")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	clock, err := getOptionalStringField(obj, "time")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}
	flavor, err := getOptionalStringField(obj, "flavor")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutput: %w", err)
	}

	financial := true
	return &Result{
		Payload: normalize.Payload{
			Amount:       normalize.AmountOf(amount),
			Description:  strings.TrimSpace(description),
			Direction:    direction,
			RawText:      sms,
			Currency:     deref(currency),
			Counterparty: deref(counterparty),
			Medium:       deref(medium),
			EventDate:    deref(date),
			EventTime:    deref(clock),
		},
		Categorization: normalize.Categorization{
			Category:    category,
			Flavor:      deref(flavor),
			IsFinancial: &financial,
		},
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int: // unlikely from encoding/json, but harmless to support
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalBoolField(m map[string]interface{}, key string) (*bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case bool:
		b := val
		return &b, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want boolean or null", key, v)
	}
}
