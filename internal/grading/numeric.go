package grading

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mind-engage/mindengage-practice/internal/tolerance"
)

type numericStrategy struct{}

type numericSecret struct {
	Target    *float64 `json:"target"`
	Tolerance float64  `json:"tolerance,omitempty"`
}

type numericAnswer struct {
	Value *float64 `json:"value"`
}

func (numericStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec numericSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.Target == nil {
		return Result{}, fmt.Errorf("numeric: missing target: %w", ErrMisconfigured)
	}
	var ans numericAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if ans.Value == nil {
		return Result{}, fmt.Errorf("numeric: missing value: %w", ErrBadAnswer)
	}
	tol := tolerance.OrDefault(sec.Tolerance, tolerance.DefaultScalar)
	if tolerance.ScalarClose(*ans.Value, *sec.Target, tol) {
		return Result{Ok: true}, nil
	}
	return Result{Explanation: "value is outside the accepted tolerance"}, nil
}

func (numericStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec numericSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.Target == nil {
		return Result{}, fmt.Errorf("numeric: missing target: %w", ErrMisconfigured)
	}
	v := *sec.Target
	return Result{
		Explanation:  "the expected value is shown",
		RevealAnswer: numericAnswer{Value: &v},
	}, nil
}
