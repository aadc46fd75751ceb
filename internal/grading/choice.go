package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type singleChoiceStrategy struct{}

type singleChoiceSecret struct {
	CorrectOptionID string `json:"correct_option_id"`
}

type singleChoiceAnswer struct {
	OptionID string `json:"option_id"`
}

func (singleChoiceStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec singleChoiceSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.CorrectOptionID == "" {
		return Result{}, fmt.Errorf("single_choice: missing correct_option_id: %w", ErrMisconfigured)
	}
	var ans singleChoiceAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if ans.OptionID == "" {
		return Result{}, fmt.Errorf("single_choice: missing option_id: %w", ErrBadAnswer)
	}
	if ans.OptionID == sec.CorrectOptionID {
		return Result{Ok: true}, nil
	}
	return Result{Explanation: "selected option is not the correct one"}, nil
}

func (singleChoiceStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec singleChoiceSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.CorrectOptionID == "" {
		return Result{}, fmt.Errorf("single_choice: missing correct_option_id: %w", ErrMisconfigured)
	}
	return Result{
		Explanation:  "the correct option is shown",
		RevealAnswer: singleChoiceAnswer{OptionID: sec.CorrectOptionID},
	}, nil
}

type multiChoiceStrategy struct{}

type multiChoiceSecret struct {
	CorrectOptionIDs []string `json:"correct_option_ids"`
}

type multiChoiceAnswer struct {
	OptionIDs []string `json:"option_ids"`
}

func (multiChoiceStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec multiChoiceSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if len(sec.CorrectOptionIDs) == 0 {
		return Result{}, fmt.Errorf("multi_choice: empty correct_option_ids: %w", ErrMisconfigured)
	}
	var ans multiChoiceAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}

	correct := toSet(sec.CorrectOptionIDs)
	chosen := toSet(ans.OptionIDs)

	var missing, extra []string
	for id := range correct {
		if _, ok := chosen[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range chosen {
		if _, ok := correct[id]; !ok {
			extra = append(extra, id)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return Result{Ok: true}, nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "extra: "+strings.Join(extra, ", "))
	}
	return Result{Explanation: strings.Join(parts, "; ")}, nil
}

func (multiChoiceStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec multiChoiceSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if len(sec.CorrectOptionIDs) == 0 {
		return Result{}, fmt.Errorf("multi_choice: empty correct_option_ids: %w", ErrMisconfigured)
	}
	ids := append([]string(nil), sec.CorrectOptionIDs...)
	sort.Strings(ids)
	return Result{
		Explanation:  "the correct options are shown",
		RevealAnswer: multiChoiceAnswer{OptionIDs: ids},
	}, nil
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}
