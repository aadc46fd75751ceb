package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-practice/internal/judge"
)

type codeStrategy struct {
	runner judge.Runner
}

type codeTestCase struct {
	Stdin  string `json:"stdin,omitempty"`
	Stdout string `json:"stdout"`
	Match  string `json:"match,omitempty"` // exact|includes, default exact
}

type codeSecret struct {
	// Single-output form.
	ExpectedStdout *string `json:"expected_stdout,omitempty"`
	Match          string  `json:"match,omitempty"`
	// Multi-case form; takes precedence when present.
	Tests []codeTestCase `json:"tests,omitempty"`
	// Optional sample solution used by reveal.
	SolutionCode string `json:"solution_code,omitempty"`
	Language     string `json:"language,omitempty"`
}

type codeAnswer struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

// codeReveal carries either a sample solution or, when none was authored, the
// expected outputs per test case.
type codeReveal struct {
	Code     string         `json:"code,omitempty"`
	Language string         `json:"language,omitempty"`
	Expected []codeTestCase `json:"expected,omitempty"`
}

func (s codeStrategy) Grade(ctx context.Context, secret, submitted json.RawMessage) (Result, error) {
	sec, err := parseCodeSecret(secret)
	if err != nil {
		return Result{}, err
	}
	if s.runner == nil {
		return Result{}, fmt.Errorf("code_input: no judge configured: %w", ErrMisconfigured)
	}
	var ans codeAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if ans.Code == "" || ans.Language == "" {
		return Result{}, fmt.Errorf("code_input: code and language are required: %w", ErrBadAnswer)
	}

	cases := sec.Tests
	if len(cases) == 0 {
		cases = []codeTestCase{{Stdin: ans.Stdin, Stdout: *sec.ExpectedStdout, Match: sec.Match}}
	}
	for i, tc := range cases {
		v, err := s.runner.Run(ctx, ans.Code, ans.Language, tc.Stdin)
		if err != nil {
			return Result{}, err
		}
		if v.ExitCode != 0 {
			return Result{Explanation: fmt.Sprintf("program exited with status %d on test %d", v.ExitCode, i+1)}, nil
		}
		if !outputMatches(v.Stdout, tc.Stdout, tc.Match) {
			return Result{Explanation: fmt.Sprintf("output did not match on test %d of %d", i+1, len(cases))}, nil
		}
	}
	return Result{Ok: true}, nil
}

func (s codeStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	sec, err := parseCodeSecret(secret)
	if err != nil {
		return Result{}, err
	}
	if sec.SolutionCode != "" {
		return Result{
			Explanation:  "one working solution is shown",
			RevealAnswer: codeReveal{Code: sec.SolutionCode, Language: sec.Language},
		}, nil
	}
	expected := sec.Tests
	if len(expected) == 0 {
		expected = []codeTestCase{{Stdout: *sec.ExpectedStdout, Match: sec.Match}}
	}
	return Result{
		Explanation:  "the expected output is shown",
		RevealAnswer: codeReveal{Expected: expected},
	}, nil
}

func parseCodeSecret(secret json.RawMessage) (codeSecret, error) {
	var sec codeSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return sec, err
	}
	if len(sec.Tests) == 0 && sec.ExpectedStdout == nil {
		return sec, fmt.Errorf("code_input: need expected_stdout or tests: %w", ErrMisconfigured)
	}
	for _, tc := range sec.Tests {
		if tc.Stdout == "" {
			return sec, fmt.Errorf("code_input: test case without stdout: %w", ErrMisconfigured)
		}
	}
	return sec, nil
}

func outputMatches(got, want, match string) bool {
	switch match {
	case "includes":
		return strings.Contains(got, want)
	default: // exact, modulo trailing whitespace
		return strings.TrimRight(got, " \n\r\t") == strings.TrimRight(want, " \n\r\t")
	}
}
