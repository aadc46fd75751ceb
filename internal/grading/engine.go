package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-practice/internal/judge"
)

// Exercise kinds. The set is closed: the dispatcher rejects anything else as
// a content-authoring fault rather than guessing.
const (
	KindSingleChoice     = "single_choice"
	KindMultiChoice      = "multi_choice"
	KindNumeric          = "numeric"
	KindVectorDragTarget = "vector_drag_target"
	KindVectorDragDot    = "vector_drag_dot"
	KindMatrixInput      = "matrix_input"
	KindCodeInput        = "code_input"
)

var (
	// ErrMisconfigured marks a secret payload that is missing a required
	// field for its kind. This is a generator bug, never a learner mistake,
	// and must not be graded as "incorrect".
	ErrMisconfigured = errors.New("grader misconfigured")

	// ErrBadAnswer marks a submitted payload whose shape does not match the
	// exercise kind.
	ErrBadAnswer = errors.New("invalid answer payload")
)

// Result is the outcome of grading one submission (or of a reveal).
type Result struct {
	Ok          bool   `json:"ok"`
	Explanation string `json:"explanation,omitempty"`
	// RevealAnswer is populated only by Reveal. It is a presentation-shaped
	// solution, never the raw secret payload.
	RevealAnswer interface{} `json:"reveal_answer,omitempty"`
}

// Strategy grades one exercise kind.
type Strategy interface {
	Grade(ctx context.Context, secret, submitted json.RawMessage) (Result, error)
	// Reveal constructs one valid solution for the exercise. For kinds with a
	// continuous answer space the solution is computed, not echoed, since the
	// generator may not have stored a concrete one.
	Reveal(ctx context.Context, secret json.RawMessage) (Result, error)
}

// Grader routes by kind to the matching Strategy.
type Grader interface {
	Grade(ctx context.Context, kind string, secret, submitted json.RawMessage) (Result, error)
	Reveal(ctx context.Context, kind string, secret json.RawMessage) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, kind string, secret, submitted json.RawMessage) (Result, error) {
	s, ok := g.strategies[kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown kind %q: %w", kind, ErrMisconfigured)
	}
	return s.Grade(ctx, secret, submitted)
}

func (g *defaultGrader) Reveal(ctx context.Context, kind string, secret json.RawMessage) (Result, error) {
	s, ok := g.strategies[kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown kind %q: %w", kind, ErrMisconfigured)
	}
	return s.Reveal(ctx, secret)
}

// Engine options

type Option func(*config)

type config struct {
	Judge judge.Runner // external judge for code_input
}

func WithJudge(j judge.Runner) Option { return func(c *config) { c.Judge = j } }

// NewDefaultGrader installs built-in strategies for all seven kinds.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			KindSingleChoice:     singleChoiceStrategy{},
			KindMultiChoice:      multiChoiceStrategy{},
			KindNumeric:          numericStrategy{},
			KindVectorDragTarget: vectorTargetStrategy{},
			KindVectorDragDot:    vectorDotStrategy{},
			KindMatrixInput:      matrixStrategy{},
			KindCodeInput:        codeStrategy{runner: cfg.Judge},
		},
	}
}

// decodeSecret unmarshals a secret payload, tagging failures as generator
// faults.
func decodeSecret(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty secret payload: %w", ErrMisconfigured)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("secret payload: %v: %w", err, ErrMisconfigured)
	}
	return nil
}

// decodeAnswer unmarshals a submitted payload, tagging failures as client
// validation errors.
func decodeAnswer(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing answer payload: %w", ErrBadAnswer)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("answer payload: %v: %w", err, ErrBadAnswer)
	}
	return nil
}
