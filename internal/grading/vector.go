package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mind-engage/mindengage-practice/internal/tolerance"
)

type vectorTargetStrategy struct{}

type vectorTargetSecret struct {
	TargetA   *tolerance.Vec3 `json:"target_a"`
	TargetB   *tolerance.Vec3 `json:"target_b,omitempty"`
	BLocked   bool            `json:"b_locked,omitempty"`
	Tolerance float64         `json:"tolerance,omitempty"`
}

type vectorTargetAnswer struct {
	A *tolerance.Vec3 `json:"a"`
	B *tolerance.Vec3 `json:"b,omitempty"`
}

func (vectorTargetStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec vectorTargetSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.TargetA == nil {
		return Result{}, fmt.Errorf("vector_drag_target: missing target_a: %w", ErrMisconfigured)
	}
	var ans vectorTargetAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if ans.A == nil {
		return Result{}, fmt.Errorf("vector_drag_target: missing a: %w", ErrBadAnswer)
	}
	tol := tolerance.OrDefault(sec.Tolerance, tolerance.DefaultVector)
	if !tolerance.VecClose(*ans.A, *sec.TargetA, tol) {
		return Result{Explanation: "vector a is not at the target position"}, nil
	}
	// The second vector is only graded when the exercise has one and the
	// client is allowed to move it.
	if sec.TargetB != nil && !sec.BLocked && ans.B != nil {
		if !tolerance.VecClose(*ans.B, *sec.TargetB, tol) {
			return Result{Explanation: "vector b is not at the target position"}, nil
		}
	}
	return Result{Ok: true}, nil
}

func (vectorTargetStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec vectorTargetSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.TargetA == nil {
		return Result{}, fmt.Errorf("vector_drag_target: missing target_a: %w", ErrMisconfigured)
	}
	ans := vectorTargetAnswer{A: sec.TargetA}
	if sec.TargetB != nil && !sec.BLocked {
		ans.B = sec.TargetB
	}
	return Result{Explanation: "the target position is shown", RevealAnswer: ans}, nil
}

type vectorDotStrategy struct{}

type vectorDotSecret struct {
	B            *tolerance.Vec3 `json:"b"`
	TargetDot    *float64        `json:"target_dot"`
	Tolerance    float64         `json:"tolerance,omitempty"`
	MinMagnitude float64         `json:"min_magnitude,omitempty"`
}

type vectorDotAnswer struct {
	A *tolerance.Vec3 `json:"a"`
}

func (vectorDotStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec vectorDotSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.B == nil || sec.TargetDot == nil {
		return Result{}, fmt.Errorf("vector_drag_dot: missing b or target_dot: %w", ErrMisconfigured)
	}
	var ans vectorDotAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if ans.A == nil {
		return Result{}, fmt.Errorf("vector_drag_dot: missing a: %w", ErrBadAnswer)
	}
	minMag := tolerance.OrDefault(sec.MinMagnitude, tolerance.DefaultMinMag)
	// Zero and near-zero vectors are excluded from the answer space outright.
	// This check runs before the dot product so the learner is told about the
	// magnitude rule, not a misleading dot-value mismatch.
	if !tolerance.MagAtLeast(*ans.A, minMag) {
		return Result{Explanation: fmt.Sprintf("vector is too short: the zero-vector rule requires magnitude at least %g", minMag)}, nil
	}
	tol := tolerance.OrDefault(sec.Tolerance, tolerance.DefaultScalar)
	if tolerance.ScalarClose(ans.A.Dot(*sec.B), *sec.TargetDot, tol) {
		return Result{Ok: true}, nil
	}
	return Result{Explanation: "dot product is outside the accepted tolerance"}, nil
}

// Reveal constructs one vector satisfying a·b = targetDot with magnitude
// clear of minMagnitude. There are infinitely many; the generator stores
// none, so one is built here.
func (vectorDotStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec vectorDotSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if sec.B == nil || sec.TargetDot == nil {
		return Result{}, fmt.Errorf("vector_drag_dot: missing b or target_dot: %w", ErrMisconfigured)
	}
	b := *sec.B
	bSq := b.NormSq()
	if bSq == 0 {
		return Result{}, fmt.Errorf("vector_drag_dot: b is the zero vector: %w", ErrMisconfigured)
	}
	minMag := tolerance.OrDefault(sec.MinMagnitude, tolerance.DefaultMinMag)

	// Start with the projection solution: a = (target/||b||^2) b.
	a := b.Scale(*sec.TargetDot / bSq)
	if !tolerance.MagAtLeast(a, minMag) {
		// Too short (e.g. target_dot == 0). Add a component orthogonal to b:
		// it leaves the dot product untouched while lifting the magnitude.
		ortho := orthogonalTo(b)
		need := math.Sqrt(math.Max(0, 2*minMag*minMag-a.NormSq()))
		a = a.Add(ortho.Scale(need / ortho.Norm()))
	}
	return Result{
		Explanation:  "one valid vector is shown; any vector with the required dot product works",
		RevealAnswer: vectorDotAnswer{A: &a},
	}, nil
}

// orthogonalTo returns a nonzero vector orthogonal to v.
func orthogonalTo(v tolerance.Vec3) tolerance.Vec3 {
	axis := tolerance.Vec3{X: 1}
	if math.Abs(v.X) >= math.Abs(v.Y) && math.Abs(v.X) >= math.Abs(v.Z) {
		axis = tolerance.Vec3{Y: 1}
	}
	return v.Cross(axis)
}
