package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-practice/internal/tolerance"
)

type matrixStrategy struct{}

type matrixSecret struct {
	Expected  [][]float64 `json:"expected"`
	Tolerance float64     `json:"tolerance,omitempty"`
}

type matrixAnswer struct {
	Values [][]float64 `json:"values"`
}

// matrixReveal is the presentation shape of a revealed matrix: raw values for
// re-grading plus a LaTeX rendering for display.
type matrixReveal struct {
	Values [][]float64 `json:"values"`
	Latex  string      `json:"latex"`
}

func (matrixStrategy) Grade(_ context.Context, secret, submitted json.RawMessage) (Result, error) {
	var sec matrixSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if _, ok := tolerance.ShapeOf(sec.Expected); !ok {
		return Result{}, fmt.Errorf("matrix_input: expected matrix is empty or ragged: %w", ErrMisconfigured)
	}
	var ans matrixAnswer
	if err := decodeAnswer(submitted, &ans); err != nil {
		return Result{}, err
	}
	if len(ans.Values) == 0 {
		return Result{}, fmt.Errorf("matrix_input: missing values: %w", ErrBadAnswer)
	}
	tol := tolerance.OrDefault(sec.Tolerance, tolerance.DefaultMatrix)
	cmp := tolerance.MatrixCompare(sec.Expected, ans.Values, tol)
	switch {
	case cmp.ShapeMismatch:
		return Result{Explanation: fmt.Sprintf("wrong dimensions: expected %s, got %s", cmp.WantShape, cmp.GotShape)}, nil
	case !cmp.Ok:
		return Result{Explanation: fmt.Sprintf("entry at row %d, column %d is outside the accepted tolerance", cmp.BadRow+1, cmp.BadCol+1)}, nil
	}
	return Result{Ok: true}, nil
}

func (matrixStrategy) Reveal(_ context.Context, secret json.RawMessage) (Result, error) {
	var sec matrixSecret
	if err := decodeSecret(secret, &sec); err != nil {
		return Result{}, err
	}
	if _, ok := tolerance.ShapeOf(sec.Expected); !ok {
		return Result{}, fmt.Errorf("matrix_input: expected matrix is empty or ragged: %w", ErrMisconfigured)
	}
	return Result{
		Explanation: "the expected matrix is shown",
		RevealAnswer: matrixReveal{
			Values: sec.Expected,
			Latex:  matrixLatex(sec.Expected),
		},
	}, nil
}

func matrixLatex(m [][]float64) string {
	rows := make([]string, 0, len(m))
	for _, row := range m {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rows = append(rows, strings.Join(cells, " & "))
	}
	return `\begin{bmatrix} ` + strings.Join(rows, ` \\ `) + ` \end{bmatrix}`
}
