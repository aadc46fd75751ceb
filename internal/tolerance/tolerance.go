package tolerance

import (
	"fmt"
	"math"
)

// Defaults applied when a secret payload omits its tolerance. Zero is never
// used as a default: it would demand bit-exact floating-point equality.
const (
	DefaultScalar = 1e-6
	DefaultVector = 0.01
	DefaultMatrix = 1e-6
	DefaultMinMag = 0.25
)

// OrDefault returns tol unless it is unset (<= 0), in which case def is used.
func OrDefault(tol, def float64) float64 {
	if tol > 0 {
		return tol
	}
	return def
}

// ScalarClose reports whether |a-b| <= tol.
func ScalarClose(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// Vec3 is a 3-component vector. 2D exercises leave Z at zero.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) NormSq() float64 { return v.Dot(v) }

func (v Vec3) Norm() float64 { return math.Sqrt(v.NormSq()) }

// VecClose reports whether the Euclidean distance between a and b is within
// tol. Compared in squared form; no square root needed for a threshold test.
func VecClose(a, b Vec3, tol float64) bool {
	return a.Sub(b).NormSq() <= tol*tol
}

// MagAtLeast reports whether ||v|| >= min, again without the square root so
// the boundary is not disturbed by an extra rounding step.
func MagAtLeast(v Vec3, min float64) bool {
	return v.NormSq() >= min*min
}

// Shape is a matrix dimension pair.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Cols) }

// ShapeOf returns the shape of a row-major matrix. Ragged rows yield ok=false.
func ShapeOf(m [][]float64) (Shape, bool) {
	if len(m) == 0 {
		return Shape{}, false
	}
	cols := len(m[0])
	if cols == 0 {
		return Shape{}, false
	}
	for _, row := range m[1:] {
		if len(row) != cols {
			return Shape{}, false
		}
	}
	return Shape{Rows: len(m), Cols: cols}, true
}

// MatrixCompare checks want against got: shape first, then elementwise
// closeness. A shape mismatch is reported distinctly from a value mismatch so
// callers can surface "wrong dimensions" separately from "wrong numbers".
type MatrixResult struct {
	Ok            bool
	ShapeMismatch bool
	WantShape     Shape
	GotShape      Shape
	// First failing cell when values differ (row, col), -1 otherwise.
	BadRow, BadCol int
}

func MatrixCompare(want, got [][]float64, tol float64) MatrixResult {
	res := MatrixResult{BadRow: -1, BadCol: -1}
	ws, wok := ShapeOf(want)
	gs, gok := ShapeOf(got)
	res.WantShape, res.GotShape = ws, gs
	if !wok || !gok || ws != gs {
		res.ShapeMismatch = true
		return res
	}
	for i := range want {
		for j := range want[i] {
			if !ScalarClose(want[i][j], got[i][j], tol) {
				res.BadRow, res.BadCol = i, j
				return res
			}
		}
	}
	res.Ok = true
	return res
}
