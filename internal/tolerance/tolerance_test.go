package tolerance

import "testing"

func TestScalarCloseBoundary(t *testing.T) {
	const tol = 0.5
	cases := []struct {
		name string
		a, b float64
		want bool
	}{
		{"inside", 10, 10.4, true},
		{"exactly at tolerance", 10, 10.5, true},
		{"just beyond", 10, 10.5 + 1e-9, false},
		{"negative side", 10, 9.5, true},
		{"far off", 10, 12, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ScalarClose(c.a, c.b, tol); got != c.want {
				t.Fatalf("ScalarClose(%v,%v,%v)=%v want %v", c.a, c.b, tol, got, c.want)
			}
		})
	}
}

func TestVecCloseBoundary(t *testing.T) {
	const tol = 0.1
	target := Vec3{X: 1, Y: 2, Z: 3}
	if !VecClose(Vec3{X: 1.05, Y: 2, Z: 3}, target, tol) {
		t.Fatalf("expected vector inside tolerance to pass")
	}
	if !VecClose(Vec3{X: 1.1, Y: 2, Z: 3}, target, tol) {
		t.Fatalf("expected vector exactly at tolerance to pass")
	}
	if VecClose(Vec3{X: 1.11, Y: 2, Z: 3}, target, tol) {
		t.Fatalf("expected vector beyond tolerance to fail")
	}
}

func TestMagAtLeast(t *testing.T) {
	if MagAtLeast(Vec3{}, 0.25) {
		t.Fatalf("zero vector must fail the magnitude floor")
	}
	if !MagAtLeast(Vec3{X: 0.25}, 0.25) {
		t.Fatalf("vector exactly at the floor must pass")
	}
	if MagAtLeast(Vec3{X: 0.2, Y: 0.1}, 0.25) {
		t.Fatalf("short vector must fail")
	}
}

func TestOrDefaultNeverZero(t *testing.T) {
	if got := OrDefault(0, DefaultScalar); got != DefaultScalar {
		t.Fatalf("unset tolerance must fall back to default, got %v", got)
	}
	if got := OrDefault(0.25, DefaultScalar); got != 0.25 {
		t.Fatalf("explicit tolerance must win, got %v", got)
	}
}

func TestMatrixCompareShapeFirst(t *testing.T) {
	want := [][]float64{{1, 2}, {3, 4}}

	res := MatrixCompare(want, [][]float64{{1, 2, 3}, {4, 5, 6}}, 1e-6)
	if !res.ShapeMismatch {
		t.Fatalf("expected shape mismatch")
	}
	if res.WantShape.String() != "2x2" || res.GotShape.String() != "2x3" {
		t.Fatalf("expected shapes 2x2/2x3, got %s/%s", res.WantShape, res.GotShape)
	}

	res = MatrixCompare(want, [][]float64{{1, 2}, {3, 9}}, 1e-6)
	if res.ShapeMismatch || res.Ok {
		t.Fatalf("expected value mismatch, got %+v", res)
	}
	if res.BadRow != 1 || res.BadCol != 1 {
		t.Fatalf("expected failing cell (1,1), got (%d,%d)", res.BadRow, res.BadCol)
	}

	res = MatrixCompare(want, [][]float64{{1, 2}, {3, 4 + 1e-7}}, 1e-6)
	if !res.Ok {
		t.Fatalf("expected within-tolerance matrix to pass")
	}
}

func TestShapeOfRagged(t *testing.T) {
	if _, ok := ShapeOf([][]float64{{1, 2}, {3}}); ok {
		t.Fatalf("ragged matrix must not have a shape")
	}
	if _, ok := ShapeOf(nil); ok {
		t.Fatalf("empty matrix must not have a shape")
	}
}
