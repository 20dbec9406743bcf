package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

// Spring is a two node scalar spring of stiffness "k"
type Spring struct{}

func (Spring) Properties() Properties {
	return Properties{
		Name:       "Linear spring",
		ShortName:  "Spring",
		Type:       Line,
		NumNodes:   2,
		Components: 1,
		Dimensions: D1,
	}
}

func (s Spring) LocalDOF() int        { return 2 }
func (Spring) IntegrationPoints() int { return 0 }

func (s Spring) Evaluate(coords mat.Matrix, params Params) (*Local, error) {
	if err := checkCoords(s.Properties(), coords); err != nil {
		return nil, err
	}
	k, err := params.Require("k")
	if err != nil {
		return nil, err
	}
	loc := NewLocal(2)
	loc.K.SetRow(0, []float64{k, -k})
	loc.K.SetRow(1, []float64{-k, k})
	loc.F.SetVec(0, params.Get("f0", 0))
	loc.F.SetVec(1, params.Get("f1", 0))
	return loc, nil
}

// Bar is the two node Lagrange bar in 1D. The axial rigidity varies
// linearly from "EA" at the first node to "EA1" at the second (defaulting to
// constant), and "q" is a uniform distributed load. Integrals use
// Gauss-Legendre quadrature with Points points (2 when unset).
type Bar struct {
	Points int
}

func (Bar) Properties() Properties {
	return Properties{
		Name:       "Linear Lagrange bar",
		ShortName:  "Bar2",
		Type:       Line,
		NumNodes:   2,
		Components: 1,
		Dimensions: D1,
	}
}

func (Bar) LocalDOF() int { return 2 }

func (b Bar) IntegrationPoints() int {
	if b.Points <= 0 {
		return 2
	}
	return b.Points
}

func (b Bar) Evaluate(coords mat.Matrix, params Params) (*Local, error) {
	if err := checkCoords(b.Properties(), coords); err != nil {
		return nil, err
	}
	length := math.Abs(coords.At(1, 0) - coords.At(0, 0))
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length bar", ErrDegenerate)
	}
	ea0, err := axialRigidity(params)
	if err != nil {
		return nil, err
	}
	ea1 := params.Get("EA1", ea0)
	q := params.Get("q", 0)

	n := b.IntegrationPoints()
	s := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(s, w, 0, length)

	// derivatives of the linear shape functions are constant
	dN := [2]float64{-1 / length, 1 / length}
	loc := NewLocal(2)
	for p := range s {
		xi := s[p] / length
		ea := ea0 + (ea1-ea0)*xi
		shape := [2]float64{1 - xi, xi}
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				loc.K.Set(i, j, loc.K.At(i, j)+w[p]*ea*dN[i]*dN[j])
			}
			loc.F.SetVec(i, loc.F.AtVec(i)+w[p]*q*shape[i])
		}
	}
	return loc, nil
}

// Truss is a two node axial member in Dim dimensions, parameters "E" and
// "A" (or "EA"). The stiffness is expressed in the global frame.
type Truss struct {
	Dim int
}

func (t Truss) Properties() Properties {
	return Properties{
		Name:       fmt.Sprintf("%dD truss member", t.Dim),
		ShortName:  fmt.Sprintf("Truss%d", t.Dim),
		Type:       Line,
		NumNodes:   2,
		Components: t.Dim,
		Dimensions: Dimensionality(t.Dim),
	}
}

func (t Truss) LocalDOF() int         { return 2 * t.Dim }
func (Truss) IntegrationPoints() int { return 1 }

func (t Truss) Evaluate(coords mat.Matrix, params Params) (*Local, error) {
	if t.Dim < 1 || t.Dim > 3 {
		return nil, fmt.Errorf("%w: truss dimension %d", ErrGeometry, t.Dim)
	}
	if err := checkCoords(t.Properties(), coords); err != nil {
		return nil, err
	}
	d := make([]float64, t.Dim)
	for i := range d {
		d[i] = coords.At(1, i) - coords.At(0, i)
	}
	length := floats.Norm(d, 2)
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length truss", ErrDegenerate)
	}
	ea, err := axialRigidity(params)
	if err != nil {
		return nil, err
	}
	floats.Scale(1/length, d)

	// K = EA/L [cc^T -cc^T; -cc^T cc^T]
	cc := mat.NewDense(t.Dim, t.Dim, nil)
	cc.Outer(ea/length, mat.NewVecDense(t.Dim, d), mat.NewVecDense(t.Dim, d))
	loc := NewLocal(2 * t.Dim)
	for bi := 0; bi < 2; bi++ {
		for bj := 0; bj < 2; bj++ {
			sign := 1.0
			if bi != bj {
				sign = -1
			}
			for i := 0; i < t.Dim; i++ {
				for j := 0; j < t.Dim; j++ {
					loc.K.Set(bi*t.Dim+i, bj*t.Dim+j, sign*cc.At(i, j))
				}
			}
		}
	}
	return loc, nil
}

func axialRigidity(params Params) (float64, error) {
	if ea, ok := params["EA"]; ok {
		return ea, nil
	}
	e, err := params.Require("E")
	if err != nil {
		return 0, err
	}
	a, err := params.Require("A")
	if err != nil {
		return 0, err
	}
	return e * a, nil
}
