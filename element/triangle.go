package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// triangleGradients returns the constant shape function gradients of a
// linear triangle as rows [dN/dx; dN/dy] and its unsigned area
func triangleGradients(coords mat.Matrix) (*mat.Dense, float64, error) {
	x1, y1 := coords.At(0, 0), coords.At(0, 1)
	x2, y2 := coords.At(1, 0), coords.At(1, 1)
	x3, y3 := coords.At(2, 0), coords.At(2, 1)

	twoA := (x2-x1)*(y3-y1) - (x3-x1)*(y2-y1)
	if math.Abs(twoA) < 1e-300 {
		return nil, 0, fmt.Errorf("%w: zero area triangle", ErrDegenerate)
	}
	grad := mat.NewDense(2, 3, []float64{
		(y2 - y3) / twoA, (y3 - y1) / twoA, (y1 - y2) / twoA,
		(x3 - x2) / twoA, (x1 - x3) / twoA, (x2 - x1) / twoA,
	})
	return grad, math.Abs(twoA) / 2, nil
}

// PlaneStressTri is the constant strain triangle for linear elasticity in
// plane stress. Parameters: "E", "nu", thickness "t" (default 1) and body
// force "bx", "by" per unit volume.
type PlaneStressTri struct{}

func (PlaneStressTri) Properties() Properties {
	return Properties{
		Name:       "Linear plane stress triangle",
		ShortName:  "CST",
		Type:       Tri,
		NumNodes:   3,
		Components: 2,
		Dimensions: D2,
	}
}

func (PlaneStressTri) LocalDOF() int          { return 6 }
func (PlaneStressTri) IntegrationPoints() int { return 1 }

func (k PlaneStressTri) Evaluate(coords mat.Matrix, params Params) (*Local, error) {
	if err := checkCoords(k.Properties(), coords); err != nil {
		return nil, err
	}
	e, err := params.Require("E")
	if err != nil {
		return nil, err
	}
	nu := params.Get("nu", 0)
	t := params.Get("t", 1)
	grad, area, err := triangleGradients(coords)
	if err != nil {
		return nil, err
	}

	// strain-displacement matrix, columns ordered (u1,v1,u2,v2,u3,v3)
	b := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		dx, dy := grad.At(0, i), grad.At(1, i)
		b.Set(0, 2*i, dx)
		b.Set(1, 2*i+1, dy)
		b.Set(2, 2*i, dy)
		b.Set(2, 2*i+1, dx)
	}
	c := e / (1 - nu*nu)
	d := mat.NewDense(3, 3, []float64{
		c, c * nu, 0,
		c * nu, c, 0,
		0, 0, c * (1 - nu) / 2,
	})

	loc := NewLocal(6)
	loc.K.Product(b.T(), d, b)
	loc.K.Scale(t*area, loc.K)

	bx, by := params.Get("bx", 0), params.Get("by", 0)
	for i := 0; i < 3; i++ {
		loc.F.SetVec(2*i, t*area*bx/3)
		loc.F.SetVec(2*i+1, t*area*by/3)
	}
	return loc, nil
}

// HeatTri is the linear triangle for steady heat conduction. Parameters:
// conductivity "kappa", thickness "t" (default 1) and volumetric source "q".
type HeatTri struct{}

func (HeatTri) Properties() Properties {
	return Properties{
		Name:       "Linear conduction triangle",
		ShortName:  "HeatTri3",
		Type:       Tri,
		NumNodes:   3,
		Components: 1,
		Dimensions: D2,
	}
}

func (HeatTri) LocalDOF() int          { return 3 }
func (HeatTri) IntegrationPoints() int { return 1 }

func (k HeatTri) Evaluate(coords mat.Matrix, params Params) (*Local, error) {
	if err := checkCoords(k.Properties(), coords); err != nil {
		return nil, err
	}
	kappa, err := params.Require("kappa")
	if err != nil {
		return nil, err
	}
	t := params.Get("t", 1)
	grad, area, err := triangleGradients(coords)
	if err != nil {
		return nil, err
	}

	loc := NewLocal(3)
	loc.K.Mul(grad.T(), grad)
	loc.K.Scale(kappa*t*area, loc.K)

	q := params.Get("q", 0)
	for i := 0; i < 3; i++ {
		loc.F.SetVec(i, q*t*area/3)
	}
	return loc, nil
}
