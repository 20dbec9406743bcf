package solver

import (
	"errors"
	"math"

	"github.com/julienfausty/Fe2O3/sparsity"
	"gonum.org/v1/gonum/mat"
)

// DenseLU expands the system and solves it with gonum's partially pivoted
// LU. Intended for small or non-symmetric systems.
type DenseLU struct{}

func (*DenseLU) Name() string { return "lu" }

func (*DenseLU) Solve(a *sparsity.Matrix, b []float64) ([]float64, error) {
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}
	var lu mat.LU
	lu.Factorize(a.Dense())
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return nil, singular(err)
	}
	return x.RawVector().Data, nil
}

// DenseCholesky expands the system and factors it with gonum's Cholesky.
// The matrix must be symmetric positive definite.
type DenseCholesky struct{}

func (*DenseCholesky) Name() string { return "cholesky" }

func (*DenseCholesky) Solve(a *sparsity.Matrix, b []float64) ([]float64, error) {
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}
	if !a.IsSymmetric(symmetryTol) {
		return nil, ErrNotSymmetric
	}
	d := a.Dense()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, d.At(i, j))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, &PivotError{Index: -1, Pivot: math.Inf(1)}
	}
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return nil, singular(err)
	}
	return x.RawVector().Data, nil
}

// singular maps gonum's condition warning to ErrSingularSystem
func singular(err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return &PivotError{Index: -1, Pivot: float64(cond)}
	}
	return err
}
