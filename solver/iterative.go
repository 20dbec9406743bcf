package solver

import (
	"log/slog"
	"math"
	"time"

	"github.com/julienfausty/Fe2O3/sparsity"
	"gonum.org/v1/gonum/floats"
)

// iteration holds the stopping rules shared by the Krylov methods
type iteration struct {
	Tolerance     float64
	MaxIterations int
	TimeBudget    time.Duration
	Jacobi        bool
	Logger        *slog.Logger
}

func (it *iteration) logger() *slog.Logger {
	if it.Logger != nil {
		return it.Logger
	}
	return slog.Default()
}

func (it *iteration) maxIterations() int {
	if it.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return it.MaxIterations
}

func (it *iteration) tolerance() float64 {
	if it.Tolerance <= 0 {
		return DefaultTolerance
	}
	return it.Tolerance
}

// expired reports whether the time budget is spent
func (it *iteration) expired(start time.Time) bool {
	return it.TimeBudget > 0 && time.Since(start) > it.TimeBudget
}

// preconditioner returns z = M^-1 r, the identity unless Jacobi is set
func (it *iteration) preconditioner(a *sparsity.Matrix) (func(z, r []float64), error) {
	if !it.Jacobi {
		return func(z, r []float64) { copy(z, r) }, nil
	}
	inv := a.Diagonal()
	for i, d := range inv {
		if d == 0 {
			return nil, &PivotError{Index: i, Pivot: 0}
		}
		inv[i] = 1 / d
	}
	return func(z, r []float64) { floats.MulTo(z, inv, r) }, nil
}

func (it *iteration) fail(method, reason string, res float64, iters int, start time.Time) error {
	err := &ConvergenceError{
		Method:     method,
		Residual:   res,
		Iterations: iters,
		Elapsed:    time.Since(start),
		Reason:     reason,
	}
	it.logger().Debug("iterative solve failed",
		"method", method, "reason", reason, "iterations", iters, "residual", res)
	return err
}

func (it *iteration) done(method string, res float64, iters int, start time.Time) {
	it.logger().Debug("iterative solve converged",
		"method", method, "iterations", iters, "residual", res, "elapsed", time.Since(start))
}

// ConjugateGradient is preconditioned CG for symmetric positive definite
// matrices
type ConjugateGradient struct {
	iteration
}

func (*ConjugateGradient) Name() string { return "cg" }

func (cg *ConjugateGradient) Solve(a *sparsity.Matrix, b []float64) ([]float64, error) {
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	x := make([]float64, n)
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return x, nil
	}
	precond, err := cg.preconditioner(a)
	if err != nil {
		return nil, err
	}
	tol := cg.tolerance()

	r := append([]float64(nil), b...)
	z := make([]float64, n)
	precond(z, r)
	p := append([]float64(nil), z...)
	ap := make([]float64, n)
	rz := floats.Dot(r, z)
	res := 1.0

	for k := 1; k <= cg.maxIterations(); k++ {
		a.MulVecTo(ap, p)
		pap := floats.Dot(p, ap)
		if pap <= 0 || math.IsNaN(pap) {
			return nil, cg.fail(cg.Name(), "matrix is not positive definite", res, k, start)
		}
		alpha := rz / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		res = floats.Norm(r, 2) / bnorm
		if res <= tol {
			cg.done(cg.Name(), res, k, start)
			return x, nil
		}
		if cg.expired(start) {
			return nil, cg.fail(cg.Name(), "time budget exhausted", res, k, start)
		}

		precond(z, r)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		// p = z + beta p
		floats.AddScaledTo(p, z, beta, p)
	}
	return nil, cg.fail(cg.Name(), "iteration limit reached", res, cg.maxIterations(), start)
}

// RestartedGMRES is right-preconditioned GMRES(m) with modified
// Gram-Schmidt and Givens rotations
type RestartedGMRES struct {
	iteration
	Restart int
}

func (*RestartedGMRES) Name() string { return "gmres" }

func (g *RestartedGMRES) Solve(a *sparsity.Matrix, b []float64) ([]float64, error) {
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	x := make([]float64, n)
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return x, nil
	}
	precond, err := g.preconditioner(a)
	if err != nil {
		return nil, err
	}
	tol := g.tolerance()
	m := g.Restart
	if m <= 0 {
		m = DefaultRestart
	}
	m = min(m, n)

	v := make([][]float64, m+1)
	for i := range v {
		v[i] = make([]float64, n)
	}
	h := make([][]float64, m+1)
	for i := range h {
		h[i] = make([]float64, m)
	}
	cs := make([]float64, m)
	sn := make([]float64, m)
	s := make([]float64, m+1)
	w := make([]float64, n)
	z := make([]float64, n)
	r := make([]float64, n)

	residual := func() float64 {
		a.MulVecTo(r, x)
		floats.SubTo(r, b, r)
		return floats.Norm(r, 2)
	}

	beta := residual()
	res := beta / bnorm
	iters := 0
	for iters < g.maxIterations() {
		if res <= tol {
			g.done(g.Name(), res, iters, start)
			return x, nil
		}
		floats.ScaleTo(v[0], 1/beta, r)
		clear(s)
		s[0] = beta

		k := 0
		for k < m && iters < g.maxIterations() {
			iters++
			precond(z, v[k])
			a.MulVecTo(w, z)
			for i := 0; i <= k; i++ {
				h[i][k] = floats.Dot(w, v[i])
				floats.AddScaled(w, -h[i][k], v[i])
			}
			h[k+1][k] = floats.Norm(w, 2)
			if h[k+1][k] != 0 {
				floats.ScaleTo(v[k+1], 1/h[k+1][k], w)
			}
			for i := 0; i < k; i++ {
				t := cs[i]*h[i][k] + sn[i]*h[i+1][k]
				h[i+1][k] = -sn[i]*h[i][k] + cs[i]*h[i+1][k]
				h[i][k] = t
			}
			denom := math.Hypot(h[k][k], h[k+1][k])
			if denom == 0 {
				return nil, g.fail(g.Name(), "breakdown", res, iters, start)
			}
			cs[k], sn[k] = h[k][k]/denom, h[k+1][k]/denom
			h[k][k], h[k+1][k] = denom, 0
			s[k+1] = -sn[k] * s[k]
			s[k] *= cs[k]
			k++
			if math.Abs(s[k])/bnorm <= tol {
				break
			}
		}

		// y = H^-1 s by back substitution, then x += M^-1 V y
		y := make([]float64, k)
		for i := k - 1; i >= 0; i-- {
			t := s[i]
			for j := i + 1; j < k; j++ {
				t -= h[i][j] * y[j]
			}
			y[i] = t / h[i][i]
		}
		clear(w)
		for i := 0; i < k; i++ {
			floats.AddScaled(w, y[i], v[i])
		}
		precond(z, w)
		floats.Add(x, z)

		beta = residual()
		res = beta / bnorm
		if res > tol && g.expired(start) {
			return nil, g.fail(g.Name(), "time budget exhausted", res, iters, start)
		}
	}
	if res <= tol {
		g.done(g.Name(), res, iters, start)
		return x, nil
	}
	return nil, g.fail(g.Name(), "iteration limit reached", res, iters, start)
}
