package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/julienfausty/Fe2O3/sparsity"
)

var (
	// ErrSingularSystem is returned when a direct factorization meets a zero
	// or non-positive pivot, or the matrix is numerically singular
	ErrSingularSystem = errors.New("solver: singular system")

	// ErrDidNotConverge is returned when an iterative method exhausts its
	// iteration or time budget before reaching the tolerance
	ErrDidNotConverge = errors.New("solver: did not converge")

	// ErrNotSymmetric is returned by methods that require a symmetric matrix
	ErrNotSymmetric = errors.New("solver: matrix is not symmetric")

	// ErrSizeMismatch is returned when the right hand side does not match
	// the matrix
	ErrSizeMismatch = errors.New("solver: size mismatch")
)

// PivotError reports the equation at which a factorization broke down.
// Index is in the caller's numbering, -1 when the backend cannot tell.
type PivotError struct {
	Index int
	Pivot float64
}

func (e *PivotError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("solver: singular system (condition estimate %g)", e.Pivot)
	}
	return fmt.Sprintf("solver: singular system: pivot %g at equation %d", e.Pivot, e.Index)
}

func (e *PivotError) Unwrap() error { return ErrSingularSystem }

// ConvergenceError carries the diagnostics of a failed iterative solve
type ConvergenceError struct {
	Method     string
	Residual   float64 // Relative residual ||b - Ax|| / ||b|| at exit
	Iterations int
	Elapsed    time.Duration
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("solver: %s did not converge: %s after %d iterations (residual %.3e, %v)",
		e.Method, e.Reason, e.Iterations, e.Residual, e.Elapsed)
}

func (e *ConvergenceError) Unwrap() error { return ErrDidNotConverge }

// Backend solves A x = b for an assembled, constrained system. A backend
// never falls back to another one; the inputs are not modified.
type Backend interface {
	Solve(a *sparsity.Matrix, b []float64) ([]float64, error)
	Name() string
}

// Kind selects between factorizations and Krylov methods
type Kind int

const (
	Direct Kind = iota
	Iterative
)

// DirectMethod selects the factorization of a Direct backend
type DirectMethod int

const (
	Skyline DirectMethod = iota // RCM-reordered envelope Cholesky
	LU                          // Dense LU with partial pivoting
	Cholesky                    // Dense Cholesky
)

// IterativeMethod selects the Krylov method of an Iterative backend
type IterativeMethod int

const (
	CG    IterativeMethod = iota // Conjugate gradients, symmetric positive definite matrices
	GMRES                        // Restarted GMRES, general matrices
)

// Preconditioner applies to both iterative methods
type Preconditioner int

const (
	NoPreconditioner Preconditioner = iota
	Jacobi
)

const (
	DefaultTolerance     = 1e-10
	DefaultMaxIterations = 10000
	DefaultRestart       = 30
)

// Options selects and tunes a backend. Zero values take the defaults.
type Options struct {
	Kind           Kind
	Direct         DirectMethod
	Iterative      IterativeMethod
	Tolerance      float64       // Relative residual target
	MaxIterations  int           // Iteration cap, counting inner GMRES steps
	Restart        int           // GMRES Krylov dimension between restarts
	TimeBudget     time.Duration // Wall clock cap, zero disables
	Preconditioner Preconditioner
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Restart <= 0 {
		o.Restart = DefaultRestart
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New builds the backend described by opts
func New(opts Options) (Backend, error) {
	o := opts.withDefaults()
	switch o.Kind {
	case Direct:
		switch o.Direct {
		case Skyline:
			return &SkylineCholesky{Logger: o.Logger}, nil
		case LU:
			return &DenseLU{}, nil
		case Cholesky:
			return &DenseCholesky{}, nil
		}
		return nil, fmt.Errorf("solver: unknown direct method %d", o.Direct)
	case Iterative:
		it := iteration{
			Tolerance:     o.Tolerance,
			MaxIterations: o.MaxIterations,
			TimeBudget:    o.TimeBudget,
			Jacobi:        o.Preconditioner == Jacobi,
			Logger:        o.Logger,
		}
		switch o.Iterative {
		case CG:
			return &ConjugateGradient{iteration: it}, nil
		case GMRES:
			return &RestartedGMRES{iteration: it, Restart: o.Restart}, nil
		}
		return nil, fmt.Errorf("solver: unknown iterative method %d", o.Iterative)
	}
	return nil, fmt.Errorf("solver: unknown backend kind %d", o.Kind)
}

// ParseKind maps "direct" or "iterative" to a Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "direct":
		return Direct, nil
	case "iterative":
		return Iterative, nil
	}
	return 0, fmt.Errorf("solver: unknown backend %q", name)
}

// ParseDirect maps "skyline", "lu" or "cholesky" to a DirectMethod
func ParseDirect(name string) (DirectMethod, error) {
	switch strings.ToLower(name) {
	case "skyline":
		return Skyline, nil
	case "lu":
		return LU, nil
	case "cholesky":
		return Cholesky, nil
	}
	return 0, fmt.Errorf("solver: unknown direct method %q", name)
}

// ParseIterative maps "cg" or "gmres" to an IterativeMethod
func ParseIterative(name string) (IterativeMethod, error) {
	switch strings.ToLower(name) {
	case "cg":
		return CG, nil
	case "gmres":
		return GMRES, nil
	}
	return 0, fmt.Errorf("solver: unknown iterative method %q", name)
}

// ParsePreconditioner maps "jacobi" or "none" to a Preconditioner
func ParsePreconditioner(name string) (Preconditioner, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return NoPreconditioner, nil
	case "jacobi":
		return Jacobi, nil
	}
	return 0, fmt.Errorf("solver: unknown preconditioner %q", name)
}

func checkSystem(a *sparsity.Matrix, b []float64) (int, error) {
	r, c := a.Dims()
	if r != c || len(b) != r {
		return 0, fmt.Errorf("%w: %dx%d matrix with %d-vector", ErrSizeMismatch, r, c, len(b))
	}
	return r, nil
}
