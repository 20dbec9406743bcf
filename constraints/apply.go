package constraints

import (
	"fmt"
	"log/slog"

	"github.com/julienfausty/Fe2O3/sparsity"
)

// Options controls how a constraint set is applied
type Options struct {
	Strategy Strategy
	Penalty  float64      // Penalty magnitude, DefaultPenalty when not positive
	Logger   *slog.Logger // slog.Default() when nil
}

func (o Options) penalty() float64 {
	if o.Penalty > 0 {
		return o.Penalty
	}
	return DefaultPenalty
}

// System is a constrained global system ready for a solver. It keeps the
// DOF index space of the unconstrained system.
type System struct {
	Matrix *sparsity.Matrix
	Load   []float64

	strategy Strategy
	fixed    map[int]float64
	targets  map[int]*expansion
}

// Apply enforces set on the assembled matrix k and load f. The inputs are
// not modified. Linear constraints are always eliminated; fixed values use
// opts.Strategy.
func Apply(k *sparsity.Matrix, f []float64, set Set, opts Options) (*System, error) {
	n, c := k.Dims()
	if n != c {
		return nil, fmt.Errorf("constraints: matrix is %dx%d", n, c)
	}
	if len(f) != n {
		return nil, fmt.Errorf("constraints: load has %d entries for %d dofs", len(f), n)
	}

	fixed, err := mergeFixed(set.Fixed, n)
	if err != nil {
		return nil, err
	}
	targets, err := resolve(set.Linear, n, fixed)
	if err != nil {
		return nil, err
	}

	sys := &System{strategy: opts.Strategy, fixed: fixed, targets: targets}
	if len(targets) > 0 {
		if sys.Matrix, sys.Load, err = transform(k, f, targets); err != nil {
			return nil, err
		}
	} else {
		sys.Matrix, sys.Load = k.Clone(), append([]float64(nil), f...)
	}

	switch opts.Strategy {
	case Elimination:
		eliminate(sys.Matrix, sys.Load, fixed)
	case Penalty:
		alpha := opts.penalty()
		for d, v := range fixed {
			if err := sys.Matrix.AddAt(d, d, alpha); err != nil {
				return nil, err
			}
			sys.Load[d] += alpha * v
		}
	default:
		return nil, fmt.Errorf("constraints: unknown strategy %v", opts.Strategy)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("applied constraints",
		"strategy", opts.Strategy.String(),
		"fixed", len(fixed),
		"linear", len(targets),
		"nnz", sys.Matrix.Pattern().NNZ())
	return sys, nil
}

// mergeFixed folds identical duplicates and rejects contradictory ones
func mergeFixed(list []Fixed, n int) (map[int]float64, error) {
	fixed := make(map[int]float64, len(list))
	for _, fx := range list {
		if fx.Dof < 0 || fx.Dof >= n {
			return nil, conflict(fx.Dof, "fixed dof outside [0,%d)", n)
		}
		if v, ok := fixed[fx.Dof]; ok && v != fx.Value {
			return nil, conflict(fx.Dof, "fixed to both %g and %g", v, fx.Value)
		}
		fixed[fx.Dof] = fx.Value
	}
	return fixed, nil
}

// image lists the columns of T a DOF maps onto: itself for independent DOFs,
// its masters for targets
func image(d int, targets map[int]*expansion) []Term {
	if x, ok := targets[d]; ok {
		return x.terms
	}
	return []Term{{Dof: d, Coef: 1}}
}

// transform computes T^T K T and T^T (f - K g), where u = T v + g expresses
// every DOF through the independent ones. Target rows become identity rows
// with zero load.
func transform(k *sparsity.Matrix, f []float64, targets map[int]*expansion) (*sparsity.Matrix, []float64, error) {
	p := k.Pattern()
	vals := k.Values()
	n := p.NumRows()

	g := make([]float64, n)
	for t, x := range targets {
		g[t] = x.value
	}
	r := make([]float64, n)
	k.MulVecTo(r, g)
	for i := range r {
		r[i] = f[i] - r[i]
	}

	// fill-in: every pair of images of a stored entry
	extra := make([][]int, n)
	for a := 0; a < n; a++ {
		for kk := p.RowPtr[a]; kk < p.RowPtr[a+1]; kk++ {
			b := p.ColIdx[kk]
			if _, ta := targets[a]; !ta {
				if _, tb := targets[b]; !tb {
					continue
				}
			}
			for _, i := range image(a, targets) {
				for _, j := range image(b, targets) {
					if !p.Contains(i.Dof, j.Dof) {
						extra[i.Dof] = append(extra[i.Dof], j.Dof)
					}
				}
			}
		}
	}
	pattern := p
	for _, cols := range extra {
		if len(cols) > 0 {
			var err error
			if pattern, err = p.Union(extra); err != nil {
				return nil, nil, err
			}
			break
		}
	}

	out := sparsity.NewMatrix(pattern)
	load := make([]float64, n)
	for a := 0; a < n; a++ {
		ia := image(a, targets)
		for _, i := range ia {
			load[i.Dof] += i.Coef * r[a]
		}
		for kk := p.RowPtr[a]; kk < p.RowPtr[a+1]; kk++ {
			v := vals[kk]
			if v == 0 {
				continue
			}
			for _, i := range ia {
				for _, j := range image(p.ColIdx[kk], targets) {
					if err := out.AddAt(i.Dof, j.Dof, i.Coef*j.Coef*v); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}
	for t := range targets {
		if err := out.SetAt(t, t, 1); err != nil {
			return nil, nil, err
		}
	}
	return out, load, nil
}

// eliminate moves the known columns of fixed DOFs to the load and replaces
// their rows and columns by the identity, in one pass over the entries
func eliminate(m *sparsity.Matrix, load []float64, fixed map[int]float64) {
	if len(fixed) == 0 {
		return
	}
	p := m.Pattern()
	vals := m.Values()
	n := p.NumRows()
	isFixed := make([]bool, n)
	for d := range fixed {
		isFixed[d] = true
	}
	for r := 0; r < n; r++ {
		for kk := p.RowPtr[r]; kk < p.RowPtr[r+1]; kk++ {
			c := p.ColIdx[kk]
			switch {
			case isFixed[r]:
				if c == r {
					vals[kk] = 1
				} else {
					vals[kk] = 0
				}
			case isFixed[c]:
				load[r] -= vals[kk] * fixed[c]
				vals[kk] = 0
			}
		}
	}
	for d, v := range fixed {
		load[d] = v
	}
}

// Recover expands a solution of the constrained system to every DOF:
// eliminated targets are recomputed from their masters and, under
// elimination, fixed DOFs are set to their exact values
func (s *System) Recover(x []float64) ([]float64, error) {
	if len(x) != len(s.Load) {
		return nil, fmt.Errorf("constraints: solution has %d entries for %d dofs", len(x), len(s.Load))
	}
	u := append([]float64(nil), x...)
	if s.strategy == Elimination {
		for d, v := range s.fixed {
			u[d] = v
		}
	}
	for t, e := range s.targets {
		v := e.value
		for _, term := range e.terms {
			v += term.Coef * u[term.Dof]
		}
		u[t] = v
	}
	return u, nil
}

// Reactions returns K u - f for the unconstrained system: the support
// forces at constrained DOFs when u is a recovered solution, zero elsewhere
// up to solver accuracy
func Reactions(k *sparsity.Matrix, f, u []float64) []float64 {
	r := make([]float64, len(f))
	k.MulVecTo(r, u)
	for i := range r {
		r[i] -= f[i]
	}
	return r
}
