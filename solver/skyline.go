package solver

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/julienfausty/Fe2O3/sparsity"
)

// symmetryTol is the relative tolerance of the symmetry check
const symmetryTol = 1e-10

// pivotTol is the smallest pivot, relative to its diagonal entry, accepted
// as positive
const pivotTol = 1e-13

// RCM returns the reverse Cuthill-McKee ordering of a structurally
// symmetric pattern: perm[new] = old. Each connected component starts from
// a lowest degree node; ties go to the lowest index.
func RCM(p *sparsity.Pattern) []int {
	n := p.NumRows()
	degree := make([]int, n)
	for r := 0; r < n; r++ {
		degree[r] = len(p.Row(r))
	}
	byDegree := func(a, b int) int {
		if degree[a] != degree[b] {
			return degree[a] - degree[b]
		}
		return a - b
	}

	starts := make([]int, n)
	for i := range starts {
		starts[i] = i
	}
	slices.SortStableFunc(starts, byDegree)

	visited := make([]bool, n)
	order := make([]int, 0, n)
	var next []int
	for _, s := range starts {
		if visited[s] {
			continue
		}
		visited[s] = true
		order = append(order, s)
		for head := len(order) - 1; head < len(order); head++ {
			next = next[:0]
			for _, c := range p.Row(order[head]) {
				if !visited[c] {
					visited[c] = true
					next = append(next, c)
				}
			}
			slices.SortFunc(next, byDegree)
			order = append(order, next...)
		}
	}
	slices.Reverse(order)
	return order
}

// Inverse returns the inverse of a permutation
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}

// PermutedBandwidth returns the bandwidth of p after renumbering by perm
func PermutedBandwidth(p *sparsity.Pattern, perm []int) int {
	inv := Inverse(perm)
	bw := 0
	for r := 0; r < p.NumRows(); r++ {
		for _, c := range p.Row(r) {
			bw = max(bw, abs(inv[r]-inv[c]))
		}
	}
	return bw
}

// Profile returns the number of entries of the lower envelope of p after
// renumbering by perm, diagonal included
func Profile(p *sparsity.Pattern, perm []int) int {
	inv := Inverse(perm)
	size := 0
	for i, old := range perm {
		first := i
		for _, c := range p.Row(old) {
			first = min(first, inv[c])
		}
		size += i - first + 1
	}
	return size
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// SkylineCholesky factors symmetric positive definite matrices in envelope
// storage after a reverse Cuthill-McKee renumbering
type SkylineCholesky struct {
	Logger *slog.Logger
}

func (*SkylineCholesky) Name() string { return "skyline" }

// envelope is the lower profile of a symmetric matrix. Row i holds the
// columns first[i]..i in vals[start[i]:start[i+1]].
type envelope struct {
	first []int
	start []int
	vals  []float64
}

func (e *envelope) row(i int) []float64 { return e.vals[e.start[i]:e.start[i+1]] }

func (s *SkylineCholesky) Solve(a *sparsity.Matrix, b []float64) ([]float64, error) {
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	if !a.IsSymmetric(symmetryTol) {
		return nil, ErrNotSymmetric
	}
	begin := time.Now()
	p := a.Pattern()
	perm := RCM(p)
	inv := Inverse(perm)

	env := &envelope{first: make([]int, n), start: make([]int, n+1)}
	for i, old := range perm {
		first := i
		for _, c := range p.Row(old) {
			first = min(first, inv[c])
		}
		env.first[i] = first
		env.start[i+1] = env.start[i] + i - first + 1
	}
	env.vals = make([]float64, env.start[n])
	for i, old := range perm {
		row := env.row(i)
		for k := p.RowPtr[old]; k < p.RowPtr[old+1]; k++ {
			if j := inv[p.ColIdx[k]]; j <= i {
				row[j-env.first[i]] = a.Values()[k]
			}
		}
	}

	if err := env.factor(perm); err != nil {
		return nil, err
	}

	y := make([]float64, n)
	for i, old := range perm {
		y[i] = b[old]
	}
	env.solve(y)
	x := make([]float64, n)
	for i, old := range perm {
		x[old] = y[i]
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("skyline solve",
		"n", n,
		"bandwidth", p.Bandwidth(),
		"rcm_bandwidth", PermutedBandwidth(p, perm),
		"profile", len(env.vals),
		"elapsed", time.Since(begin))
	return x, nil
}

// factor overwrites the envelope with its Cholesky factor L, A = L L^T
func (e *envelope) factor(perm []int) error {
	for i := range e.first {
		fi := e.first[i]
		ri := e.row(i)
		for j := fi; j < i; j++ {
			fj := e.first[j]
			rj := e.row(j)
			lo := max(fi, fj)
			s := ri[j-fi]
			for k := lo; k < j; k++ {
				s -= ri[k-fi] * rj[k-fj]
			}
			ri[j-fi] = s / rj[j-fj]
		}
		aii := ri[i-fi]
		d := aii
		for k := fi; k < i; k++ {
			d -= ri[k-fi] * ri[k-fi]
		}
		if d <= pivotTol*math.Abs(aii) || d <= 0 {
			return &PivotError{Index: perm[i], Pivot: d}
		}
		ri[i-fi] = math.Sqrt(d)
	}
	return nil
}

// solve replaces y by the solution of L L^T x = y
func (e *envelope) solve(y []float64) {
	n := len(e.first)
	for i := 0; i < n; i++ {
		fi := e.first[i]
		ri := e.row(i)
		s := y[i]
		for k := fi; k < i; k++ {
			s -= ri[k-fi] * y[k]
		}
		y[i] = s / ri[i-fi]
	}
	for i := n - 1; i >= 0; i-- {
		fi := e.first[i]
		ri := e.row(i)
		y[i] /= ri[i-fi]
		for k := fi; k < i; k++ {
			y[k] -= ri[k-fi] * y[i]
		}
	}
}
