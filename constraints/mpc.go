package constraints

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// expansion is a target DOF written in terms of independent DOFs
type expansion struct {
	terms []Term // Sorted by Dof, no repeats
	value float64
}

// resolve checks the linear constraints and expands every target into
// independent DOFs. Targets whose masters are themselves targets are
// expanded after them, following a topological order of the dependency
// graph.
func resolve(linear []Linear, n int, fixed map[int]float64) (map[int]*expansion, error) {
	byTarget := make(map[int]*Linear, len(linear))
	for i := range linear {
		l := &linear[i]
		if l.Target < 0 || l.Target >= n {
			return nil, conflict(l.Target, "linear constraint target outside [0,%d)", n)
		}
		if _, dup := byTarget[l.Target]; dup {
			return nil, conflict(l.Target, "targeted by two linear constraints")
		}
		if _, ok := fixed[l.Target]; ok {
			return nil, conflict(l.Target, "both fixed and the target of a linear constraint")
		}
		for _, t := range l.Terms {
			if t.Dof < 0 || t.Dof >= n {
				return nil, conflict(l.Target, "master dof %d outside [0,%d)", t.Dof, n)
			}
			if t.Dof == l.Target {
				return nil, conflict(l.Target, "linear constraint references its own target")
			}
		}
		byTarget[l.Target] = l
	}
	if len(byTarget) == 0 {
		return nil, nil
	}

	// edge master -> dependent, only between targets
	g := simple.NewDirectedGraph()
	for t := range byTarget {
		g.AddNode(simple.Node(t))
	}
	for t, l := range byTarget {
		for _, term := range l.Terms {
			if _, dep := byTarget[term.Dof]; dep {
				g.SetEdge(simple.Edge{F: simple.Node(term.Dof), T: simple.Node(t)})
			}
		}
	}
	order, err := topo.SortStabilized(g, byID)
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) && len(cycles) > 0 && len(cycles[0]) > 0 {
			dof := slices.MinFunc(cycles[0], compareID).ID()
			return nil, conflict(int(dof), "linear constraints form a cycle of %d dofs", len(cycles[0]))
		}
		return nil, fmt.Errorf("constraints: ordering linear constraints: %w", err)
	}

	out := make(map[int]*expansion, len(order))
	for _, node := range order {
		t := int(node.ID())
		l := byTarget[t]
		acc := make(map[int]float64)
		x := &expansion{value: l.Value}
		for _, term := range l.Terms {
			if dep, ok := out[term.Dof]; ok {
				for _, d := range dep.terms {
					acc[d.Dof] += term.Coef * d.Coef
				}
				x.value += term.Coef * dep.value
				continue
			}
			acc[term.Dof] += term.Coef
		}
		for _, dof := range sortedKeys(acc) {
			if c := acc[dof]; c != 0 {
				x.terms = append(x.terms, Term{Dof: dof, Coef: c})
			}
		}
		out[t] = x
	}
	return out, nil
}

func compareID(a, b graph.Node) int { return cmp.Compare(a.ID(), b.ID()) }

func byID(nodes []graph.Node) { slices.SortFunc(nodes, compareID) }

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
