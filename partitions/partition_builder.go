package partitions

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/julienfausty/Fe2O3/sparsity"
	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrNotDisjoint is returned when a coloring puts two elements sharing a DOF
// into the same partition
var ErrNotDisjoint = errors.New("partitions: partition elements share a dof")

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically

	// Graph-based strategy: one partition per color class of the element
	// conflict graph, so partitions are DOF-disjoint
	ColorPartition
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case ColorPartition:
		return "color"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ColoringAlgorithm selects the gonum heuristic used by ColorPartition
type ColoringAlgorithm int

const (
	WelshPowell ColoringAlgorithm = iota
	Dsatur
	RecursiveLargestFirst
)

func (c ColoringAlgorithm) String() string {
	switch c {
	case WelshPowell:
		return "welshpowell"
	case Dsatur:
		return "dsatur"
	case RecursiveLargestFirst:
		return "rlf"
	default:
		return fmt.Sprintf("ColoringAlgorithm(%d)", int(c))
	}
}

// ParseColoring maps "welshpowell", "dsatur" or "rlf" to a ColoringAlgorithm
func ParseColoring(name string) (ColoringAlgorithm, error) {
	for _, c := range []ColoringAlgorithm{WelshPowell, Dsatur, RecursiveLargestFirst} {
		if strings.EqualFold(name, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("partitions: unknown coloring %q", name)
}

// ParseChunking maps "block" or "roundrobin" to one of the simple strategies
func ParseChunking(name string) (PartitionStrategy, error) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin} {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("partitions: unknown chunking %q", name)
}

// PartitionBuilder constructs partitions from element connectivity
type PartitionBuilder struct {
	// Element-to-DOF connectivity
	Conn sparsity.Connectivity

	// Partitioning parameters
	TargetPartitionSize int // Desired elements per partition (block/round robin)
	Strategy            PartitionStrategy
	Coloring            ColoringAlgorithm
}

// BuildPartitions creates a partition layout from the connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Conn == nil {
		return nil, fmt.Errorf("partitions: no connectivity")
	}
	nElems := pb.Conn.NumElements()

	var (
		eToP          []int
		numPartitions int
		err           error
	)
	switch pb.Strategy {
	case BlockPartition, RoundRobin:
		numPartitions = pb.calculateNumPartitions()
		eToP = pb.partitionElements(numPartitions)
	case ColorPartition:
		eToP, numPartitions, err = pb.colorElements()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("partitions: unknown strategy %v", pb.Strategy)
	}

	partitions := createPartitions(eToP, numPartitions)
	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxElements:   calculateMaxElements(partitions),
		TotalElements: nElems,
		NumPartitions: numPartitions,
		EToP:          eToP,
		Disjoint:      pb.Strategy == ColorPartition,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	if layout.Disjoint {
		if err := VerifyDisjoint(layout, pb.Conn); err != nil {
			return nil, err
		}
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count from the target size
func (pb *PartitionBuilder) calculateNumPartitions() int {
	n := pb.Conn.NumElements()
	if n == 0 {
		return 0
	}
	size := pb.TargetPartitionSize
	if size <= 0 {
		size = n
	}
	return max(1, int(math.Ceil(float64(n)/float64(size))))
}

// partitionElements assigns elements for the simple strategies
func (pb *PartitionBuilder) partitionElements(numPartitions int) []int {
	n := pb.Conn.NumElements()
	eToP := make([]int, n)
	if numPartitions == 0 {
		return eToP
	}
	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < n; i++ {
			eToP[i] = i % numPartitions
		}
	default:
		perPartition := int(math.Ceil(float64(n) / float64(numPartitions)))
		for i := 0; i < n; i++ {
			eToP[i] = min(i/perPartition, numPartitions-1)
		}
	}
	return eToP
}

// colorElements colors the element conflict graph: two elements are
// adjacent when they share a DOF. Color classes are relabelled so that
// class order follows the smallest element of each class.
func (pb *PartitionBuilder) colorElements() ([]int, int, error) {
	n := pb.Conn.NumElements()
	if n == 0 {
		return []int{}, 0, nil
	}
	g := conflictGraph(pb.Conn)

	var (
		colors map[int64]int
		err    error
	)
	switch pb.Coloring {
	case Dsatur:
		_, colors, err = coloring.Dsatur(g, nil)
	case RecursiveLargestFirst:
		_, colors = coloring.RecursiveLargestFirst(g)
	default:
		_, colors, err = coloring.WelshPowell(g, nil)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("partitions: coloring failed: %w", err)
	}

	relabel := make(map[int]int)
	eToP := make([]int, n)
	for e := 0; e < n; e++ {
		c, ok := colors[int64(e)]
		if !ok {
			return nil, 0, fmt.Errorf("partitions: element %d left uncolored", e)
		}
		p, seen := relabel[c]
		if !seen {
			p = len(relabel)
			relabel[c] = p
		}
		eToP[e] = p
	}
	return eToP, len(relabel), nil
}

// conflictGraph links every pair of elements sharing a DOF
func conflictGraph(conn sparsity.Connectivity) *simple.UndirectedGraph {
	n := conn.NumElements()
	g := simple.NewUndirectedGraph()
	for e := 0; e < n; e++ {
		g.AddNode(simple.Node(e))
	}
	byDof := make(map[int][]int)
	for e := 0; e < n; e++ {
		for _, d := range conn.ElementDofs(e) {
			byDof[d] = append(byDof[d], e)
		}
	}
	for _, elems := range byDof {
		elems = slices.Compact(elems) // ascending already; drop repeats
		for i := 0; i < len(elems); i++ {
			for j := i + 1; j < len(elems); j++ {
				if !g.HasEdgeBetween(int64(elems[i]), int64(elems[j])) {
					g.SetEdge(simple.Edge{F: simple.Node(elems[i]), T: simple.Node(elems[j])})
				}
			}
		}
	}
	return g
}

// createPartitions builds partition structures from element assignments
func createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}

// calculateMaxElements finds the largest partition
func calculateMaxElements(partitions []Partition) int {
	m := 0
	for _, p := range partitions {
		m = max(m, p.NumElements)
	}
	return m
}

// VerifyDisjoint checks that no DOF is touched by two elements of the same
// partition
func VerifyDisjoint(layout *PartitionLayout, conn sparsity.Connectivity) error {
	owner := make(map[int]int)
	for _, p := range layout.Partitions {
		clear(owner)
		for _, e := range p.Elements {
			for _, d := range conn.ElementDofs(e) {
				if prev, ok := owner[d]; ok && prev != e {
					return fmt.Errorf("%w: elements %d and %d of partition %d share dof %d",
						ErrNotDisjoint, prev, e, p.ID, d)
				}
				owner[d] = e
			}
		}
	}
	return nil
}
