package partitions

import (
	"fmt"
	"math"
)

// Partition is a group of elements handed to the assembler as one unit of
// work. Elements are listed in ascending global order.
type Partition struct {
	ID          int
	Elements    []int // Global element indices in this partition
	NumElements int
}

// PartitionLayout is a complete decomposition of the elements
type PartitionLayout struct {
	Partitions []Partition

	MaxElements   int // max(NumElements) across all partitions
	TotalElements int // Sum of all elements across partitions
	NumPartitions int

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]

	// Set when no two elements of a partition share a DOF
	Disjoint bool
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout lists %d partitions, NumPartitions is %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP has %d entries for %d elements", len(pl.EToP), pl.TotalElements)
	}

	actualMax := 0
	total := 0
	for id, p := range pl.Partitions {
		if p.ID != id {
			return fmt.Errorf("partition at position %d has ID %d", id, p.ID)
		}
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != len(Elements) %d",
				p.ID, p.NumElements, len(p.Elements))
		}
		for i, e := range p.Elements {
			if pl.GetPartition(e) != p.ID {
				return fmt.Errorf("partition %d holds element %d mapped to %d",
					p.ID, e, pl.GetPartition(e))
			}
			if i > 0 && p.Elements[i-1] >= e {
				return fmt.Errorf("partition %d: elements not strictly ascending", p.ID)
			}
		}
		actualMax = max(actualMax, p.NumElements)
		total += p.NumElements
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, expected %d", total, pl.TotalElements)
	}
	if actualMax != pl.MaxElements {
		return fmt.Errorf("computed MaxElements %d != stored MaxElements %d",
			actualMax, pl.MaxElements)
	}
	return nil
}

// PartitionStats summarises load balance
type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{NumPartitions: pl.NumPartitions}
	if pl.NumPartitions == 0 {
		return stats
	}
	stats.MinElements = math.MaxInt
	stats.AvgElements = float64(pl.TotalElements) / float64(pl.NumPartitions)
	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
	}
	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}
	return stats
}
