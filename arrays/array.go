package arrays

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrShape is returned when a shape does not match the data it describes
	ErrShape = errors.New("arrays: incompatible shape")
	// ErrIndex is returned when a multi index does not fit the shape
	ErrIndex = errors.New("arrays: index out of range")
)

// Array holds flat data together with a row-major shape
type Array[T any] struct {
	Data  []T   // Flat storage, len == product(Shape)
	Shape []int // Extent along each dimension
}

// New wraps data with the given shape
func New[T any](data []T, shape ...int) (Array[T], error) {
	a := Array[T]{Data: data}
	if err := a.Reshape(shape...); err != nil {
		return Array[T]{}, err
	}
	return a, nil
}

// Zeros allocates an array of the given shape filled with the zero value
func Zeros[T any](shape ...int) Array[T] {
	return Array[T]{
		Data:  make([]T, product(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// Len returns the number of stored values
func (a Array[T]) Len() int { return len(a.Data) }

// Rank returns the number of dimensions
func (a Array[T]) Rank() int { return len(a.Shape) }

// Dim returns the extent of dimension d, or 0 if d is outside the shape
func (a Array[T]) Dim(d int) int {
	if d < 0 || d >= len(a.Shape) {
		return 0
	}
	return a.Shape[d]
}

// Reshape changes the shape without touching the data
func (a *Array[T]) Reshape(shape ...int) error {
	for _, s := range shape {
		if s < 0 {
			return fmt.Errorf("%w: negative extent in %v", ErrShape, shape)
		}
	}
	if product(shape) != len(a.Data) {
		return fmt.Errorf("%w: %v holds %d values, data has %d",
			ErrShape, shape, product(shape), len(a.Data))
	}
	a.Shape = slices.Clone(shape)
	return nil
}

// Resize grows or truncates the data to fit shape, filling new slots with value
func (a *Array[T]) Resize(value T, shape ...int) error {
	n := product(shape)
	switch {
	case n < len(a.Data):
		a.Data = a.Data[:n]
	case n > len(a.Data):
		for len(a.Data) < n {
			a.Data = append(a.Data, value)
		}
	}
	return a.Reshape(shape...)
}

// FlatIndex converts a multi index into the row-major flat position
func (a Array[T]) FlatIndex(idx ...int) (int, error) {
	if len(idx) != len(a.Shape) {
		return 0, fmt.Errorf("%w: index rank %d, shape rank %d", ErrIndex, len(idx), len(a.Shape))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= a.Shape[d] {
			return 0, fmt.Errorf("%w: %v in shape %v", ErrIndex, idx, a.Shape)
		}
		flat = flat*a.Shape[d] + i
	}
	return flat, nil
}

// MultiIndex is the inverse of FlatIndex
func (a Array[T]) MultiIndex(flat int) ([]int, error) {
	if flat < 0 || flat >= len(a.Data) {
		return nil, fmt.Errorf("%w: flat %d, len %d", ErrIndex, flat, len(a.Data))
	}
	idx := make([]int, len(a.Shape))
	for d := len(a.Shape) - 1; d >= 0; d-- {
		idx[d] = flat % a.Shape[d]
		flat /= a.Shape[d]
	}
	return idx, nil
}

// At returns the value stored at a multi index
func (a Array[T]) At(idx ...int) (T, error) {
	flat, err := a.FlatIndex(idx...)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.Data[flat], nil
}

// Set stores v at a multi index
func (a Array[T]) Set(v T, idx ...int) error {
	flat, err := a.FlatIndex(idx...)
	if err != nil {
		return err
	}
	a.Data[flat] = v
	return nil
}

// Row returns the i-th slab along the first dimension, sharing storage
func (a Array[T]) Row(i int) []T {
	if len(a.Shape) == 0 || i < 0 || i >= a.Shape[0] {
		return nil
	}
	stride := 1
	for _, s := range a.Shape[1:] {
		stride *= s
	}
	return a.Data[i*stride : (i+1)*stride : (i+1)*stride]
}

// Clone returns a deep copy
func (a Array[T]) Clone() Array[T] {
	return Array[T]{
		Data:  append([]T(nil), a.Data...),
		Shape: append([]int(nil), a.Shape...),
	}
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
