package element

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Dimensionality uint8

const (
	D1 Dimensionality = iota + 1
	D2
	D3
)

type ElementGeometry uint8

const (
	Point ElementGeometry = iota
	Line
	Tri
)

var (
	// ErrUnknownElementType is returned when no kernel is registered for a tag
	ErrUnknownElementType = errors.New("element: unknown element type")
	// ErrDuplicateKernel is returned when a tag is defined twice
	ErrDuplicateKernel = errors.New("element: kernel already defined")
	// ErrMissingParam is returned when a required material parameter is absent
	ErrMissingParam = errors.New("element: missing parameter")
	// ErrDegenerate is returned for zero length or zero area elements
	ErrDegenerate = errors.New("element: degenerate geometry")
	// ErrGeometry is returned when the coordinate matrix has the wrong shape
	ErrGeometry = errors.New("element: coordinate shape")
)

// Properties describes the local layout a kernel expects
type Properties struct {
	Name              string          // Full descriptive name (e.g., "Linear plane stress triangle")
	ShortName         string          // Abbreviated name (e.g., "CST")
	Type              ElementGeometry // Element shape
	NumNodes          int             // Nodes per element
	Components        int             // Field components per node
	ElementComponents int             // Element-located components, appended after the node DOFs
	Dimensions        Dimensionality  // Spatial dimension of the coordinates
}

// LocalDOF returns the size of the local system implied by the layout
func (p Properties) LocalDOF() int {
	return p.NumNodes*p.Components + p.ElementComponents
}

// Params holds the material/physics parameters of an element
type Params map[string]float64

// Get returns the named parameter or def when it is absent
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Require returns the named parameter or ErrMissingParam
func (p Params) Require(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingParam, name)
	}
	return v, nil
}

// Local is the element contribution: a square stiffness block and a load vector
type Local struct {
	K *mat.Dense    // [LocalDOF x LocalDOF]
	F *mat.VecDense // [LocalDOF]
}

// NewLocal allocates a zeroed contribution of size n
func NewLocal(n int) *Local {
	return &Local{K: mat.NewDense(n, n, nil), F: mat.NewVecDense(n, nil)}
}

// Kernel computes the local contribution of one element. Implementations
// must be pure functions of their inputs: the assembler calls Evaluate
// concurrently on the same kernel value.
type Kernel interface {
	Properties() Properties

	// LocalDOF is the size of the local matrix
	LocalDOF() int

	// IntegrationPoints is the quadrature point count, for diagnostics
	IntegrationPoints() int

	// Evaluate maps the (NumNodes x Dimensions) coordinate matrix and the
	// element parameters to the local stiffness and load
	Evaluate(coords mat.Matrix, params Params) (*Local, error)
}

// checkCoords verifies the coordinate matrix against the kernel layout
func checkCoords(p Properties, coords mat.Matrix) error {
	if coords == nil {
		return fmt.Errorf("%w: nil coordinates for %s", ErrGeometry, p.ShortName)
	}
	r, c := coords.Dims()
	if r != p.NumNodes || c < int(p.Dimensions) {
		return fmt.Errorf("%w: %s expects %dx%d, got %dx%d",
			ErrGeometry, p.ShortName, p.NumNodes, p.Dimensions, r, c)
	}
	return nil
}
