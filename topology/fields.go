package topology

// Location says where the components of a field live
type Location uint8

const (
	AtNodes    Location = iota // One set of components per node
	AtElements                 // One set of components per element
)

func (l Location) String() string {
	switch l {
	case AtNodes:
		return "nodes"
	case AtElements:
		return "elements"
	default:
		return "unknown"
	}
}

// Field declares a named unknown and its scalar component count
type Field struct {
	Name       string
	Components int
	Location   Location
}

// FieldSpec is the ordered list of fields of an analysis. Declaration order
// fixes the component order within a node or element.
type FieldSpec []Field

// Scalar is the spec of a single nodal unknown such as temperature
func Scalar(name string) FieldSpec {
	return FieldSpec{{Name: name, Components: 1, Location: AtNodes}}
}

// Vector is the spec of a nodal unknown with dim components such as a
// displacement
func Vector(name string, dim int) FieldSpec {
	return FieldSpec{{Name: name, Components: dim, Location: AtNodes}}
}

// Validate rejects empty specs, empty fields and duplicate names
func (fs FieldSpec) Validate() error {
	if len(fs) == 0 {
		return &TopologyError{Block: -1, Element: -1, Node: -1,
			Detail: "no fields declared", Wrapped: ErrEmptyField}
	}
	seen := make(map[string]bool, len(fs))
	for _, f := range fs {
		if f.Components <= 0 {
			return &TopologyError{Block: -1, Element: -1, Node: -1, Field: f.Name,
				Detail: "field declares no components", Wrapped: ErrEmptyField}
		}
		if f.Location != AtNodes && f.Location != AtElements {
			return &TopologyError{Block: -1, Element: -1, Node: -1, Field: f.Name,
				Detail: "unknown field location", Wrapped: ErrEmptyField}
		}
		if seen[f.Name] {
			return &TopologyError{Block: -1, Element: -1, Node: -1, Field: f.Name,
				Detail: "declared twice", Wrapped: ErrDuplicateField}
		}
		seen[f.Name] = true
	}
	return nil
}

// components returns the per-entity component count for one location
func (fs FieldSpec) components(loc Location) int {
	n := 0
	for _, f := range fs {
		if f.Location == loc {
			n += f.Components
		}
	}
	return n
}
