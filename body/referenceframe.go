package body

import "github.com/pkg/errors"

// ReferenceFrame selects the convention a frame-level quantity (velocity,
// Jacobian, force) is expressed in.
type ReferenceFrame int

const (
	// Local expresses quantities along the frame's own axes.
	Local ReferenceFrame = iota
	// World expresses quantities along the global axes.
	World
	// LocalWorldAligned uses the frame's origin with globally aligned axes.
	LocalWorldAligned
)

// String implements fmt.Stringer.
func (rf ReferenceFrame) String() string {
	switch rf {
	case Local:
		return "local"
	case World:
		return "world"
	case LocalWorldAligned:
		return "local_world_aligned"
	default:
		return "unknown"
	}
}

// Valid reports whether rf is one of the known conventions.
func (rf ReferenceFrame) Valid() bool {
	return rf == Local || rf == World || rf == LocalWorldAligned
}

// ParseReferenceFrame maps a convention name to its enum value.
func ParseReferenceFrame(s string) (ReferenceFrame, error) {
	switch s {
	case "local":
		return Local, nil
	case "world":
		return World, nil
	case "local_world_aligned":
		return LocalWorldAligned, nil
	default:
		return 0, errors.Errorf("unsupported reference frame convention %q", s)
	}
}
