// Package cube provides faces, move notation and move sequences for a 3x3 puzzle cube.
package cube

import "fmt"

// Face identifies one of the six faces of the cube.
type Face string

// Faces in standard notation.
const (
	Up    Face = "U"
	Down  Face = "D"
	Left  Face = "L"
	Right Face = "R"
	Front Face = "F"
	Back  Face = "B"
)

// AllFaces returns all faces in connection order.
func AllFaces() []Face {
	return []Face{
		Down,
		Up,
		Left,
		Back,
		Front,
		Right,
	}
}

// ParseFace parses a single face letter.
func ParseFace(s string) (Face, error) {
	f := Face(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown face %q", s)
	}
	return f, nil
}

// Valid reports whether f is one of the six faces.
func (f Face) Valid() bool {
	switch f {
	case Up, Down, Left, Right, Front, Back:
		return true
	}
	return false
}

// Name returns the long name of the face.
func (f Face) Name() string {
	switch f {
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Front:
		return "Front"
	case Back:
		return "Back"
	}
	return string(f)
}

// Color returns the sticker color of the face's center on the rig.
func (f Face) Color() string {
	switch f {
	case Up:
		return "white"
	case Down:
		return "yellow"
	case Left:
		return "blue"
	case Right:
		return "green"
	case Front:
		return "orange"
	case Back:
		return "red"
	}
	return ""
}
