package lattice

import "fmt"

// Direction identifies one of the 12 adjacency slots of a node: one per
// translation sense on each axis and one per rotation sense around each
// axis. The zero value is not a valid direction.
type Direction int

const (
	DirUp Direction = iota + 1
	DirDown
	DirLeft
	DirRight
	DirFront
	DirBack
	DirRXPlus
	DirRXMinus
	DirRYPlus
	DirRYMinus
	DirRZPlus
	DirRZMinus
)

// Directions returns the full vocabulary in canonical order.
func Directions() []Direction {
	return []Direction{
		DirUp, DirDown, DirLeft, DirRight, DirFront, DirBack,
		DirRXPlus, DirRXMinus, DirRYPlus, DirRYMinus, DirRZPlus, DirRZMinus,
	}
}

// String returns the wire label of the direction, e.g. "up" or "rx_plus".
func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirFront:
		return "front"
	case DirBack:
		return "back"
	case DirRXPlus:
		return "rx_plus"
	case DirRXMinus:
		return "rx_minus"
	case DirRYPlus:
		return "ry_plus"
	case DirRYMinus:
		return "ry_minus"
	case DirRZPlus:
		return "rz_plus"
	case DirRZMinus:
		return "rz_minus"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the 12 known directions.
func (d Direction) Valid() bool {
	return d >= DirUp && d <= DirRZMinus
}

// ParseDirection maps a label such as "front" or "rz_minus" back to its
// Direction. Unknown labels yield ErrInvalidDirection.
func ParseDirection(label string) (Direction, error) {
	for _, d := range Directions() {
		if d.String() == label {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, label)
}
