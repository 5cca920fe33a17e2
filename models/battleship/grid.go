package battleship

const (
	MaxShips   = 5
	MaxAttacks = 50

	MinGridSize uint8 = 2
	// MaxGridSize keeps grid*grid/2 within MaxAttacks.
	MaxGridSize uint8 = 10
)

type Coordinates struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
}

func NewCoordinates(x, y uint8) Coordinates {
	return Coordinates{X: x, Y: y}
}

// AttackableHeight is the number of rows of a player's half of the grid.
func AttackableHeight(gridSize uint8) uint8 {
	return gridSize / 2
}

// InBounds reports whether c lies inside a player's half of the grid.
func (c Coordinates) InBounds(gridSize uint8) bool {
	return c.X < gridSize && c.Y < AttackableHeight(gridSize)
}

func IsGridSizeValid(gridSize, maxGridSize uint8) bool {
	return gridSize >= MinGridSize && gridSize <= maxGridSize && gridSize <= MaxGridSize
}
