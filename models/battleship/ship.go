package battleship

// Ship is a rectangle given by two opposite corners. Corners may be given in
// any order.
type Ship struct {
	StartX uint8 `json:"start_x"`
	StartY uint8 `json:"start_y"`
	EndX   uint8 `json:"end_x"`
	EndY   uint8 `json:"end_y"`
}

func NewShip(startX, startY, endX, endY uint8) Ship {
	return Ship{StartX: startX, StartY: startY, EndX: endX, EndY: endY}
}

func (sh Ship) InBounds(gridSize uint8) bool {
	return NewCoordinates(sh.StartX, sh.StartY).InBounds(gridSize) &&
		NewCoordinates(sh.EndX, sh.EndY).InBounds(gridSize)
}

func (sh Ship) normalize() (minX, maxX, minY, maxY uint8) {
	minX, maxX = sh.StartX, sh.EndX
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = sh.StartY, sh.EndY
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return
}

// Cells lists every integer coordinate covered by the ship.
func (sh Ship) Cells() []Coordinates {
	minX, maxX, minY, maxY := sh.normalize()
	cells := make([]Coordinates, 0, (int(maxX)-int(minX)+1)*(int(maxY)-int(minY)+1))

	// int loop vars so that maxX == 255 terminates
	for x := int(minX); x <= int(maxX); x++ {
		for y := int(minY); y <= int(maxY); y++ {
			cells = append(cells, NewCoordinates(uint8(x), uint8(y)))
		}
	}
	return cells
}

// IsSunk reports whether every cell of the ship appears in hits.
func (sh Ship) IsSunk(hits []Coordinates) bool {
	for _, cell := range sh.Cells() {
		if indexOf(hits, cell) < 0 {
			return false
		}
	}
	return true
}

func indexOf(list []Coordinates, c Coordinates) int {
	for i, item := range list {
		if item == c {
			return i
		}
	}
	return -1
}
