package world

// Kind is the underlying content of a tile. Whether a client may see it is
// controlled by Revealed, not by the kind itself.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumbered
	KindMine
	KindFlagToken
	KindExplosion
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumbered:
		return "numbered"
	case KindMine:
		return "mine"
	case KindFlagToken:
		return "flag_token"
	case KindExplosion:
		return "explosion"
	default:
		return "unknown"
	}
}

// Tile is one cell of the grid. Tiles are created once during generation and
// mutated only by the action pipeline while it holds the engine lock.
type Tile struct {
	X, Y int
	Kind Kind
	// Number is the adjacent mine count, 1..8, set iff Kind == KindNumbered.
	Number    int
	Revealed  bool
	Flagged   bool
	FlaggedBy string
	Exploded  bool
}

// Walkable reports whether a player may stand on the tile: any revealed
// non-mine tile, or any flagged tile regardless of what hides under it.
func (t *Tile) Walkable() bool {
	return (t.Revealed && t.Kind != KindMine) || t.Flagged
}

func (t *Tile) Covered() bool {
	return !t.Revealed
}

// Point is an integer grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ManhattanDist returns |dx| + |dy| between two points.
func ManhattanDist(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// ChebyshevDist returns max(|dx|, |dy|) between two points.
func ChebyshevDist(a, b Point) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
