package world

import (
	"time"
)

// World owns the grid, the spawn set, and the mine accounting used for
// end-of-game detection. It has no lock of its own: every mutation goes
// through the action pipeline, which serializes access behind a single
// writer lock.
type World struct {
	size     int
	tiles    []Tile
	spawns   []Point
	spawnSet map[Point]bool

	totalMines    int
	flaggedMines  int
	explodedMines int

	startedAt time.Time
	ended     bool
}

func New(size int) *World {
	w := &World{
		size:      size,
		tiles:     make([]Tile, size*size),
		spawnSet:  make(map[Point]bool),
		startedAt: time.Now(),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			t := &w.tiles[y*size+x]
			t.X = x
			t.Y = y
		}
	}
	return w
}

func (w *World) Size() int { return w.size }

func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.size && y >= 0 && y < w.size
}

// At returns the tile at (x, y), or nil out of bounds.
func (w *World) At(x, y int) *Tile {
	if !w.InBounds(x, y) {
		return nil
	}
	return &w.tiles[y*w.size+x]
}

func (w *World) Spawns() []Point {
	return w.spawns
}

// AddSpawn marks (x, y) as a spawn point: empty and pre-revealed.
func (w *World) AddSpawn(x, y int) {
	p := Point{X: x, Y: y}
	if w.spawnSet[p] {
		return
	}
	t := w.At(x, y)
	if t == nil {
		return
	}
	t.Kind = KindEmpty
	t.Revealed = true
	w.spawns = append(w.spawns, p)
	w.spawnSet[p] = true
}

func (w *World) IsSpawn(x, y int) bool {
	return w.spawnSet[Point{X: x, Y: y}]
}

// NearSpawn reports whether (x, y) lies within the given Manhattan distance
// of any spawn point, spawn points themselves included.
func (w *World) NearSpawn(x, y, dist int) bool {
	p := Point{X: x, Y: y}
	for _, s := range w.spawns {
		if ManhattanDist(p, s) <= dist {
			return true
		}
	}
	return false
}

func (w *World) PlaceMine(x, y int) {
	t := w.At(x, y)
	if t == nil || t.Kind == KindMine || t.Revealed {
		return
	}
	t.Kind = KindMine
	t.Revealed = false
	w.totalMines++
}

func (w *World) PlaceFlagToken(x, y int) {
	t := w.At(x, y)
	if t == nil || t.Kind != KindEmpty {
		return
	}
	t.Kind = KindFlagToken
	t.Revealed = false
}

// AdjacentMines counts mines in the 8-neighborhood of (x, y). Coordinates
// outside the grid count as non-mine. Flag tokens are not mine-equivalents.
func (w *World) AdjacentMines(x, y int) int {
	count := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if t := w.At(x+dx, y+dy); t != nil && t.Kind == KindMine {
				count++
			}
		}
	}
	return count
}

func (w *World) TotalMines() int   { return w.totalMines }
func (w *World) FlaggedMines() int { return w.flaggedMines }

// RecordFlaggedMine bumps the flagged-mine counter when a flag lands on a mine.
func (w *World) RecordFlaggedMine() {
	w.flaggedMines++
}

// RecordExplodedMine accounts for a mine destroyed by an explosion. Exploded
// mines can never be flagged, so they count toward completion.
func (w *World) RecordExplodedMine() {
	w.explodedMines++
}

func (w *World) MinesRemaining() int {
	return w.totalMines - w.flaggedMines - w.explodedMines
}

// Progress is the cleared percentage exposed to clients. The raw remaining
// count stays server-side.
func (w *World) Progress() int {
	if w.totalMines == 0 {
		return 100
	}
	return (w.flaggedMines + w.explodedMines) * 100 / w.totalMines
}

func (w *World) Ended() bool        { return w.ended }
func (w *World) SetEnded()          { w.ended = true }
func (w *World) StartedAt() time.Time { return w.startedAt }
