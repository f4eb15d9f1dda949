package world

import (
	"math"
	"math/rand"

	"minegrid/internal/config"
)

// spawnExclusion is the Manhattan radius around spawn points kept free of
// mines and flag tokens.
const spawnExclusion = 2

// Generate builds a fully-populated world from the game config. The layout is
// fully determined by the seed, so a seed can be replayed for debugging.
func Generate(cfg config.GameConfig, seed int64) *World {
	rng := rand.New(rand.NewSource(seed))
	w := New(cfg.WorldSize)

	placeSpawns(w, cfg.SpawnPoints, cfg.SpawnMargin)
	placeMines(w, rng, int(float64(cfg.WorldSize*cfg.WorldSize)*cfg.MineDensity))
	placeFlagTokens(w, rng, int(float64(cfg.WorldSize*cfg.WorldSize)*cfg.FlagTokenDensity))
	assignNumbers(w)

	return w
}

// placeSpawns lays the spawn points out on a near-square grid inside the
// margin, so players start spread across the map.
func placeSpawns(w *World, count, margin int) {
	side := int(math.Ceil(math.Sqrt(float64(count))))
	span := w.Size() - 2*margin
	if span < 1 {
		span = 1
	}

	for i := 0; i < count; i++ {
		gx := i % side
		gy := i / side
		x := margin + gx*span/side + span/(2*side)
		y := margin + gy*span/side + span/(2*side)
		x = clamp(x, margin, w.Size()-margin-1)
		y = clamp(y, margin, w.Size()-margin-1)
		w.AddSpawn(x, y)
	}
}

// placeMines rejection-samples uniform positions until the target count is
// placed. Spawn points and their exclusion radius are never mined.
func placeMines(w *World, rng *rand.Rand, target int) {
	placed := 0
	for placed < target {
		x := rng.Intn(w.Size())
		y := rng.Intn(w.Size())
		if w.NearSpawn(x, y, spawnExclusion) {
			continue
		}
		t := w.At(x, y)
		if t.Kind != KindEmpty || t.Revealed {
			continue
		}
		w.PlaceMine(x, y)
		placed++
	}
}

func placeFlagTokens(w *World, rng *rand.Rand, target int) {
	placed := 0
	for placed < target {
		x := rng.Intn(w.Size())
		y := rng.Intn(w.Size())
		if w.NearSpawn(x, y, spawnExclusion) {
			continue
		}
		t := w.At(x, y)
		if t.Kind != KindEmpty || t.Revealed {
			continue
		}
		w.PlaceFlagToken(x, y)
		placed++
	}
}

// assignNumbers fills every untouched cell with its adjacent mine count.
// Flag token cells keep their kind; they pick up a number only when
// collected (see the flip rules).
func assignNumbers(w *World) {
	for y := 0; y < w.Size(); y++ {
		for x := 0; x < w.Size(); x++ {
			t := w.At(x, y)
			if t.Kind != KindEmpty || t.Revealed {
				continue
			}
			if n := w.AdjacentMines(x, y); n > 0 {
				t.Kind = KindNumbered
				t.Number = n
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
