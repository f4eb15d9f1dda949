package world

import (
	"testing"

	"minegrid/internal/config"
)

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		WorldSize:        64,
		MineDensity:      0.08,
		FlagTokenDensity: 0.02,
		SpawnPoints:      4,
		SpawnMargin:      8,
		ExplosionRadius:  3,
		ChainDelayMs:     100,
		FlagsPerToken:    1,
	}
}

func TestGenerateMineCount(t *testing.T) {
	cfg := testGameConfig()
	w := Generate(cfg, 42)

	want := int(float64(cfg.WorldSize*cfg.WorldSize) * cfg.MineDensity)
	if w.TotalMines() != want {
		t.Errorf("total mines = %d, want %d", w.TotalMines(), want)
	}
}

func TestGenerateNumbering(t *testing.T) {
	w := Generate(testGameConfig(), 42)

	for y := 0; y < w.Size(); y++ {
		for x := 0; x < w.Size(); x++ {
			tile := w.At(x, y)
			n := w.AdjacentMines(x, y)

			switch tile.Kind {
			case KindNumbered:
				if tile.Number != n {
					t.Fatalf("tile (%d,%d) number = %d, adjacent mines = %d", x, y, tile.Number, n)
				}
				if n < 1 || n > 8 {
					t.Fatalf("tile (%d,%d) number %d out of range", x, y, n)
				}
			case KindEmpty:
				if !tile.Revealed && n != 0 {
					t.Fatalf("covered empty tile (%d,%d) has %d adjacent mines", x, y, n)
				}
			}
		}
	}
}

func TestGenerateSpawnSafety(t *testing.T) {
	cfg := testGameConfig()
	w := Generate(cfg, 42)

	spawns := w.Spawns()
	if len(spawns) != cfg.SpawnPoints {
		t.Fatalf("spawn count = %d, want %d", len(spawns), cfg.SpawnPoints)
	}

	for _, s := range spawns {
		tile := w.At(s.X, s.Y)
		if tile.Kind != KindEmpty || !tile.Revealed {
			t.Errorf("spawn (%d,%d) is not a revealed empty tile", s.X, s.Y)
		}
	}

	// No mine or flag token may sit within the exclusion radius of a spawn.
	for y := 0; y < w.Size(); y++ {
		for x := 0; x < w.Size(); x++ {
			if !w.NearSpawn(x, y, spawnExclusion) {
				continue
			}
			if k := w.At(x, y).Kind; k == KindMine || k == KindFlagToken {
				t.Fatalf("%s at (%d,%d) inside spawn exclusion", k, x, y)
			}
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testGameConfig()
	a := Generate(cfg, 7)
	b := Generate(cfg, 7)

	for y := 0; y < a.Size(); y++ {
		for x := 0; x < a.Size(); x++ {
			ta, tb := a.At(x, y), b.At(x, y)
			if ta.Kind != tb.Kind || ta.Number != tb.Number {
				t.Fatalf("same seed diverged at (%d,%d): %s/%d vs %s/%d",
					x, y, ta.Kind, ta.Number, tb.Kind, tb.Number)
			}
		}
	}

	c := Generate(cfg, 8)
	same := true
	for y := 0; y < a.Size() && same; y++ {
		for x := 0; x < a.Size(); x++ {
			if a.At(x, y).Kind != c.At(x, y).Kind {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds produced identical layouts")
	}
}
