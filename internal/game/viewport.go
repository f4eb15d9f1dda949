package game

import (
	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/world"
)

const (
	defaultViewTilesX = 20
	defaultViewTilesY = 15
	maxViewTiles      = 100
)

// materializeLocked builds the sanitized window around the viewer. Tiles are
// emitted in row-major order so repeated materialization without intervening
// actions produces identical payloads.
//
// Sanitization: a tile leaves the server in full only when it is revealed.
// Flagged-but-covered tiles show the flag and its owner, nothing underneath.
// Covered tiles adjacent to the viewer are emitted as bare stubs; all other
// covered tiles are omitted and implied covered client-side. Spawn points are
// never exposed.
//
// The caller holds the engine lock.
func (e *Engine) materializeLocked(viewer *player.Player, tilesX, tilesY int) ([]protocol.TileState, []protocol.PlayerState) {
	tilesX = clampExtent(tilesX, defaultViewTilesX)
	tilesY = clampExtent(tilesY, defaultViewTilesY)

	viewPos := world.Point{X: viewer.X, Y: viewer.Y}

	tiles := make([]protocol.TileState, 0, 256)
	for y := viewer.Y - tilesY; y <= viewer.Y+tilesY; y++ {
		for x := viewer.X - tilesX; x <= viewer.X+tilesX; x++ {
			t := e.world.At(x, y)
			if t == nil {
				continue
			}

			switch {
			case t.Revealed:
				tiles = append(tiles, protocol.TileState{
					X: x, Y: y,
					Revealed: true,
					Kind:     t.Kind.String(),
					Number:   t.Number,
					Exploded: t.Exploded,
				})
			case t.Flagged:
				tiles = append(tiles, protocol.TileState{
					X: x, Y: y,
					Flagged:   true,
					FlaggedBy: t.FlaggedBy,
				})
			case world.ChebyshevDist(viewPos, world.Point{X: x, Y: y}) <= 1:
				tiles = append(tiles, protocol.TileState{X: x, Y: y})
			}
		}
	}

	var players []protocol.PlayerState
	for _, p := range e.players.All() {
		if !p.Connected {
			continue
		}
		dx := absInt(p.X - viewer.X)
		dy := absInt(p.Y - viewer.Y)
		if dx <= tilesX && dy <= tilesY {
			players = append(players, publicState(p))
		}
	}
	sortPlayerStates(players)

	return tiles, players
}

func clampExtent(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxViewTiles {
		return maxViewTiles
	}
	return v
}

// sortPlayerStates orders by id so payloads are stable between calls.
func sortPlayerStates(players []protocol.PlayerState) {
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j].ID < players[j-1].ID; j-- {
			players[j], players[j-1] = players[j-1], players[j]
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
