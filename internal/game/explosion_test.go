package game

import (
	"testing"
	"time"

	"minegrid/internal/protocol"
	"minegrid/internal/world"
)

func collectBroadcasts(f *fixture) chan Broadcast {
	ch := make(chan Broadcast, 64)
	f.engine.OnBroadcast = func(b Broadcast) { ch <- b }
	return ch
}

func waitForExplosion(t *testing.T, ch chan Broadcast, x, y int) protocol.Explosion {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-ch:
			if b.Topic != protocol.TopicExplosion {
				continue
			}
			ex := b.Payload.(protocol.Explosion)
			if ex.X == x && ex.Y == y {
				return ex
			}
		case <-deadline:
			t.Fatalf("no explosion broadcast for (%d,%d)", x, y)
		}
	}
}

func TestFlipMineDetonates(t *testing.T) {
	w := testWorld(32)
	w.PlaceMine(10, 10)
	f := newFixture(t, w)
	p := f.join("alice", 9, 10)

	res := f.do(p, protocol.ActionFlip, 10, 10)
	expectAccept(t, res)

	if p.Alive {
		t.Error("player inside the blast radius survived")
	}
	if p.Score != 0 {
		t.Errorf("detonation scored %d points", p.Score)
	}

	origin := f.world.At(10, 10)
	if !origin.Revealed || !origin.Exploded || origin.Kind != world.KindMine {
		t.Errorf("origin state: %+v", origin)
	}

	// Non-mine tiles in the radius become debris.
	debris := f.world.At(9, 10)
	if debris.Kind != world.KindExplosion || !debris.Revealed || !debris.Exploded {
		t.Errorf("debris state: %+v", debris)
	}
	// Tiles outside the radius stay covered.
	if far := f.world.At(14, 10); far.Revealed {
		t.Error("tile outside blast radius revealed")
	}

	var sawExplosion, sawDeath bool
	for _, b := range res.Broadcasts {
		switch b.Topic {
		case protocol.TopicExplosion:
			sawExplosion = true
			ex := b.Payload.(protocol.Explosion)
			if len(ex.KilledPlayers) != 1 || ex.KilledPlayers[0] != p.ID {
				t.Errorf("killed = %v, want [%s]", ex.KilledPlayers, p.ID)
			}
			if len(ex.AffectedTiles) == 0 {
				t.Error("explosion carries no tiles")
			}
		case protocol.TopicPlayerDeath:
			sawDeath = true
			pd := b.Payload.(protocol.PlayerDeath)
			if pd.Delay != protocol.DeathDelayMs {
				t.Errorf("death delay = %d, want %d", pd.Delay, protocol.DeathDelayMs)
			}
		}
	}
	if !sawExplosion || !sawDeath {
		t.Errorf("broadcast set missing explosion or death: %+v", res.Broadcasts)
	}
}

func TestChainDetonation(t *testing.T) {
	w := testWorld(32)
	w.PlaceMine(10, 10)
	w.PlaceMine(12, 10) // inside radius 3 of the first
	f := newFixture(t, w)
	ch := collectBroadcasts(f)
	p := f.join("alice", 9, 10)

	res := f.do(p, protocol.ActionFlip, 10, 10)
	expectAccept(t, res)

	// Both mines are claimed by the first blast, so the game ends in the
	// synchronous result.
	var sawEnd bool
	for _, b := range res.Broadcasts {
		if b.Topic == protocol.TopicGameEnd {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Error("game-end broadcast missing after final mine was claimed")
	}
	if f.world.MinesRemaining() != 0 {
		t.Errorf("mines remaining = %d, want 0", f.world.MinesRemaining())
	}

	// The second mine still produces its own delayed ripple.
	ex := waitForExplosion(t, ch, 12, 10)
	if len(ex.AffectedTiles) == 0 {
		t.Error("chained explosion carries no tiles")
	}

	second := f.world.At(12, 10)
	if !second.Exploded || !second.Revealed {
		t.Errorf("chained mine state: %+v", second)
	}
}

func TestExplosionDestroysFlagButKeepsAccounting(t *testing.T) {
	w := testWorld(32)
	w.PlaceMine(10, 10)
	w.PlaceMine(12, 10)
	f := newFixture(t, w)
	collectBroadcasts(f)
	p := f.join("alice", 11, 9)

	// Flag the second mine first; it counts as cleared.
	expectAccept(t, f.do(p, protocol.ActionFlag, 12, 10))
	if f.world.MinesRemaining() != 1 {
		t.Fatalf("remaining = %d, want 1", f.world.MinesRemaining())
	}

	// Detonating the first mine destroys the flag. The flagged mine was
	// already accounted for, so it is not double counted.
	p.X, p.Y = 9, 10
	res := f.do(p, protocol.ActionFlip, 10, 10)
	expectAccept(t, res)

	if f.world.MinesRemaining() != 0 {
		t.Errorf("remaining = %d, want 0", f.world.MinesRemaining())
	}
	if f.world.At(12, 10).Flagged {
		t.Error("flag survived the blast")
	}

	var sawEnd bool
	for _, b := range res.Broadcasts {
		if b.Topic == protocol.TopicGameEnd {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Error("game should end once every mine is flagged or exploded")
	}
}

func TestExplosionKillsBystanders(t *testing.T) {
	w := testWorld(32)
	w.PlaceMine(10, 10)
	f := newFixture(t, w)
	actor := f.join("alice", 9, 10)
	near := f.join("bob", 12, 10)  // distance 2
	far := f.join("carol", 14, 10) // distance 4

	res := f.do(actor, protocol.ActionFlip, 10, 10)
	expectAccept(t, res)

	if actor.Alive || near.Alive {
		t.Error("players inside the radius should die")
	}
	if !far.Alive {
		t.Error("player outside the radius died")
	}
}

func TestGameEndFiresOnce(t *testing.T) {
	w := testWorld(32)
	w.PlaceMine(6, 6)
	w.PlaceMine(4, 4)
	f := newFixture(t, w)
	p := f.join("alice", 5, 5)

	res := f.do(p, protocol.ActionFlag, 6, 6)
	expectAccept(t, res)
	for _, b := range res.Broadcasts {
		if b.Topic == protocol.TopicGameEnd {
			t.Fatal("game ended with a mine outstanding")
		}
	}

	res = f.do(p, protocol.ActionFlag, 4, 4)
	expectAccept(t, res)
	ends := 0
	for _, b := range res.Broadcasts {
		if b.Topic == protocol.TopicGameEnd {
			ends++
		}
	}
	if ends != 1 {
		t.Fatalf("game-end broadcasts = %d, want 1", ends)
	}

	// The world is frozen afterwards.
	expectReject(t, f.do(p, protocol.ActionFlip, 5, 6), protocol.ReasonGameOver)
}
