package zk

import (
	"math/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagittarius-zk/internal/game"
)

func fixedState(t *testing.T) game.GameState {
	t.Helper()
	var s game.GameState
	for k := range s.Ships {
		s.Ships[k] = game.Ship{Row: uint8(2 * k), Col: 0}
	}
	salt, err := game.NewSalt()
	require.NoError(t, err)
	s.Salt = salt
	return s
}

func solved(t *testing.T, shape, assign frontend.Circuit) error {
	t.Helper()
	return test.IsSolved(shape, assign, ecc.BN254.ScalarField())
}

func TestInitCircuit(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s, err := game.NewGameState(rng)
	require.NoError(t, err)

	a, err := InitAssignment(s)
	require.NoError(t, err)
	assert.NoError(t, solved(t, &InitCircuit{}, a))

	// a different salt breaks the digest
	bad := *a
	bad.Salt = 12345
	assert.Error(t, solved(t, &InitCircuit{}, &bad))

	// ship 1 turned vertical now overlaps ship 2 on the fixed layout
	f := fixedState(t)
	a, err = InitAssignment(f)
	require.NoError(t, err)
	bad = *a
	bad.Vertical[0] = 1
	assert.Error(t, solved(t, &InitCircuit{}, &bad))

	// off the right edge
	bad = *a
	bad.Cols[0] = 6
	assert.Error(t, solved(t, &InitCircuit{}, &bad))
}

func TestTurnCircuit(t *testing.T) {
	s := fixedState(t)
	for _, shot := range []game.Position{{Row: 1, Col: 4}, {Row: 0, Col: 2}, {Row: 9, Col: 9}} {
		a, err := TurnAssignment(game.ShotParams{State: s, Shot: shot})
		require.NoError(t, err)
		assert.NoError(t, solved(t, &TurnCircuit{}, a), "shot %s", shot)
	}

	// sink ship 5 and check the circuit reports it
	_, s1, err := s.Shoot(game.Position{Row: 8, Col: 0})
	require.NoError(t, err)
	a, err := TurnAssignment(game.ShotParams{State: s1, Shot: game.Position{Row: 8, Col: 1}})
	require.NoError(t, err)
	assert.Equal(t, uint8(game.Sunk), a.Hit)
	assert.NoError(t, solved(t, &TurnCircuit{}, a))

	lie := *a
	lie.Hit = uint8(game.Miss)
	assert.Error(t, solved(t, &TurnCircuit{}, &lie), "claiming a miss on a ship")

	moved := *a
	moved.Col = 2
	assert.Error(t, solved(t, &TurnCircuit{}, &moved), "path no longer opens the shot cell")

	stale := *a
	stale.OldDigest = a.NewDigest
	assert.Error(t, solved(t, &TurnCircuit{}, &stale))
}

func TestScoutCircuit(t *testing.T) {
	s := fixedState(t)
	a, err := ScoutAssignment(game.ScoutParams{State: s, Shot: game.Position{Row: 1, Col: 1}})
	require.NoError(t, err)
	assert.NoError(t, solved(t, &ScoutCircuit{}, a))

	bad := *a
	bad.Cells[4] = 1
	assert.Error(t, solved(t, &ScoutCircuit{}, &bad))

	_, err = ScoutAssignment(game.ScoutParams{State: s, Shot: game.Position{Row: 0, Col: 1}})
	assert.Error(t, err)
}

func TestClusterCircuit(t *testing.T) {
	s := fixedState(t)
	cfg := game.ClusterConfig{
		UpperLeft: game.Position{Row: 0, Col: 0},
		DownRight: game.Position{Row: 2, Col: 2},
		Seed:      7,
	}
	a, err := ClusterAssignment(game.ClusterBombParams{State: s, Config: cfg})
	require.NoError(t, err)
	assert.NoError(t, solved(t, &ClusterCircuit{}, a))

	reseeded := *a
	reseeded.Seed = 8
	assert.Error(t, solved(t, &ClusterCircuit{}, &reseeded), "shots no longer follow the seed")

	// repeated cells must be applied sequentially
	single := game.ClusterConfig{UpperLeft: game.Position{Row: 8, Col: 1}, DownRight: game.Position{Row: 8, Col: 1}, Seed: 3}
	a, err = ClusterAssignment(game.ClusterBombParams{State: s, Config: single})
	require.NoError(t, err)
	assert.NoError(t, solved(t, &ClusterCircuit{}, a))
	assert.Equal(t, uint8(game.Hit), a.Hits[0])
	assert.Equal(t, uint8(game.Hit), a.Hits[3])
}
