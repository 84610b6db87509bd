package proof_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/proof"
	"sagittarius-zk/internal/proof/prooftest"
	"sagittarius-zk/internal/zk"
)

// fleetState places every ship horizontally on rows 0,2,4,6,8 from column 0.
func fleetState(t *testing.T) game.GameState {
	t.Helper()
	var s game.GameState
	for k := range s.Ships {
		s.Ships[k] = game.Ship{Row: uint8(2 * k)}
	}
	salt, err := game.NewSalt()
	require.NoError(t, err)
	s.Salt = salt
	return s
}

func setup(t *testing.T) (*prooftest.Oracle, *proof.Creator, *proof.Verifier) {
	t.Helper()
	o := prooftest.New()
	return o, proof.NewCreator(o, o.Registry()), proof.NewVerifier(o, o.Registry())
}

func requireMismatch(t *testing.T, err error, field string) {
	t.Helper()
	require.ErrorIs(t, err, proof.ErrCommitmentMismatch)
	var me *proof.MismatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, field, me.Field)
}

func TestInitRoundTrip(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	r, err := c.CreateInit(context.Background(), s)
	require.NoError(t, err)

	d, err := v.CheckInit(r)
	require.NoError(t, err)
	want, err := s.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, d)
}

func TestTurnBindsShotAndOldDigest(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	old, err := s.Digest()
	require.NoError(t, err)

	shot := game.Position{Row: 3, Col: 4}
	r, err := c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)

	hit, next, err := v.CheckTurn(r, shot, old)
	require.NoError(t, err)
	assert.Equal(t, game.Miss, hit)
	// a miss leaves the board as it was
	assert.Equal(t, old, next)

	_, _, err = v.CheckTurn(r, game.Position{Row: 3, Col: 5}, old)
	requireMismatch(t, err, "shot")

	_, _, err = v.CheckTurn(r, shot, game.Digest{1})
	requireMismatch(t, err, "old_state_digest")
}

func TestTurnHitAdvancesDigest(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	old, err := s.Digest()
	require.NoError(t, err)

	shot := game.Position{Row: 8, Col: 1}
	r, err := c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)
	hit, next, err := v.CheckTurn(r, shot, old)
	require.NoError(t, err)
	assert.Equal(t, game.Hit, hit)
	assert.NotEqual(t, old, next)

	_, after, err := s.Shoot(shot)
	require.NoError(t, err)
	want, err := after.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, next)
}

func TestScout(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	center := game.Position{Row: 1, Col: 1}
	r, err := c.CreateScout(context.Background(), game.ScoutParams{State: s, Shot: center})
	require.NoError(t, err)

	cells, err := v.CheckScout(r, center)
	require.NoError(t, err)
	assert.Equal(t, []game.HitType{
		game.Hit, game.Hit, game.Hit,
		game.Miss, game.Miss, game.Miss,
		game.Hit, game.Hit, game.Hit,
	}, cells)

	_, err = v.CheckScout(r, game.Position{Row: 1, Col: 2})
	requireMismatch(t, err, "shot")

	res, err := v.Verify(r, proof.ScoutExpected{Shot: center})
	require.NoError(t, err)
	d, err := s.Digest()
	require.NoError(t, err)
	assert.Equal(t, d, res.NewDigest)
}

func TestClusterBindsSeed(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	old, err := s.Digest()
	require.NoError(t, err)

	ul, dr := game.Position{Row: 0, Col: 0}, game.Position{Row: 2, Col: 2}
	p := game.ClusterBombParams{State: s, Config: game.ClusterConfig{UpperLeft: ul, DownRight: dr, Seed: 7}}
	r, created, err := c.CreateCluster(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []game.Position{{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 2, Col: 0}, {Row: 1, Col: 2}}, created)

	_, _, _, err = v.CheckCluster(r, ul, dr, 8, old)
	requireMismatch(t, err, "seed")

	_, _, _, err = v.CheckCluster(r, ul, game.Position{Row: 2, Col: 3}, 7, old)
	requireMismatch(t, err, "down_right")

	_, _, _, err = v.CheckCluster(r, game.Position{Row: 0, Col: 1}, dr, 7, old)
	requireMismatch(t, err, "upper_left")

	_, _, _, err = v.CheckCluster(r, ul, dr, 7, game.Digest{1})
	requireMismatch(t, err, "old_state_digest")

	shots, hits, next, err := v.CheckCluster(r, ul, dr, 7, old)
	require.NoError(t, err)
	assert.Equal(t, created, shots)
	assert.Equal(t, []game.HitType{game.Hit, game.Miss, game.Hit, game.Miss}, hits)
	assert.NotEqual(t, old, next)
}

func TestRejectsTamperedReceipt(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	old, err := s.Digest()
	require.NoError(t, err)
	shot := game.Position{Row: 0, Col: 0}
	r, err := c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)

	// claim a miss where the board recorded a hit
	commit, err := action.TurnSpec.Decode(r.Journal)
	require.NoError(t, err)
	commit.Hit = game.Miss
	forged := *r
	forged.Journal, err = action.TurnSpec.Journal(commit)
	require.NoError(t, err)
	_, _, err = v.CheckTurn(&forged, shot, old)
	assert.ErrorIs(t, err, proof.ErrInvalidReceipt)

	// a turn receipt offered as a scout
	_, err = v.CheckScout(r, shot)
	assert.ErrorIs(t, err, proof.ErrInvalidReceipt)

	_, err = v.CheckInit(nil)
	assert.ErrorIs(t, err, proof.ErrInvalidReceipt)
}

func TestRejectsMalformedJournal(t *testing.T) {
	o, c, v := setup(t)
	s := fleetState(t)
	o.Journal = func(k action.Kind, j []byte) []byte {
		if k != action.Init {
			return j
		}
		turn, err := action.TurnSpec.Journal(game.ShotCommit{})
		require.NoError(t, err)
		return turn
	}
	r, err := c.CreateInit(context.Background(), s)
	require.NoError(t, err)
	_, err = v.CheckInit(r)
	assert.ErrorIs(t, err, proof.ErrMalformedJournal)
	assert.NotErrorIs(t, err, proof.ErrInvalidReceipt)

	// bytes that are not a journal at all, with a header that would ask for
	// gigabytes if trusted
	o.Journal = func(action.Kind, []byte) []byte { return []byte("not a journal") }
	old, err := s.Digest()
	require.NoError(t, err)
	shot := game.Position{Row: 3, Col: 3}
	r, err = c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)
	_, _, err = v.CheckTurn(r, shot, old)
	assert.ErrorIs(t, err, proof.ErrMalformedJournal)
}

func TestProvingFailed(t *testing.T) {
	o, c, _ := setup(t)
	s := fleetState(t)

	_, err := c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: game.Position{Row: 10}})
	assert.ErrorIs(t, err, proof.ErrProvingFailed)

	_, err = c.CreateScout(context.Background(), game.ScoutParams{State: s, Shot: game.Position{Row: 0, Col: 4}})
	assert.ErrorIs(t, err, proof.ErrProvingFailed)

	bad := s
	bad.Ships[1] = bad.Ships[0]
	_, err = c.CreateInit(context.Background(), bad)
	assert.ErrorIs(t, err, proof.ErrProvingFailed)

	shot, after, err := s.Shoot(game.Position{Row: 0, Col: 0})
	require.NoError(t, err)
	require.Equal(t, game.Hit, shot)
	_, err = c.CreateInit(context.Background(), after)
	assert.ErrorIs(t, err, proof.ErrProvingFailed)

	_, _, err = c.CreateCluster(context.Background(), game.ClusterBombParams{
		State:  s,
		Config: game.ClusterConfig{UpperLeft: game.Position{Row: 3, Col: 3}, DownRight: game.Position{Row: 1, Col: 1}},
	})
	assert.ErrorIs(t, err, proof.ErrProvingFailed)
	assert.Zero(t, o.Proves())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.CreateTurn(ctx, game.ShotParams{State: s, Shot: game.Position{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyIsIdempotent(t *testing.T) {
	_, c, v := setup(t)
	s := fleetState(t)
	old, err := s.Digest()
	require.NoError(t, err)
	shot := game.Position{Row: 4, Col: 2}
	r, err := c.CreateTurn(context.Background(), game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)
	journal := append([]byte(nil), r.Journal...)

	first, err := v.Verify(r, proof.TurnExpected{Shot: shot, OldDigest: old})
	require.NoError(t, err)
	second, err := v.Verify(r, proof.TurnExpected{Shot: shot, OldDigest: old})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, journal, r.Journal)
}

func TestCreateBatch(t *testing.T) {
	o := prooftest.New()
	c := proof.NewCreator(o, o.Registry(), proof.WithParallelism(2))
	v := proof.NewVerifier(o, o.Registry())
	s := fleetState(t)

	reqs := []proof.Request{
		{Kind: action.Init, Params: s},
		{Kind: action.Turn, Params: game.ShotParams{State: s, Shot: game.Position{Row: 2, Col: 2}}},
		{Kind: action.Scout, Params: game.ScoutParams{State: s, Shot: game.Position{Row: 5, Col: 5}}},
		{Kind: action.Cluster, Params: game.ClusterBombParams{State: s, Config: game.ClusterConfig{
			UpperLeft: game.Position{Row: 0, Col: 0}, DownRight: game.Position{Row: 9, Col: 9}, Seed: 3,
		}}},
	}
	out, err := c.CreateBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, out, len(reqs))
	for i, res := range out {
		assert.Equal(t, reqs[i].Kind, res.Kind)
	}
	assert.Len(t, out[3].Shots, game.ClusterShots)

	_, err = v.CheckInit(out[0].Receipt)
	require.NoError(t, err)

	reqs = append(reqs, proof.Request{Kind: action.Turn, Params: s})
	_, err = c.CreateBatch(context.Background(), reqs)
	assert.ErrorContains(t, err, "request 4")
}

func TestGroth16EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup of every program is slow")
	}
	sys, err := zk.Setup(action.Programs())
	require.NoError(t, err)
	reg, err := action.RegistryFrom(sys)
	require.NoError(t, err)
	c := proof.NewCreator(sys, reg)
	v := proof.NewVerifier(sys, reg)
	ctx := context.Background()

	s := fleetState(t)
	r, err := c.CreateInit(ctx, s)
	require.NoError(t, err)
	d, err := v.CheckInit(r)
	require.NoError(t, err)

	shot := game.Position{Row: 0, Col: 3}
	r, err = c.CreateTurn(ctx, game.ShotParams{State: s, Shot: shot})
	require.NoError(t, err)
	hit, next, err := v.CheckTurn(r, shot, d)
	require.NoError(t, err)
	assert.Equal(t, game.Hit, hit)
	_, after, err := s.Shoot(shot)
	require.NoError(t, err)

	ul, dr := game.Position{Row: 0, Col: 0}, game.Position{Row: 2, Col: 2}
	r, shots, err := c.CreateCluster(ctx, game.ClusterBombParams{
		State:  after,
		Config: game.ClusterConfig{UpperLeft: ul, DownRight: dr, Seed: 7},
	})
	require.NoError(t, err)
	got, _, _, err := v.CheckCluster(r, ul, dr, 7, next)
	require.NoError(t, err)
	assert.Equal(t, shots, got)
	_, _, _, err = v.CheckCluster(r, ul, dr, 8, next)
	assert.ErrorIs(t, err, proof.ErrCommitmentMismatch)
}
