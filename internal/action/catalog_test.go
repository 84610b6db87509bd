package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

func TestEveryKindHasAProgram(t *testing.T) {
	progs := Programs()
	require.Len(t, progs, int(numKinds))
	for i, k := range Kinds() {
		assert.Equal(t, k.String(), progs[i].Name)
		back, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, back)
	}
	_, err := ParseKind("torpedo")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	ids := map[Kind]zk.ProgramID{}
	for _, k := range Kinds() {
		var id zk.ProgramID
		id[0] = byte(k) + 1
		ids[k] = id
	}
	r, err := NewRegistry(ids)
	require.NoError(t, err)
	for k, id := range ids {
		got, err := r.ID(k)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		back, ok := r.Kind(id)
		assert.True(t, ok)
		assert.Equal(t, k, back)
	}
	_, err = r.ID(numKinds)
	assert.Error(t, err)

	missing := map[Kind]zk.ProgramID{Init: ids[Init], Turn: ids[Turn], Scout: ids[Scout]}
	_, err = NewRegistry(missing)
	assert.ErrorContains(t, err, "cluster")

	ids[Cluster] = ids[Turn]
	_, err = NewRegistry(ids)
	assert.ErrorContains(t, err, "share")
}

func TestTurnJournal(t *testing.T) {
	c := game.ShotCommit{
		OldStateDigest: game.Digest{1},
		NewStateDigest: game.Digest{2},
		Shot:           game.Position{Row: 3, Col: 4},
		Hit:            game.Sunk,
	}
	j, err := TurnSpec.Journal(c)
	require.NoError(t, err)
	got, err := TurnSpec.Decode(j)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestClusterJournalKeepsShotsAligned(t *testing.T) {
	c := game.ClusterCommit{
		OldStateDigest: game.Digest{1},
		NewStateDigest: game.Digest{2},
		Config: game.ClusterConfig{
			UpperLeft: game.Position{Row: 0, Col: 0},
			DownRight: game.Position{Row: 2, Col: 2},
			Seed:      7,
		},
		Shots: []game.Position{{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 2, Col: 0}, {Row: 1, Col: 2}},
		Hits:  []game.HitType{game.Hit, game.Miss, game.Hit, game.Miss},
	}
	j, err := ClusterSpec.Journal(c)
	require.NoError(t, err)
	got, err := ClusterSpec.Decode(j)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Len(t, got.Hits, len(got.Shots))
}

func TestDecodeRejectsForeignJournals(t *testing.T) {
	turn, err := TurnSpec.Journal(game.ShotCommit{Shot: game.Position{Row: 1, Col: 1}})
	require.NoError(t, err)

	// a turn journal is too short for a cluster and too long for init
	_, err = ClusterSpec.Decode(turn)
	assert.ErrorContains(t, err, "ends before")
	_, err = InitSpec.Decode(turn)
	assert.ErrorContains(t, err, "trailing")

	_, err = TurnSpec.Decode([]byte("not a journal"))
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfRangeValues(t *testing.T) {
	// the same public layout with an impossible hit value
	j, err := zk.EncodeJournal(&zk.TurnCircuit{OldDigest: 1, NewDigest: 2, Row: 3, Col: 4, Hit: 7})
	require.NoError(t, err)
	_, err = TurnSpec.Decode(j)
	assert.ErrorContains(t, err, "hit out of range")

	j, err = zk.EncodeJournal(&zk.TurnCircuit{OldDigest: 1, NewDigest: 2, Row: 12, Col: 4, Hit: 1})
	require.NoError(t, err)
	_, err = TurnSpec.Decode(j)
	assert.ErrorContains(t, err, "shot out of range")
}

func TestProgramAssignDecodesInput(t *testing.T) {
	var s game.GameState
	for k := range s.Ships {
		s.Ships[k] = game.Ship{Row: uint8(2 * k)}
	}
	salt, err := game.NewSalt()
	require.NoError(t, err)
	s.Salt = salt

	input, err := TurnSpec.Encode(game.ShotParams{State: s, Shot: game.Position{Row: 0, Col: 0}})
	require.NoError(t, err)
	a, err := TurnSpec.Program().Assign(input)
	require.NoError(t, err)
	tc, ok := a.(*zk.TurnCircuit)
	require.True(t, ok)
	assert.Equal(t, uint8(game.Hit), tc.Hit)

	_, err = TurnSpec.Program().Assign([]byte{0xff})
	assert.Error(t, err)
}
