package chain

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

func TestOpenAndAdvance(t *testing.T) {
	c := New()
	g0, g1, g2 := game.Digest{1}, game.Digest{2}, game.Digest{3}

	_, err := c.Head("a")
	assert.ErrorIs(t, err, ErrUnknownGame)

	require.NoError(t, c.Open("a", g0, zk.ReceiptID{0xa0}))
	assert.ErrorIs(t, c.Open("a", g1, zk.ReceiptID{0xa1}), ErrGameExists)

	start, err := c.Head("a")
	require.NoError(t, err)
	assert.Equal(t, Head{Digest: g0}, start)

	h, err := c.Advance("a", zk.ReceiptID{1}, start, g1)
	require.NoError(t, err)
	assert.Equal(t, Head{Digest: g1, Height: 1}, h)

	_, err = c.Advance("a", zk.ReceiptID{2}, start, g2)
	assert.ErrorIs(t, err, ErrStaleDigest)

	h, err = c.Head("a")
	require.NoError(t, err)
	assert.Equal(t, g1, h.Digest)

	_, err = c.Advance("b", zk.ReceiptID{3}, start, g1)
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestUnchangedDigestStillMovesHeight(t *testing.T) {
	c := New()
	d := game.Digest{7}
	genesis := zk.ReceiptID{0xff}
	require.NoError(t, c.Open("g", d, genesis))
	start, err := c.Head("g")
	require.NoError(t, err)

	// two misses read the same head; the digest does not change
	h, err := c.Advance("g", zk.ReceiptID{1}, start, d)
	require.NoError(t, err)
	assert.Equal(t, Head{Digest: d, Height: 1}, h)
	_, err = c.Advance("g", zk.ReceiptID{2}, start, d)
	assert.ErrorIs(t, err, ErrStaleDigest)

	// replay against the fresh head
	_, err = c.Advance("g", zk.ReceiptID{1}, h, d)
	assert.ErrorIs(t, err, ErrReceiptReused)
	_, err = c.Advance("g", genesis, h, d)
	assert.ErrorIs(t, err, ErrReceiptReused)

	h, err = c.Advance("g", zk.ReceiptID{2}, h, d)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.Height)
}

func TestConcurrentAdvanceFromSameHead(t *testing.T) {
	c := New()
	g0 := game.Digest{1}
	require.NoError(t, c.Open("g", g0, zk.ReceiptID{}))
	start, err := c.Head("g")
	require.NoError(t, err)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half of them keep the digest, as a miss would
			next := g0
			if i%2 == 0 {
				next = game.Digest{2, byte(i)}
			}
			_, err := c.Advance("g", zk.ReceiptID{byte(i + 1)}, start, next)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrStaleDigest), "unexpected error %v", err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	h, err := c.Head("g")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.Height)
}
