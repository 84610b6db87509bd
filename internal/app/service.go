// Package app wires the creator, verifier and digest chain into one
// process-local session: the defender side proves, the attacker side accepts.
package app

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/consensys/gnark/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/chain"
	"sagittarius-zk/internal/codec"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/proof"
	"sagittarius-zk/internal/zk"
)

type Config struct {
	// KeysDir holds <action>.pk/.vk; empty runs an in-memory setup.
	KeysDir string
	Logger  *zerolog.Logger
}

type Service struct {
	creator  *proof.Creator
	verifier *proof.Verifier
	chain    *chain.Chain
	log      zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Open builds the Groth16 system for every action and a Service around it.
func Open(cfg Config) (*Service, *zk.System, error) {
	log := logger.Logger()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	var (
		sys *zk.System
		err error
	)
	if cfg.KeysDir == "" {
		sys, err = zk.Setup(action.Programs(), zk.WithLogger(log))
	} else {
		sys, err = zk.EnsureKeys(cfg.KeysDir, action.Programs(), zk.WithLogger(log))
	}
	if err != nil {
		return nil, nil, err
	}
	reg, err := action.RegistryFrom(sys)
	if err != nil {
		return nil, nil, err
	}
	return New(sys, reg, log), sys, nil
}

// New runs the session on any oracle.
func New(o proof.Oracle, reg *action.Registry, log zerolog.Logger) *Service {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	return &Service{
		creator:  proof.NewCreator(o, reg, proof.WithLogger(log)),
		verifier: proof.NewVerifier(o, reg, proof.WithLogger(log)),
		chain:    chain.New(chain.WithLogger(log)),
		log:      log,
		rng:      rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])))),
	}
}

func (s *Service) Verifier() *proof.Verifier { return s.verifier }

func (s *Service) Creator() *proof.Creator { return s.creator }

// NewState places a random fleet under a fresh salt.
func (s *Service) NewState() (game.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.NewGameState(s.rng)
}

type CommitResult struct {
	Secret  codec.Secret
	Receipt *zk.Receipt
}

// Commit proves the fresh board and returns the secret to keep.
func (s *Service) Commit(ctx context.Context, st game.GameState) (*CommitResult, error) {
	r, err := s.creator.CreateInit(ctx, st)
	if err != nil {
		return nil, err
	}
	d, err := st.Digest()
	if err != nil {
		return nil, err
	}
	return &CommitResult{Secret: codec.Secret{State: st, Digest: d}, Receipt: r}, nil
}

// AcceptInit verifies an init receipt and opens the game at its digest.
func (s *Service) AcceptInit(id chain.GameID, r *zk.Receipt) (game.Digest, error) {
	d, err := s.verifier.CheckInit(r)
	if err != nil {
		return game.Digest{}, err
	}
	if err := s.chain.Open(id, d, r.ID()); err != nil {
		return game.Digest{}, err
	}
	return d, nil
}

func (s *Service) Head(id chain.GameID) (chain.Head, error) { return s.chain.Head(id) }

type ShootResult struct {
	Receipt *zk.Receipt
	Hit     game.HitType
	// Secret is the defender's state after the shot.
	Secret codec.Secret
}

// Shoot answers one incoming shot against sec.
func (s *Service) Shoot(ctx context.Context, sec codec.Secret, shot game.Position) (*ShootResult, error) {
	p := game.ShotParams{State: sec.State, Shot: shot}
	c, next, err := p.Apply()
	if err != nil {
		return nil, errors.Wrapf(proof.ErrProvingFailed, "turn: %v", err)
	}
	if c.OldStateDigest != sec.Digest {
		return nil, errors.Errorf("secret digest %s does not match its state %s", sec.Digest, c.OldStateDigest)
	}
	r, err := s.creator.CreateTurn(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ShootResult{
		Receipt: r,
		Hit:     c.Hit,
		Secret:  codec.Secret{State: next, Digest: c.NewStateDigest},
	}, nil
}

// AcceptTurn verifies a turn receipt against the game's current head and
// advances it.
func (s *Service) AcceptTurn(id chain.GameID, r *zk.Receipt, shot game.Position) (game.HitType, chain.Head, error) {
	head, err := s.chain.Head(id)
	if err != nil {
		return game.Miss, chain.Head{}, err
	}
	return s.AcceptTurnAt(id, head, r, shot)
}

// AcceptTurnAt is AcceptTurn for a shot requested while the game stood at
// head. Of several receipts answering requests made at the same head, only
// the first to be accepted advances it.
func (s *Service) AcceptTurnAt(id chain.GameID, head chain.Head, r *zk.Receipt, shot game.Position) (game.HitType, chain.Head, error) {
	hit, next, err := s.verifier.CheckTurn(r, shot, head.Digest)
	if err != nil {
		return game.Miss, chain.Head{}, err
	}
	h, err := s.chain.Advance(id, r.ID(), head, next)
	if err != nil {
		return game.Miss, chain.Head{}, err
	}
	return hit, h, nil
}

type ScoutResult struct {
	Receipt *zk.Receipt
	Cells   []game.HitType
}

func (s *Service) Scout(ctx context.Context, sec codec.Secret, center game.Position) (*ScoutResult, error) {
	p := game.ScoutParams{State: sec.State, Shot: center}
	c, err := p.Apply()
	if err != nil {
		return nil, errors.Wrapf(proof.ErrProvingFailed, "scout: %v", err)
	}
	r, err := s.creator.CreateScout(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ScoutResult{Receipt: r, Cells: c.Cells}, nil
}

// AcceptScout verifies a scout report. It leaves the head where it is but
// requires the report to describe the board at the head.
func (s *Service) AcceptScout(id chain.GameID, r *zk.Receipt, center game.Position) ([]game.HitType, error) {
	head, err := s.chain.Head(id)
	if err != nil {
		return nil, err
	}
	res, err := s.verifier.Verify(r, proof.ScoutExpected{Shot: center})
	if err != nil {
		return nil, err
	}
	if res.NewDigest != head.Digest {
		return nil, errors.Wrapf(chain.ErrStaleDigest, "scout of %s, game %q at %s", res.NewDigest, id, head.Digest)
	}
	return res.Cells, nil
}

type ClusterResult struct {
	Receipt *zk.Receipt
	Shots   []game.Position
	Hits    []game.HitType
	Secret  codec.Secret
}

func (s *Service) Cluster(ctx context.Context, sec codec.Secret, cfg game.ClusterConfig) (*ClusterResult, error) {
	p := game.ClusterBombParams{State: sec.State, Config: cfg}
	c, next, err := p.Apply()
	if err != nil {
		return nil, errors.Wrapf(proof.ErrProvingFailed, "cluster: %v", err)
	}
	if c.OldStateDigest != sec.Digest {
		return nil, errors.Errorf("secret digest %s does not match its state %s", sec.Digest, c.OldStateDigest)
	}
	r, shots, err := s.creator.CreateCluster(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ClusterResult{
		Receipt: r,
		Shots:   shots,
		Hits:    c.Hits,
		Secret:  codec.Secret{State: next, Digest: c.NewStateDigest},
	}, nil
}

// AcceptCluster verifies a cluster receipt requested with cfg and advances the head.
func (s *Service) AcceptCluster(id chain.GameID, r *zk.Receipt, cfg game.ClusterConfig) ([]game.Position, []game.HitType, chain.Head, error) {
	head, err := s.chain.Head(id)
	if err != nil {
		return nil, nil, chain.Head{}, err
	}
	return s.AcceptClusterAt(id, head, r, cfg)
}

// AcceptClusterAt is AcceptCluster for a bomb requested at head.
func (s *Service) AcceptClusterAt(id chain.GameID, head chain.Head, r *zk.Receipt, cfg game.ClusterConfig) ([]game.Position, []game.HitType, chain.Head, error) {
	shots, hits, next, err := s.verifier.CheckCluster(r, cfg.UpperLeft, cfg.DownRight, cfg.Seed, head.Digest)
	if err != nil {
		return nil, nil, chain.Head{}, err
	}
	h, err := s.chain.Advance(id, r.ID(), head, next)
	if err != nil {
		return nil, nil, chain.Head{}, err
	}
	return shots, hits, h, nil
}
