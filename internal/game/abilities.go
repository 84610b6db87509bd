package game

import (
	"errors"
	"fmt"
)

// ClusterShots is how many cells a cluster bomb strikes.
const ClusterShots = 4

// InitCommit is the public output of the init program.
type InitCommit struct {
	Digest Digest `json:"digest"`
}

// Commit is the init mirror: the state must be a fresh, legal board.
func (s *GameState) Commit() (InitCommit, error) {
	if err := s.Validate(); err != nil {
		return InitCommit{}, err
	}
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s.Hits[r][c] {
				return InitCommit{}, errors.New("init state already has hits")
			}
		}
	}
	d, err := s.Digest()
	if err != nil {
		return InitCommit{}, err
	}
	return InitCommit{Digest: d}, nil
}

type ShotParams struct {
	State GameState `json:"state"`
	Shot  Position  `json:"shot"`
}

type ShotCommit struct {
	OldStateDigest Digest   `json:"old_state_digest"`
	NewStateDigest Digest   `json:"new_state_digest"`
	Shot           Position `json:"shot"`
	Hit            HitType  `json:"hit"`
}

func (p *ShotParams) Validate() error {
	if err := p.State.Validate(); err != nil {
		return err
	}
	if !p.Shot.Valid() {
		return fmt.Errorf("shot %s out of range", p.Shot)
	}
	return nil
}

// Apply computes the commitment the turn program publishes, plus the next state.
func (p *ShotParams) Apply() (ShotCommit, GameState, error) {
	if err := p.Validate(); err != nil {
		return ShotCommit{}, p.State, err
	}
	old, err := p.State.Digest()
	if err != nil {
		return ShotCommit{}, p.State, err
	}
	hit, next, err := p.State.Shoot(p.Shot)
	if err != nil {
		return ShotCommit{}, p.State, err
	}
	nd, err := next.Digest()
	if err != nil {
		return ShotCommit{}, p.State, err
	}
	return ShotCommit{OldStateDigest: old, NewStateDigest: nd, Shot: p.Shot, Hit: hit}, next, nil
}

type ScoutParams struct {
	State GameState `json:"state"`
	Shot  Position  `json:"shot"`
}

// ScoutResult also carries the digest of the scouted board.
type ScoutResult struct {
	Digest Digest    `json:"digest"`
	Shot   Position  `json:"shot"`
	Cells  []HitType `json:"cells"`
}

func (p *ScoutParams) Validate() error {
	if err := p.State.Validate(); err != nil {
		return err
	}
	_, err := ScoutArea(p.Shot)
	return err
}

func (p *ScoutParams) Apply() (ScoutResult, error) {
	if err := p.Validate(); err != nil {
		return ScoutResult{}, err
	}
	d, err := p.State.Digest()
	if err != nil {
		return ScoutResult{}, err
	}
	cells, err := p.State.Scout(p.Shot)
	if err != nil {
		return ScoutResult{}, err
	}
	return ScoutResult{Digest: d, Shot: p.Shot, Cells: cells[:]}, nil
}

type ClusterConfig struct {
	UpperLeft Position `json:"upper_left_coordinates"`
	DownRight Position `json:"down_right_coordinates"`
	Seed      uint8    `json:"seed"`
}

func (c ClusterConfig) Validate() error {
	if !c.UpperLeft.Valid() || !c.DownRight.Valid() {
		return errors.New("cluster rectangle off board")
	}
	if c.UpperLeft.Row > c.DownRight.Row || c.UpperLeft.Col > c.DownRight.Col {
		return fmt.Errorf("cluster corners %s and %s are inverted", c.UpperLeft, c.DownRight)
	}
	return nil
}

// Shots derives the struck cells from the seed. Each byte of a small LCG is
// scaled into the rectangle's height or width.
func (c ClusterConfig) Shots() []Position {
	s := uint32(c.Seed)
	next := func() uint32 {
		s = (s*73 + 41) & 0xff
		return s
	}
	h := uint32(c.DownRight.Row-c.UpperLeft.Row) + 1
	w := uint32(c.DownRight.Col-c.UpperLeft.Col) + 1
	out := make([]Position, ClusterShots)
	for i := range out {
		out[i].Row = c.UpperLeft.Row + uint8(next()*h>>8)
		out[i].Col = c.UpperLeft.Col + uint8(next()*w>>8)
	}
	return out
}

type ClusterBombParams struct {
	State  GameState     `json:"state"`
	Config ClusterConfig `json:"config"`
}

type ClusterCommit struct {
	OldStateDigest Digest        `json:"old_state_digest"`
	NewStateDigest Digest        `json:"new_state_digest"`
	Config         ClusterConfig `json:"config"`
	Shots          []Position    `json:"shots"`
	Hits           []HitType     `json:"hits"`
}

func (p *ClusterBombParams) Validate() error {
	if err := p.State.Validate(); err != nil {
		return err
	}
	return p.Config.Validate()
}

// Apply strikes every derived cell in order.
func (p *ClusterBombParams) Apply() (ClusterCommit, GameState, error) {
	if err := p.Validate(); err != nil {
		return ClusterCommit{}, p.State, err
	}
	old, err := p.State.Digest()
	if err != nil {
		return ClusterCommit{}, p.State, err
	}
	st := p.State
	shots := p.Config.Shots()
	hits := make([]HitType, len(shots))
	for i, pos := range shots {
		if hits[i], st, err = st.Shoot(pos); err != nil {
			return ClusterCommit{}, p.State, err
		}
	}
	nd, err := st.Digest()
	if err != nil {
		return ClusterCommit{}, p.State, err
	}
	return ClusterCommit{
		OldStateDigest: old,
		NewStateDigest: nd,
		Config:         p.Config,
		Shots:          shots,
		Hits:           hits,
	}, st, nil
}
