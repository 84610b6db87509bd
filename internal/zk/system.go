package zk

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
)

// ProgramID identifies a compiled program: Keccak-256 of its verifying key.
type ProgramID [32]byte

func (id ProgramID) String() string { return hexutil.Encode(id[:]) }

func (id ProgramID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ProgramID) UnmarshalText(b []byte) error {
	raw, err := hexutil.Decode(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(id) {
		return errors.Errorf("program id must be %d bytes", len(id))
	}
	copy(id[:], raw)
	return nil
}

// Program is one circuit the system can prove. Assign turns serialized
// private input into a full assignment.
type Program struct {
	Name    string
	Circuit frontend.Circuit
	Assign  func(input []byte) (frontend.Circuit, error)
}

type compiled struct {
	Program
	id       ProgramID
	ccs      constraint.ConstraintSystem
	pk       groth16.ProvingKey
	vk       groth16.VerifyingKey
	nbPublic int
}

// System is a Groth16/BN254 proving oracle over a fixed set of programs. It
// is immutable once built.
type System struct {
	byID   map[ProgramID]*compiled
	byName map[string]*compiled
	log    zerolog.Logger
}

type Option func(*System)

func WithLogger(l zerolog.Logger) Option {
	return func(s *System) { s.log = l }
}

// Setup compiles every program and runs an in-memory trusted setup.
func Setup(programs []Program, opts ...Option) (*System, error) {
	return build(programs, func(p *compiled) error {
		var err error
		p.pk, p.vk, err = groth16.Setup(p.ccs)
		return err
	}, opts)
}

// EnsureKeys loads <dir>/<name>.pk and .vk for each program, regenerating
// any pair that is missing or unreadable.
func EnsureKeys(dir string, programs []Program, opts ...Option) (*System, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return build(programs, func(p *compiled) error {
		vkPath := filepath.Join(dir, p.Name+".vk")
		pkPath := filepath.Join(dir, p.Name+".pk")

		// a half-written or stale pair is regenerated
		if vk, pk, err := readKeys(vkPath, pkPath); err == nil {
			p.vk, p.pk = vk, pk
			return nil
		}
		var err error
		if p.pk, p.vk, err = groth16.Setup(p.ccs); err != nil {
			return err
		}
		if err := writeKey(vkPath, p.vk); err != nil {
			return err
		}
		return writeKey(pkPath, p.pk)
	}, opts)
}

func build(programs []Program, keys func(*compiled) error, opts []Option) (*System, error) {
	s := &System{
		byID:   make(map[ProgramID]*compiled, len(programs)),
		byName: make(map[string]*compiled, len(programs)),
		log:    logger.Logger(),
	}
	for _, o := range opts {
		o(s)
	}

	out := make([]*compiled, len(programs))
	var g errgroup.Group
	for i, prog := range programs {
		g.Go(func() error {
			start := time.Now()
			ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, prog.Circuit)
			if err != nil {
				return errors.Wrapf(err, "compile %s", prog.Name)
			}
			// the constant wire is counted as public but never journaled
			p := &compiled{Program: prog, ccs: ccs, nbPublic: ccs.GetNbPublicVariables() - 1}
			if err := keys(p); err != nil {
				return errors.Wrapf(err, "keys for %s", prog.Name)
			}
			var buf bytes.Buffer
			if _, err := p.vk.WriteTo(&buf); err != nil {
				return err
			}
			h := sha3.NewLegacyKeccak256()
			h.Write(buf.Bytes())
			copy(p.id[:], h.Sum(nil))
			out[i] = p

			s.log.Info().
				Str("program", prog.Name).
				Int("constraints", ccs.GetNbConstraints()).
				Stringer("id", p.id).
				Dur("took", time.Since(start)).
				Msg("program ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if _, dup := s.byName[p.Name]; dup {
			return nil, errors.Errorf("duplicate program %q", p.Name)
		}
		s.byID[p.id] = p
		s.byName[p.Name] = p
	}
	return s, nil
}

// ID returns the identity established for a program name.
func (s *System) ID(name string) (ProgramID, bool) {
	p, ok := s.byName[name]
	if !ok {
		return ProgramID{}, false
	}
	return p.id, true
}

// Prove runs the named program on input. A cancelled ctx returns at once;
// the proving goroutine is left to finish on its own.
func (s *System) Prove(ctx context.Context, id ProgramID, input []byte) (*Receipt, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, errors.Errorf("unknown program %s", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assign, err := p.Assign(input)
	if err != nil {
		return nil, errors.Wrapf(err, "%s input", p.Name)
	}

	type result struct {
		r   *Receipt
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := p.prove(assign)
		done <- result{r, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.r, res.err
	}
}

func (p *compiled) prove(assign frontend.Circuit) (*Receipt, error) {
	full, err := frontend.NewWitness(assign, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(p.ccs, p.pk, full)
	if err != nil {
		return nil, err
	}
	pub, err := full.Public()
	if err != nil {
		return nil, err
	}
	journal, err := pub.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return &Receipt{Program: p.id, Seal: buf.Bytes(), Journal: journal}, nil
}

// Verify checks r against the verifying key of program id. A nil error is
// the only acceptance.
func (s *System) Verify(id ProgramID, r *Receipt) error {
	p, ok := s.byID[id]
	if !ok {
		return errors.Errorf("unknown program %s", id)
	}
	if r == nil {
		return errors.New("nil receipt")
	}
	if r.Program != id {
		return errors.Errorf("receipt is for program %s, want %s", r.Program, id)
	}
	pub, err := parseJournal(r.Journal, p.nbPublic)
	if err != nil {
		return err
	}
	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(r.Seal)); err != nil {
		return errors.Wrap(err, "seal")
	}
	return groth16.Verify(pr, p.vk, pub)
}

// EncodeJournal serializes the public part of an assignment, the same bytes
// a receipt for that assignment carries.
func EncodeJournal(assign frontend.Circuit) ([]byte, error) {
	pub, err := frontend.NewWitness(assign, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, err
	}
	return pub.MarshalBinary()
}

// ReadJournal returns the public values of a journal in circuit field order.
func ReadJournal(journal []byte) ([]*big.Int, error) {
	pub, err := parseJournal(journal, -1)
	if err != nil {
		return nil, err
	}
	vec, ok := pub.Vector().(fr.Vector)
	if !ok {
		return nil, errors.New("journal is not a BN254 vector")
	}
	out := make([]*big.Int, len(vec))
	for i := range vec {
		out[i] = vec[i].BigInt(new(big.Int))
	}
	return out, nil
}

// A journal is the gnark public witness: public count, secret count and
// vector length as big-endian uint32s, then one field element per value.
const (
	journalHeader = 12
	// MaxJournalValues bounds the public values of any program here.
	MaxJournalValues = 64
)

// checkJournal validates the framing of a journal before any allocation
// sized by it. want < 0 accepts any count up to MaxJournalValues.
func checkJournal(journal []byte, want int) error {
	if len(journal) < journalHeader {
		return errors.Errorf("journal: %d bytes is shorter than its header", len(journal))
	}
	nbPublic := binary.BigEndian.Uint32(journal[0:4])
	nbSecret := binary.BigEndian.Uint32(journal[4:8])
	n := binary.BigEndian.Uint32(journal[8:12])
	switch {
	case nbSecret != 0:
		return errors.Errorf("journal: carries %d secret values", nbSecret)
	case n != nbPublic:
		return errors.Errorf("journal: declares %d public values, holds %d", nbPublic, n)
	case n > MaxJournalValues:
		return errors.Errorf("journal: %d values exceed %d", n, MaxJournalValues)
	case want >= 0 && int(n) != want:
		return errors.Errorf("journal: %d values, program publishes %d", n, want)
	case len(journal) != journalHeader+int(n)*fr.Bytes:
		return errors.Errorf("journal: %d bytes for %d values", len(journal), n)
	}
	return nil
}

func parseJournal(journal []byte, want int) (witness.Witness, error) {
	if err := checkJournal(journal, want); err != nil {
		return nil, err
	}
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	if err := w.UnmarshalBinary(journal); err != nil {
		return nil, errors.Wrap(err, "journal")
	}
	return w, nil
}

func writeKey(path string, k io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = k.WriteTo(f)
	return err
}

func readKey(path string, k io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = k.ReadFrom(f)
	return err
}

func readKeys(vkPath, pkPath string) (groth16.VerifyingKey, groth16.ProvingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	return vk, pk, nil
}
