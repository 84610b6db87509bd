package proof

import (
	"fmt"

	"github.com/pkg/errors"

	"sagittarius-zk/internal/action"
)

var (
	// ErrProvingFailed: the oracle produced no proof for the input.
	ErrProvingFailed = errors.New("proving failed")
	// ErrInvalidReceipt: the receipt does not verify for the expected program.
	ErrInvalidReceipt = errors.New("invalid receipt")
	// ErrMalformedJournal: the journal does not decode into the commitment.
	ErrMalformedJournal = errors.New("malformed journal")
	// ErrCommitmentMismatch: a public field differs from what the caller asked for.
	ErrCommitmentMismatch = errors.New("commitment mismatch")
)

// MismatchError names the commitment field that failed the binding check.
type MismatchError struct {
	Kind  action.Kind
	Field string
	Want  any
	Got   any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s commitment field %s: want %v, got %v", ErrCommitmentMismatch, e.Kind, e.Field, e.Want, e.Got)
}

func (e *MismatchError) Is(target error) bool { return target == ErrCommitmentMismatch }

func mismatch(k action.Kind, field string, want, got any) error {
	return &MismatchError{Kind: k, Field: field, Want: want, Got: got}
}
