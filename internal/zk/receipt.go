package zk

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Receipt is the proof of one program run: the Groth16 seal and the public
// journal it was verified against.
type Receipt struct {
	Program ProgramID `json:"program" cbor:"1,keyasint"`
	Seal    []byte    `json:"seal" cbor:"2,keyasint"`
	Journal []byte    `json:"journal" cbor:"3,keyasint"`
}

// ReceiptID names the statement a receipt proves: its program and journal.
// The seal is left out because a Groth16 proof can be re-randomized into
// another valid seal for the same journal.
type ReceiptID [32]byte

func (id ReceiptID) String() string { return hexutil.Encode(id[:]) }

func (r *Receipt) ID() ReceiptID {
	var id ReceiptID
	h := sha3.NewLegacyKeccak256()
	h.Write(r.Program[:])
	h.Write(r.Journal)
	copy(id[:], h.Sum(nil))
	return id
}
