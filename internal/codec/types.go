package codec

import (
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

// Secret is the defender's private file: the current board state and the
// digest the opponent has accepted for it.
type Secret struct {
	State  game.GameState `json:"state"`
	Digest game.Digest    `json:"digest"`
}

// ReceiptFile is a receipt tagged with the action it proves.
type ReceiptFile struct {
	Action  string     `json:"action" cbor:"1,keyasint"`
	Receipt zk.Receipt `json:"receipt" cbor:"2,keyasint"`
}
