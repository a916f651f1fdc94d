package lockup

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Storage addresses are derived deterministically from a discriminator and the
// record's seed components, so existence can be checked without an index and a
// second materialization attempt for the same recipient collides instead of
// double-paying. The derivations are reproducible off-path by tooling.

// ScheduleAddress derives the storage address of a vesting schedule from its
// base key.
func ScheduleAddress(base [32]byte) [32]byte {
	return hash32([]byte("escrow"), base[:])
}

// RootEscrowAddress derives the storage address of a funding pool. The version
// distinguishes concurrent batches for the same creator and token.
func RootEscrowAddress(base [32]byte, token string, version uint64) [32]byte {
	var ver [8]byte
	binary.LittleEndian.PutUint64(ver[:], version)
	return hash32([]byte("root_escrow"), base[:], []byte(token), ver[:])
}

// MaterializedBase derives the base key of a schedule materialized from a
// pool. Deriving from (pool, recipient) is what makes a repeat materialize
// attempt collide.
func MaterializedBase(pool [32]byte, recipient [20]byte) [32]byte {
	return hash32([]byte("base"), pool[:], recipient[:])
}

// ClaimStatusAddress derives the storage address of a stateless-claim
// accumulator.
func ClaimStatusAddress(pool [32]byte, recipient [20]byte) [32]byte {
	return hash32([]byte("claim_status"), pool[:], recipient[:])
}

// VaultAddress derives the custody account address owned by a record.
func VaultAddress(id [32]byte) [20]byte {
	sum := ethcrypto.Keccak256([]byte("vault"), id[:])
	var addr [20]byte
	copy(addr[:], sum[12:])
	return addr
}

func hash32(parts ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(parts...))
	return out
}
