// Package ism implements the multisig security module: checkpoint digest
// derivation and threshold verification of validator signatures over it.
//
// The verifier is a pure predicate over public data. It holds no state and
// touches no ledger, which is what makes it testable in isolation and usable
// by both on-path delivery and off-path tooling.
//
// Known design risk in this protocol family, deliberately not implemented
// here: when an execution environment cannot verify the attestation scheme
// natively, some deployments fall back to trusting a relayer's own signature
// over an externally-verified attestation. That inserts a semi-trusted
// intermediary into what looks like pure multisig. This package verifies raw
// secp256k1 signatures directly and nothing in it depends on a relayer.
package ism

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// Address is a 20-byte validator address (keccak256 of the uncompressed
// public key, last 20 bytes), matching how validators identify themselves
// protocol-wide.
type Address [20]byte

// Checkpoint is what a validator attests to: the outbound history of one
// mailbox at one index. Signed, never stored.
type Checkpoint struct {
	MailboxAddress [32]byte
	OriginDomain   uint32
	MerkleRoot     [32]byte
	Index          uint32
}

const domainSuffix = "HYPERLANE"

// DomainHash binds signatures to one mailbox instance on one origin domain,
// so a checkpoint signed for mailbox A can never satisfy mailbox B.
func DomainHash(originDomain uint32, mailboxAddress [32]byte) [32]byte {
	buf := make([]byte, 0, 4+32+len(domainSuffix))
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], originDomain)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, mailboxAddress[:]...)
	buf = append(buf, domainSuffix...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// Digest is the checkpoint signing payload:
// keccak256(domainHash || merkleRoot || index(4,BE) || messageID).
func (c Checkpoint) Digest(messageID [32]byte) [32]byte {
	dh := DomainHash(c.OriginDomain, c.MailboxAddress)
	buf := make([]byte, 0, 32+32+4+32)
	buf = append(buf, dh[:]...)
	buf = append(buf, c.MerkleRoot[:]...)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], c.Index)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, messageID[:]...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// SigningHash wraps the digest in the Ethereum signed-message envelope, which
// is what validator signing keys actually sign.
func SigningHash(digest [32]byte) [32]byte {
	buf := make([]byte, 0, 28+32)
	buf = append(buf, "\x19Ethereum Signed Message:\n32"...)
	buf = append(buf, digest[:]...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}
