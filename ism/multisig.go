package ism

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const sigLen = 65 // r(32) || s(32) || v(1)

// ValidatorSet is the per-origin-domain signer set and acceptance threshold.
type ValidatorSet struct {
	Validators []Address
	Threshold  uint8
}

func NewValidatorSet(validators []Address, threshold uint8) (ValidatorSet, error) {
	if threshold == 0 {
		return ValidatorSet{}, ismerr(ISM_ERR_BAD_SET, "threshold must be > 0")
	}
	if int(threshold) > len(validators) {
		return ValidatorSet{}, ismerr(ISM_ERR_BAD_SET,
			fmt.Sprintf("threshold %d exceeds %d validators", threshold, len(validators)))
	}
	seen := make(map[Address]struct{}, len(validators))
	for _, v := range validators {
		if _, dup := seen[v]; dup {
			return ValidatorSet{}, ismerr(ISM_ERR_BAD_SET, "duplicate validator")
		}
		seen[v] = struct{}{}
	}
	return ValidatorSet{
		Validators: append([]Address(nil), validators...),
		Threshold:  threshold,
	}, nil
}

func (s ValidatorSet) contains(a Address) bool {
	for _, v := range s.Validators {
		if v == a {
			return true
		}
	}
	return false
}

// Metadata is the proof a delivery carries:
// merkleRoot(32) | index(4,BE) | sigCount(1) | sigCount * signature(65).
type Metadata struct {
	MerkleRoot [32]byte
	Index      uint32
	Signatures [][]byte
}

func EncodeMetadata(md Metadata) []byte {
	out := make([]byte, 0, 32+4+1+len(md.Signatures)*sigLen)
	out = append(out, md.MerkleRoot[:]...)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], md.Index)
	out = append(out, tmp4[:]...)
	out = append(out, byte(len(md.Signatures)))
	for _, sig := range md.Signatures {
		out = append(out, sig...)
	}
	return out
}

func ParseMetadata(b []byte) (Metadata, error) {
	const header = 32 + 4 + 1
	if len(b) < header {
		return Metadata{}, ismerr(ISM_ERR_METADATA, "truncated header")
	}
	var md Metadata
	copy(md.MerkleRoot[:], b[0:32])
	md.Index = binary.BigEndian.Uint32(b[32:36])
	count := int(b[36])
	rest := b[header:]
	if len(rest) != count*sigLen {
		return Metadata{}, ismerr(ISM_ERR_METADATA,
			fmt.Sprintf("want %d signature bytes, got %d", count*sigLen, len(rest)))
	}
	for i := 0; i < count; i++ {
		md.Signatures = append(md.Signatures, append([]byte(nil), rest[i*sigLen:(i+1)*sigLen]...))
	}
	return md, nil
}

// RecoverSigner recovers the validator address that produced sig over digest.
// Accepts recovery ids in both raw (0/1) and legacy (27/28) form.
func RecoverSigner(digest [32]byte, sig []byte) (Address, error) {
	if len(sig) != sigLen {
		return Address{}, ismerr(ISM_ERR_SIG_INVALID, fmt.Sprintf("signature length %d", len(sig)))
	}
	norm := append([]byte(nil), sig...)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	hash := SigningHash(digest)
	pub, err := crypto.SigToPub(hash[:], norm)
	if err != nil {
		return Address{}, ismerr(ISM_ERR_SIG_INVALID, err.Error())
	}
	var out Address
	copy(out[:], crypto.PubkeyToAddress(*pub).Bytes())
	return out, nil
}

// Verify succeeds iff at least Threshold DISTINCT validators of set signed
// the checkpoint binding messageID to the metadata's root and index.
//
// Signature order is irrelevant. Unrecoverable or foreign signatures are
// skipped, not fatal: a proof with threshold-many valid signatures plus
// arbitrary garbage appended still verifies.
func Verify(messageID [32]byte, mailboxAddress [32]byte, originDomain uint32, md Metadata, set ValidatorSet) error {
	cp := Checkpoint{
		MailboxAddress: mailboxAddress,
		OriginDomain:   originDomain,
		MerkleRoot:     md.MerkleRoot,
		Index:          md.Index,
	}
	digest := cp.Digest(messageID)

	matched := make(map[Address]struct{}, len(md.Signatures))
	for _, sig := range md.Signatures {
		signer, err := RecoverSigner(digest, sig)
		if err != nil {
			continue
		}
		if !set.contains(signer) {
			continue
		}
		matched[signer] = struct{}{}
		if len(matched) >= int(set.Threshold) {
			return nil
		}
	}
	return ismerr(ISM_ERR_THRESHOLD_NOT_MET,
		fmt.Sprintf("%d distinct signers, need %d", len(matched), set.Threshold))
}
