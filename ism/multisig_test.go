package ism

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

type testValidator struct {
	key  *ecdsa.PrivateKey
	addr Address
}

func newValidators(t *testing.T, n int) []testValidator {
	t.Helper()
	out := make([]testValidator, n)
	for i := range out {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		out[i].key = key
		copy(out[i].addr[:], crypto.PubkeyToAddress(key.PublicKey).Bytes())
	}
	return out
}

func addresses(vs []testValidator) []Address {
	out := make([]Address, len(vs))
	for i, v := range vs {
		out[i] = v.addr
	}
	return out
}

func sign(t *testing.T, v testValidator, digest [32]byte) []byte {
	t.Helper()
	hash := SigningHash(digest)
	sig, err := crypto.Sign(hash[:], v.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

type checkpointFixture struct {
	messageID [32]byte
	mailbox   [32]byte
	origin    uint32
	md        Metadata
}

func newFixture() checkpointFixture {
	f := checkpointFixture{origin: 1}
	f.messageID[0] = 0x11
	f.mailbox[0] = 0x22
	f.md = Metadata{Index: 42}
	f.md.MerkleRoot[0] = 0x33
	return f
}

func (f checkpointFixture) digest() [32]byte {
	cp := Checkpoint{
		MailboxAddress: f.mailbox,
		OriginDomain:   f.origin,
		MerkleRoot:     f.md.MerkleRoot,
		Index:          f.md.Index,
	}
	return cp.Digest(f.messageID)
}

func TestNewValidatorSet(t *testing.T) {
	vs := newValidators(t, 3)

	if _, err := NewValidatorSet(addresses(vs), 0); CodeOf(err) != ISM_ERR_BAD_SET {
		t.Fatalf("zero threshold must be rejected, got %v", err)
	}
	if _, err := NewValidatorSet(addresses(vs), 4); CodeOf(err) != ISM_ERR_BAD_SET {
		t.Fatalf("threshold above set size must be rejected, got %v", err)
	}
	dup := append(addresses(vs), vs[0].addr)
	if _, err := NewValidatorSet(dup, 2); CodeOf(err) != ISM_ERR_BAD_SET {
		t.Fatalf("duplicate validator must be rejected, got %v", err)
	}
	if _, err := NewValidatorSet(addresses(vs), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerify_ThresholdBoundary(t *testing.T) {
	vs := newValidators(t, 3)
	set, err := NewValidatorSet(addresses(vs), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newFixture()
	digest := f.digest()

	f.md.Signatures = [][]byte{sign(t, vs[0], digest)}
	if got := CodeOf(Verify(f.messageID, f.mailbox, f.origin, f.md, set)); got != ISM_ERR_THRESHOLD_NOT_MET {
		t.Fatalf("one of two signatures must not verify, got %q", got)
	}

	f.md.Signatures = [][]byte{sign(t, vs[0], digest), sign(t, vs[2], digest)}
	if err := Verify(f.messageID, f.mailbox, f.origin, f.md, set); err != nil {
		t.Fatalf("threshold signatures must verify: %v", err)
	}
}

func TestVerify_DuplicateSignerCountsOnce(t *testing.T) {
	vs := newValidators(t, 2)
	set, err := NewValidatorSet(addresses(vs), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newFixture()
	digest := f.digest()

	sig := sign(t, vs[0], digest)
	f.md.Signatures = [][]byte{sig, sig, sig}
	if got := CodeOf(Verify(f.messageID, f.mailbox, f.origin, f.md, set)); got != ISM_ERR_THRESHOLD_NOT_MET {
		t.Fatalf("repeated signer must count once, got %q", got)
	}
}

func TestVerify_GarbageSignaturesSkipped(t *testing.T) {
	vs := newValidators(t, 2)
	outsider := newValidators(t, 1)[0]
	set, err := NewValidatorSet(addresses(vs), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newFixture()
	digest := f.digest()

	garbage := make([]byte, sigLen)
	f.md.Signatures = [][]byte{
		garbage,
		sign(t, outsider, digest),
		sign(t, vs[0], digest),
		sign(t, vs[1], digest),
	}
	if err := Verify(f.messageID, f.mailbox, f.origin, f.md, set); err != nil {
		t.Fatalf("garbage alongside a quorum must still verify: %v", err)
	}
}

func TestVerify_WrongMailboxOrDomainFails(t *testing.T) {
	vs := newValidators(t, 1)
	set, err := NewValidatorSet(addresses(vs), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newFixture()
	f.md.Signatures = [][]byte{sign(t, vs[0], f.digest())}

	var otherMailbox [32]byte
	otherMailbox[0] = 0x99
	if err := Verify(f.messageID, otherMailbox, f.origin, f.md, set); err == nil {
		t.Fatalf("signature for another mailbox must not verify")
	}
	if err := Verify(f.messageID, f.mailbox, f.origin+1, f.md, set); err == nil {
		t.Fatalf("signature for another domain must not verify")
	}
}

func TestRecoverSigner_LegacyRecoveryID(t *testing.T) {
	v := newValidators(t, 1)[0]
	f := newFixture()
	digest := f.digest()

	sig := sign(t, v, digest)
	legacy := append([]byte(nil), sig...)
	legacy[64] += 27

	got, err := RecoverSigner(digest, legacy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != v.addr {
		t.Fatalf("recovered %x, want %x", got, v.addr)
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	f := newFixture()
	f.md.Signatures = [][]byte{make([]byte, sigLen), make([]byte, sigLen)}
	f.md.Signatures[1][0] = 0x7F

	parsed, err := ParseMetadata(EncodeMetadata(f.md))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MerkleRoot != f.md.MerkleRoot || parsed.Index != f.md.Index {
		t.Fatalf("checkpoint fields mismatch")
	}
	if len(parsed.Signatures) != 2 || parsed.Signatures[1][0] != 0x7F {
		t.Fatalf("signatures mismatch")
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	if _, err := ParseMetadata(make([]byte, 10)); CodeOf(err) != ISM_ERR_METADATA {
		t.Fatalf("truncated header must be rejected")
	}
	b := EncodeMetadata(Metadata{Signatures: [][]byte{make([]byte, sigLen)}})
	if _, err := ParseMetadata(b[:len(b)-1]); CodeOf(err) != ISM_ERR_METADATA {
		t.Fatalf("truncated signature must be rejected")
	}
}
