package message

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// CurrentVersion is the protocol message version this client emits and accepts.
	CurrentVersion = 3

	// MaxBodySize bounds the variable-length body so every message fits a
	// single inline datum.
	MaxBodySize = 2048

	headerSize = 1 + 4 + 4 + 32 + 4 + 32
)

// Message is the unit moved between domains. Immutable once dispatched.
type Message struct {
	Version     byte
	Nonce       uint32
	Origin      uint32
	Sender      [32]byte
	Destination uint32
	Recipient   [32]byte
	Body        []byte
}

// Encode produces the canonical wire layout:
// version(1) | nonce(4,BE) | origin(4,BE) | sender(32) | destination(4,BE) | recipient(32) | body.
// Remote validators sign digests of these exact bytes, so the layout is fixed.
func Encode(m *Message) []byte {
	out := make([]byte, 0, headerSize+len(m.Body))
	var tmp4 [4]byte
	out = append(out, m.Version)
	binary.BigEndian.PutUint32(tmp4[:], m.Nonce)
	out = append(out, tmp4[:]...)
	binary.BigEndian.PutUint32(tmp4[:], m.Origin)
	out = append(out, tmp4[:]...)
	out = append(out, m.Sender[:]...)
	binary.BigEndian.PutUint32(tmp4[:], m.Destination)
	out = append(out, tmp4[:]...)
	out = append(out, m.Recipient[:]...)
	out = append(out, m.Body...)
	return out
}

// Parse is the inverse of Encode. Everything after the fixed header is body.
func Parse(b []byte) (*Message, error) {
	if len(b) < headerSize {
		return nil, msgerr(MSG_ERR_PARSE, fmt.Sprintf("need %d header bytes, got %d", headerSize, len(b)))
	}
	m := &Message{}
	off := 0
	m.Version = b[off]
	off++
	m.Nonce = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	m.Origin = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	copy(m.Sender[:], b[off:off+32])
	off += 32
	m.Destination = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	copy(m.Recipient[:], b[off:off+32])
	off += 32
	m.Body = append([]byte(nil), b[off:]...)
	return m, nil
}

// ID derives the deterministic 32-byte message identifier.
//
// This is keccak256, the hash every chain in the protocol signs over, not the
// ledger-native hash. Swapping in the cheaper local hash here would silently
// break cross-chain signature compatibility.
func ID(m *Message) [32]byte {
	var id [32]byte
	copy(id[:], crypto.Keccak256(Encode(m)))
	return id
}

// Validate checks the static well-formedness rules. Pure.
func Validate(m *Message) error {
	if m == nil {
		return msgerr(MSG_ERR_PARSE, "nil message")
	}
	if m.Version != CurrentVersion {
		return msgerr(MSG_ERR_VERSION, fmt.Sprintf("version %d unsupported", m.Version))
	}
	if len(m.Body) > MaxBodySize {
		return msgerr(MSG_ERR_BODY_TOO_LONG, fmt.Sprintf("body %d exceeds %d", len(m.Body), MaxBodySize))
	}
	return nil
}

// PadAddress left-pads a shorter native address into the 32-byte protocol form.
func PadAddress(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) > 32 {
		return out, msgerr(MSG_ERR_PARSE, "address longer than 32 bytes")
	}
	copy(out[32-len(b):], b)
	return out, nil
}
