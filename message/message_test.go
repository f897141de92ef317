package message

import (
	"bytes"
	"testing"
)

func sampleMessage() *Message {
	m := &Message{
		Version:     CurrentVersion,
		Nonce:       7,
		Origin:      1,
		Destination: 2,
		Body:        []byte("hello from origin"),
	}
	m.Sender[31] = 0xAA
	m.Recipient[31] = 0xBB
	return m
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	m := sampleMessage()
	parsed, err := Parse(Encode(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Version != m.Version || parsed.Nonce != m.Nonce || parsed.Origin != m.Origin {
		t.Fatalf("header mismatch")
	}
	if parsed.Sender != m.Sender || parsed.Recipient != m.Recipient || parsed.Destination != m.Destination {
		t.Fatalf("address mismatch")
	}
	if !bytes.Equal(parsed.Body, m.Body) {
		t.Fatalf("body mismatch")
	}
}

func TestEncodeParse_EmptyBody(t *testing.T) {
	m := sampleMessage()
	m.Body = nil
	parsed, err := Parse(Encode(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Body) != 0 {
		t.Fatalf("want empty body, got %d bytes", len(parsed.Body))
	}
}

func TestParse_Truncated(t *testing.T) {
	b := Encode(sampleMessage())
	if _, err := Parse(b[:headerSize-1]); err == nil {
		t.Fatalf("want error for truncated input")
	}
}

func TestID_Deterministic(t *testing.T) {
	m := sampleMessage()
	if ID(m) != ID(m) {
		t.Fatalf("id not deterministic")
	}
	other, err := Parse(Encode(m))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ID(other) != ID(m) {
		t.Fatalf("id differs after round trip")
	}
}

func TestID_SensitiveToEveryField(t *testing.T) {
	base := ID(sampleMessage())

	mutations := []func(*Message){
		func(m *Message) { m.Version = 2 },
		func(m *Message) { m.Nonce++ },
		func(m *Message) { m.Origin++ },
		func(m *Message) { m.Sender[0] = 1 },
		func(m *Message) { m.Destination++ },
		func(m *Message) { m.Recipient[0] = 1 },
		func(m *Message) { m.Body = append(m.Body, 0) },
	}
	for i, mutate := range mutations {
		m := sampleMessage()
		mutate(m)
		if ID(m) == base {
			t.Fatalf("mutation %d did not change id", i)
		}
	}
}

func TestValidate(t *testing.T) {
	m := sampleMessage()
	if err := Validate(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m = sampleMessage()
	m.Version = CurrentVersion + 1
	if got := CodeOf(Validate(m)); got != MSG_ERR_VERSION {
		t.Fatalf("want MSG_ERR_VERSION, got %q", got)
	}

	m = sampleMessage()
	m.Body = make([]byte, MaxBodySize+1)
	if got := CodeOf(Validate(m)); got != MSG_ERR_BODY_TOO_LONG {
		t.Fatalf("want MSG_ERR_BODY_TOO_LONG, got %q", got)
	}

	m = sampleMessage()
	m.Body = make([]byte, MaxBodySize)
	if err := Validate(m); err != nil {
		t.Fatalf("body at limit must validate: %v", err)
	}
}

func TestPadAddress(t *testing.T) {
	padded, err := PadAddress([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if padded[30] != 0x01 || padded[31] != 0x02 {
		t.Fatalf("want left padding, got %x", padded)
	}
	if _, err := PadAddress(make([]byte, 33)); err == nil {
		t.Fatalf("want error for oversized address")
	}
}
