package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	roundID := []byte("round-7")
	msg := MsgSubmitMsg{Gamma: []byte{1, 2, 3}, Enc: []byte{4, 5, 6}}

	data, err := Encode(MsgSubmit, roundID, 3, msg)
	if err != nil {
		t.Fatalf("Encode: %s", err)
	}

	var got MsgSubmitMsg
	env, err := Decode(data, &got)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if env.Tag != MsgSubmit {
		t.Fatalf("tag = %d, want %d", env.Tag, MsgSubmit)
	}
	if env.Phase != 3 {
		t.Fatalf("phase = %d, want 3", env.Phase)
	}
	if !bytes.Equal(env.RoundID, roundID) {
		t.Fatalf("round id = %q, want %q", env.RoundID, roundID)
	}
	if !bytes.Equal(got.Gamma, msg.Gamma) || !bytes.Equal(got.Enc, msg.Enc) {
		t.Fatalf("decoded body = %+v, want %+v", got, msg)
	}
}

func TestDecodeWithoutBody(t *testing.T) {
	data, err := Encode(ServerCommit, []byte("rid"), 1, ServerCommitMsg{Commitment: []byte("h")})
	if err != nil {
		t.Fatal(err)
	}
	env, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}
	if env.Tag != ServerCommit {
		t.Fatalf("tag = %d, want %d", env.Tag, ServerCommit)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a gob stream"), nil); err == nil {
		t.Fatal("expected garbage input to fail decoding")
	}
}
