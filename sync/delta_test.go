package sync

import (
	"bytes"
	"strings"
	"testing"
)

func TestComputeDeltaUnchangedContentIsAllCopyOps(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 1024))
	sig := Signature(data, 64)

	delta := ComputeDelta(data, sig, 64)
	for _, op := range delta.Ops {
		if !op.IsCopy {
			t.Fatalf("expected unchanged content to produce only copy ops, got literal %q", op.Literal)
		}
	}

	blocks := SplitBlocks(data, 64)
	rebuilt := ApplyDelta(delta, blocks)
	if !bytes.Equal(rebuilt, data) {
		t.Fatalf("round trip mismatch on unchanged content")
	}
}

func TestComputeDeltaAppendedContentProducesTrailingLiteral(t *testing.T) {
	old := []byte(strings.Repeat("abcdefgh", 512))
	sig := Signature(old, 64)

	appended := append(append([]byte{}, old...), []byte("NEWTAIL")...)
	delta := ComputeDelta(appended, sig, 64)

	blocks := SplitBlocks(old, 64)
	rebuilt := ApplyDelta(delta, blocks)
	if !bytes.Equal(rebuilt, appended) {
		t.Fatalf("round trip mismatch: got %d bytes want %d", len(rebuilt), len(appended))
	}

	foundLiteral := false
	for _, op := range delta.Ops {
		if !op.IsCopy && bytes.Contains(op.Literal, []byte("NEWTAIL")) {
			foundLiteral = true
		}
	}
	if !foundLiteral {
		t.Fatalf("expected a literal op containing the appended tail")
	}
}

func TestComputeDeltaEntirelyDifferentContentIsAllLiteral(t *testing.T) {
	old := []byte(strings.Repeat("A", 4096))
	sig := Signature(old, 4096)

	newData := []byte(strings.Repeat("Z", 4096))
	delta := ComputeDelta(newData, sig, 4096)

	blocks := SplitBlocks(old, 4096)
	rebuilt := ApplyDelta(delta, blocks)
	if !bytes.Equal(rebuilt, newData) {
		t.Fatalf("round trip mismatch for fully different content")
	}
}

func TestComputeDeltaEmptyInputProducesNoOps(t *testing.T) {
	delta := ComputeDelta(nil, nil, 64)
	if len(delta.Ops) != 0 {
		t.Fatalf("expected no ops for empty input, got %d", len(delta.Ops))
	}
}

func TestSerializeParseDeltaRoundTrip(t *testing.T) {
	old := []byte(strings.Repeat("abcdefgh", 512))
	sig := Signature(old, 64)

	appended := append(append([]byte{}, old...), []byte("NEWTAIL")...)
	delta := ComputeDelta(appended, sig, 64)

	raw := SerializeDelta(delta)
	parsed, ok := ParseDelta(raw, 64)
	if !ok {
		t.Fatalf("expected parse ok")
	}
	if len(parsed.Ops) != len(delta.Ops) {
		t.Fatalf("op count mismatch: %d vs %d", len(parsed.Ops), len(delta.Ops))
	}

	blocks := SplitBlocks(old, 64)
	rebuilt := ApplyDelta(parsed, blocks)
	if !bytes.Equal(rebuilt, appended) {
		t.Fatalf("round trip via wire format mismatch")
	}
}

func TestParseDeltaRejectsTruncatedLiteral(t *testing.T) {
	_, ok := ParseDelta([]byte{0, 10, 0, 0, 0, 'a', 'b'}, 64)
	if ok {
		t.Fatalf("expected parse failure for truncated literal")
	}
}

func TestComputeDeltaInsertedMidContentReconstructs(t *testing.T) {
	old := []byte(strings.Repeat("0123456789", 200))
	sig := Signature(old, 64)

	mid := len(old) / 2
	modified := append(append(append([]byte{}, old[:mid]...), []byte("---INSERTED---")...), old[mid:]...)

	delta := ComputeDelta(modified, sig, 64)
	blocks := SplitBlocks(old, 64)
	rebuilt := ApplyDelta(delta, blocks)
	if !bytes.Equal(rebuilt, modified) {
		t.Fatalf("round trip mismatch for mid-content insertion")
	}
}
