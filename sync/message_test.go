package sync

import (
	"bytes"
	"testing"

	"sentinelfs/domain"
)

func TestEnvelopeWriteReadRoundTrip(t *testing.T) {
	e := Envelope{Version: protocolVersion, Type: MsgUpdateAvailable, ChunkIndex: 2, TotalChunks: 5, Payload: []byte("hello")}
	raw := e.Write()

	got, err := ReadEnvelope(raw)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if got.Version != e.Version || got.Type != e.Type || got.ChunkIndex != e.ChunkIndex || got.TotalChunks != e.TotalChunks {
		t.Fatalf("header mismatch: %+v vs %+v", got, e)
	}
	if !bytes.Equal(got.Payload, e.Payload) {
		t.Fatalf("payload mismatch: %q vs %q", got.Payload, e.Payload)
	}
}

func TestReadEnvelopeRejectsShortBuffer(t *testing.T) {
	_, err := ReadEnvelope([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestReadEnvelopeRejectsOversizedPayload(t *testing.T) {
	e := Envelope{Type: MsgFileData, TotalChunks: 1}
	raw := e.Write()
	// overwrite declared payload size to exceed the sanity limit
	raw[2], raw[3], raw[4], raw[5] = 0xFF, 0xFF, 0xFF, 0x7F
	_, err := ReadEnvelope(raw)
	if err == nil {
		t.Fatalf("expected error for oversized payload_size")
	}
}

func TestReadEnvelopeRejectsChunkIndexOutOfRange(t *testing.T) {
	e := Envelope{Type: MsgFileData, ChunkIndex: 5, TotalChunks: 3}
	raw := e.Write()
	_, err := ReadEnvelope(raw)
	if err == nil {
		t.Fatalf("expected error for chunk_index >= total_chunks")
	}
}

func TestReadEnvelopeRejectsTruncatedPayload(t *testing.T) {
	e := Envelope{Type: MsgUpdateAvailable, Payload: []byte("hello world")}
	raw := e.Write()
	truncated := raw[:len(raw)-3]
	_, err := ReadEnvelope(truncated)
	if err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestUpdateAvailableWriteParseRoundTrip(t *testing.T) {
	m := UpdateAvailable{RelPath: "docs/a.txt", Hash: "deadbeef", Size: 1234, VectorClock: domain.VectorClock{"p1": 3, "p2": 1}}
	got, ok := ParseUpdateAvailable(m.Write())
	if !ok {
		t.Fatalf("expected parse ok")
	}
	if got.RelPath != m.RelPath || got.Hash != m.Hash || got.Size != m.Size {
		t.Fatalf("mismatch: %+v vs %+v", got, m)
	}
	if !domain.Equal(got.VectorClock, m.VectorClock) {
		t.Fatalf("vector clock mismatch: %v vs %v", got.VectorClock, m.VectorClock)
	}
}

func TestParseUpdateAvailableRejectsTruncated(t *testing.T) {
	_, ok := ParseUpdateAvailable([]byte{0, 0})
	if ok {
		t.Fatalf("expected parse failure for truncated buffer")
	}
}

func TestRequestDeltaWriteParseRoundTrip(t *testing.T) {
	sig := Signature(make([]byte, 4096*2), 4096)
	m := RequestDelta{RelPath: "a.bin", Signature: sig}
	got, ok := ParseRequestDelta(m.Write())
	if !ok {
		t.Fatalf("expected parse ok")
	}
	if got.RelPath != m.RelPath || len(got.Signature) != len(m.Signature) {
		t.Fatalf("mismatch: %+v vs %+v", got, m)
	}
	for i := range sig {
		if got.Signature[i] != m.Signature[i] {
			t.Fatalf("signature entry %d mismatch", i)
		}
	}
}

func TestRequestDeltaEmptySignatureRoundTrips(t *testing.T) {
	m := RequestDelta{RelPath: "new.txt"}
	got, ok := ParseRequestDelta(m.Write())
	if !ok || len(got.Signature) != 0 {
		t.Fatalf("expected empty signature to round trip, got %+v ok=%v", got, ok)
	}
}

func TestRequestFileWriteParseRoundTrip(t *testing.T) {
	m := RequestFile{RelPath: "missing.txt"}
	got, ok := ParseRequestFile(m.Write())
	if !ok || got.RelPath != m.RelPath {
		t.Fatalf("mismatch: %+v ok=%v", got, ok)
	}
}

func TestDeleteFileWriteParseRoundTrip(t *testing.T) {
	m := DeleteFile{RelPath: "gone.txt", VectorClock: domain.VectorClock{"p1": 2}}
	got, ok := ParseDeleteFile(m.Write())
	if !ok || got.RelPath != m.RelPath || !domain.Equal(got.VectorClock, m.VectorClock) {
		t.Fatalf("mismatch: %+v ok=%v", got, ok)
	}
}

func TestChunkPayloadWriteParseRoundTrip(t *testing.T) {
	m := ChunkPayload{RelPath: "big.bin", Data: []byte{1, 2, 3, 4, 5}}
	got, ok := ParseChunkPayload(m.Write())
	if !ok || got.RelPath != m.RelPath || !bytes.Equal(got.Data, m.Data) {
		t.Fatalf("mismatch: %+v ok=%v", got, ok)
	}
}
