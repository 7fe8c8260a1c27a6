package domain

import "testing"

func TestPendingDeltaAssemblyDuplicateChunkIdempotent(t *testing.T) {
	p := NewPendingDeltaAssembly(3)
	p.Put(0, []byte("a"))
	p.Put(0, []byte("tampered"))
	p.Put(1, []byte("b"))
	p.Put(2, []byte("c"))

	if !p.Complete() {
		t.Fatal("expected assembly to be complete")
	}
	got := string(p.Assemble())
	if got != "abc" {
		t.Errorf("got %q, want %q (duplicate arrival must not corrupt assembly)", got, "abc")
	}
}

func TestPendingDeltaAssemblyOutOfRangeIgnored(t *testing.T) {
	p := NewPendingDeltaAssembly(2)
	p.Put(5, []byte("x"))
	p.Put(-1, []byte("y"))
	if p.ReceivedCnt != 0 {
		t.Errorf("out-of-range puts should be ignored, got ReceivedCnt=%d", p.ReceivedCnt)
	}
}

func TestPendingDeltaAssemblyNotCompleteUntilAllChunks(t *testing.T) {
	p := NewPendingDeltaAssembly(2)
	p.Put(0, []byte("a"))
	if p.Complete() {
		t.Fatal("expected incomplete assembly")
	}
}
