package domain

import "testing"

func TestHappensBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b VectorClock
		want bool
	}{
		{"strictly less", VectorClock{"p1": 1}, VectorClock{"p1": 2}, true},
		{"equal", VectorClock{"p1": 1}, VectorClock{"p1": 1}, false},
		{"greater", VectorClock{"p1": 2}, VectorClock{"p1": 1}, false},
		{"missing key treated as zero", VectorClock{}, VectorClock{"p1": 1}, true},
		{"concurrent not before", VectorClock{"p1": 1, "p2": 0}, VectorClock{"p1": 0, "p2": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HappensBefore(tt.a, tt.b); got != tt.want {
				t.Errorf("HappensBefore(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestConcurrentExclusivity(t *testing.T) {
	// Exactly one of a<b, b<a, a==b, a‖b holds (spec.md 8).
	pairs := []struct{ a, b VectorClock }{
		{VectorClock{"p1": 1}, VectorClock{"p1": 2}},
		{VectorClock{"p1": 1}, VectorClock{"p1": 1}},
		{VectorClock{"p1": 1, "p2": 0}, VectorClock{"p1": 0, "p2": 1}},
	}
	for _, p := range pairs {
		before := HappensBefore(p.a, p.b)
		after := HappensBefore(p.b, p.a)
		eq := Equal(p.a, p.b)
		conc := Concurrent(p.a, p.b)
		count := 0
		for _, v := range []bool{before, after, eq, conc} {
			if v {
				count++
			}
		}
		if count != 1 {
			t.Errorf("pair %v/%v: expected exactly one relation true, got before=%v after=%v eq=%v conc=%v",
				p.a, p.b, before, after, eq, conc)
		}
	}
}

func TestMergeDominatesBoth(t *testing.T) {
	a := VectorClock{"p1": 3, "p2": 1}
	b := VectorClock{"p1": 1, "p2": 5, "p3": 2}
	m := Merge(a, b)

	for _, p := range unionKeys(a, b) {
		if m.get(p) < a.get(p) || m.get(p) < b.get(p) {
			t.Errorf("merge not >= inputs at %q: merge=%d a=%d b=%d", p, m.get(p), a.get(p), b.get(p))
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	vc := VectorClock{"peer-a": 3, "peer-b": 10}
	got := ParseVectorClock(vc.Serialize())
	if !Equal(got, vc) {
		t.Errorf("round trip mismatch: got %v, want %v", got, vc)
	}
}

func TestParseVectorClockMalformedTokensSkipped(t *testing.T) {
	vc := ParseVectorClock("peer-a:3,garbage,peer-b:notanumber,peer-c:7")
	want := VectorClock{"peer-a": 3, "peer-c": 7}
	if !Equal(vc, want) {
		t.Errorf("got %v, want %v", vc, want)
	}
}

func TestIncrement(t *testing.T) {
	vc := NewVectorClock()
	vc.Increment("p1")
	vc.Increment("p1")
	if vc["p1"] != 2 {
		t.Errorf("got %d, want 2", vc["p1"])
	}
}
