package bandwidth

import "testing"

func TestTokenBucketTryGrantsUpToAvailable(t *testing.T) {
	b := NewTokenBucket(1000, 500)
	got := b.Try(1000)
	if got != 500 {
		t.Fatalf("expected grant clamped to burst 500, got %v", got)
	}
}

func TestTokenBucketTryPartialGrant(t *testing.T) {
	b := NewTokenBucket(1000, 100)
	first := b.Try(60)
	if first != 60 {
		t.Fatalf("expected full grant of 60, got %v", first)
	}
	second := b.Try(60)
	if second != 40 {
		t.Fatalf("expected partial grant of 40 remaining tokens, got %v", second)
	}
}

func TestTokenBucketUnlimitedRateNeverBlocks(t *testing.T) {
	b := NewTokenBucket(0, 0)
	if got := b.Try(1 << 30); got != 1<<30 {
		t.Fatalf("expected unlimited bucket to grant full request, got %v", got)
	}
	if !b.Request(1<<30, nil) {
		t.Fatal("expected unlimited bucket to never block Request")
	}
}

func TestTokenBucketRequestSucceedsWhenTokensAvailable(t *testing.T) {
	b := NewTokenBucket(1000, 1000)
	if !b.Request(500, nil) {
		t.Fatal("expected immediate success with tokens available")
	}
}

func TestTokenBucketRequestStopsOnSignal(t *testing.T) {
	b := NewTokenBucket(1, 1) // extremely slow refill
	b.Try(1)                 // drain it
	stop := make(chan struct{})
	close(stop)
	if b.Request(1000, stop) {
		t.Fatal("expected Request to abort when stop is already closed")
	}
}

func TestTokenBucketSetRateUpdatesObservableRate(t *testing.T) {
	b := NewTokenBucket(1000, 1000)
	b.SetRate(2000)
	if got := b.Rate(); got != 2000 {
		t.Fatalf("expected rate 2000 after SetRate, got %v", got)
	}
	if b.tokens > b.burst {
		t.Fatalf("tokens %v exceed burst %v after SetRate", b.tokens, b.burst)
	}
}
