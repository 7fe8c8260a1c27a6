package bandwidth

import "testing"

func TestCongestionDecreasesRateWhenQueueDelayExceedsTarget(t *testing.T) {
	c := NewCongestion(100_000)
	c.ReportRTT(50)
	before := c.Tick()
	c.ReportRTT(300) // queue_delay = 300-50 = 250ms > 100ms target
	after := c.Tick()
	if after >= before {
		t.Fatalf("expected rate to decrease: before=%v after=%v", before, after)
	}
}

func TestCongestionIncreasesRateWhenQueueDelayLow(t *testing.T) {
	c := NewCongestion(1_000_000)
	c.rate = 100_000
	for i := 0; i < 5; i++ {
		c.ReportRTT(50)
	}
	before := c.Rate()
	after := c.Tick()
	if after <= before {
		t.Fatalf("expected rate to increase with low queue delay: before=%v after=%v", before, after)
	}
}

func TestCongestionReportLossHalvesRate(t *testing.T) {
	c := NewCongestion(1_000_000)
	c.rate = 100_000
	c.ReportLoss()
	if c.Rate() != 50_000 {
		t.Fatalf("expected rate halved to 50000, got %v", c.Rate())
	}
}

func TestCongestionClampsToMinRate(t *testing.T) {
	c := NewCongestion(1_000_000)
	c.rate = 1500
	for i := 0; i < 5; i++ {
		c.ReportLoss()
	}
	if c.Rate() < minRateBytesPerS {
		t.Fatalf("expected rate clamped to min %v, got %v", minRateBytesPerS, c.Rate())
	}
}

func TestCongestionClampsToUserLimit(t *testing.T) {
	c := NewCongestion(10_000)
	c.rate = 10_000
	for i := 0; i < 5; i++ {
		c.ReportRTT(10)
		c.Tick()
	}
	if c.Rate() > 10_000 {
		t.Fatalf("expected rate clamped to user limit 10000, got %v", c.Rate())
	}
}

func TestCongestionMinRTTBaselineMonotonicallyDecreasing(t *testing.T) {
	c := NewCongestion(0)
	c.ReportRTT(100)
	c.ReportRTT(200)
	c.ReportRTT(50)
	if got := c.minRTTLocked(); got != 50 {
		t.Fatalf("expected min rtt baseline 50, got %v", got)
	}
}
