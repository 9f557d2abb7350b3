package folio

import (
	"testing"
	"time"
)

// attempt mirrors how handlers use the limiter: check, then record.
func attempt(l *Limiter, ip string) bool {
	if !l.Check(ip) {
		return false
	}
	l.Record(ip)
	return true
}

func TestLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewLimiter(2, 200*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.10"

	if !attempt(limiter, ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !attempt(limiter, ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if attempt(limiter, ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewLimiter(1, 150*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.20"

	if !attempt(limiter, ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if attempt(limiter, ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !attempt(limiter, ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLimiterIsPerIP(t *testing.T) {
	limiter := NewLimiter(1, 200*time.Millisecond)
	defer limiter.Stop()

	if !attempt(limiter, "203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !attempt(limiter, "203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if attempt(limiter, "203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestLimiterCheckDoesNotRecord(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	defer limiter.Stop()
	ip := "203.0.113.40"

	for i := 0; i < 3; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("Check #%d blocked without any recorded attempt", i+1)
		}
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected Check to block after Record")
	}
}

func TestLimiterStopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(1, time.Millisecond)
	limiter.Stop()
	limiter.Stop()
}
