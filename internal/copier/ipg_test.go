package copier

import "testing"

func TestInterPacketGapMsDisabledWhenLimitNotPositive(t *testing.T) {
	if got := InterPacketGapMs(0, 3, true); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := InterPacketGapMs(-5, 3, true); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestInterPacketGapMsClampedToRange(t *testing.T) {
	// Enormous limit per job -> tiny ipg, clamped to 1.
	if got := InterPacketGapMs(1_000_000, 1, false); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
	// Tiny limit split across many jobs -> huge ipg, clamped to 10000.
	if got := InterPacketGapMs(0.001, 50, true); got != 10000 {
		t.Fatalf("expected clamp to 10000, got %d", got)
	}
}

func TestInterPacketGapMsAccountsForStartingNewJob(t *testing.T) {
	withoutNew := InterPacketGapMs(100, 4, false)
	withNew := InterPacketGapMs(100, 4, true)
	if withNew < withoutNew {
		t.Fatalf("adding a starting job should only ever increase or hold the ipg, got without=%d with=%d", withoutNew, withNew)
	}
}

func TestInterPacketGapMsFairShareAcrossFourJobsPlusOneStarting(t *testing.T) {
	// 100Mbps split five ways gives 2,500,000 bytes/sec/job, so a
	// 512000-byte block needs a 1ms gap, clamped to the 1ms floor.
	if got := InterPacketGapMs(100, 4, true); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
