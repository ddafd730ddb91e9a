package vss

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robocurse/robocurse/internal/roboerr"
)

// RetryPolicy is the fixed-delay retry policy shared by local and remote
// snapshot creation (spec §4.5 step 4: "default 3 x 5s").
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}
}

var retryableSignals = []string{"busy", "locked", "timeout"}

// classify decides whether a shadow-copy create failure is retryable
// (busy/locked/timeout/transient storage code) or permanent
// (unsupported/invalid), per spec §4.5 step 4.
func classify(msg string) roboerr.Kind {
	lower := strings.ToLower(msg)
	for _, sig := range retryableSignals {
		if strings.Contains(lower, sig) {
			return roboerr.VssTransient
		}
	}
	return roboerr.VssPermanent
}

// Retry runs fn up to policy.MaxAttempts times with a fixed delay
// between attempts, stopping immediately on a permanent classification.
func Retry(policy RetryPolicy, op func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !roboerr.Is(err, roboerr.VssTransient) {
			return err
		}
		if attempt < policy.MaxAttempts {
			log.WithFields(log.Fields{"component": component, "attempt": attempt}).
				WithError(err).Warn("retryable VSS failure, retrying after fixed delay")
			time.Sleep(policy.Delay)
		}
	}
	return lastErr
}
