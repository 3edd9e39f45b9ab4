// Package retry provides backoff policies for calls to external systems.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BackoffMode selects how the delay grows between attempts.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// ParseMode accepts the configuration spelling of a mode. Empty means linear.
func ParseMode(s string) (BackoffMode, error) {
	switch m := BackoffMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BackoffLinear, nil
	case BackoffFixed, BackoffLinear, BackoffExponential:
		return m, nil
	default:
		return "", fmt.Errorf("unknown backoff mode %q (want fixed, linear or exponential)", s)
	}
}

// Policy is a retry budget with a backoff curve.
type Policy struct {
	Mode       BackoffMode
	Initial    time.Duration
	Max        time.Duration // no delay exceeds Max
	MaxRetries int           // attempts after the first failure
}

// DefaultPolicy retries twice, one then two seconds apart.
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy overrides DefaultPolicy with the positive durations, a non-negative
// maxRetries and a known mode. Initial never exceeds Max.
func NewPolicy(mode BackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if _, err := ParseMode(string(mode)); err == nil && mode != "" {
		p.Mode = mode
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// Delay returns the wait before retry n, counting from 1. There is no wait before the
// first attempt.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		d = p.Initial
	case BackoffExponential:
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		if n > int(p.Max/max(p.Initial, 1)) {
			return p.Max
		}
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

func (p Policy) Validate() error {
	var errs []error
	if p.Initial <= 0 {
		errs = append(errs, errors.New("initial delay must be positive"))
	}
	if p.Max <= 0 {
		errs = append(errs, errors.New("max delay must be positive"))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	return errors.Join(errs...)
}

// Do calls fn until it succeeds, fails with an error retryable rejects, exhausts
// MaxRetries, or ctx ends. It returns fn's last error.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	err := fn()
	for n := 1; err != nil && n <= p.MaxRetries && retryable(err); n++ {
		t := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		err = fn()
	}
	return err
}
