package config

import (
	"os"
	"strconv"
	"time"
)

// Tunables holds runtime defaults that apply when a resource record does not
// declare its own. All values can be customized via environment variables.
type Tunables struct {
	LockMaxWait       time.Duration // Default bound for contended-resource waits
	LockPollInterval  time.Duration // Fixed sleep between lock release checks
	ProbePollInterval time.Duration // Fixed sleep between wait-condition checks
	RetryMaxAttempts  int           // Default bootstrap action attempts
	RetryBaseDelay    time.Duration // Delay before the first retry
	RetryMultiplier   float64       // Backoff multiplier between attempts
	RetryMaxDelay     time.Duration // Cap on the delay between attempts
	Concurrency       int           // Scheduler worker bound, 0 = unbounded
}

// LoadTunables loads tunables from environment variables. Unset or invalid
// variables fall back to defaults.
//
// Environment variables:
//   - TIERCTL_LOCK_MAX_WAIT (default: 5m)
//   - TIERCTL_LOCK_POLL_INTERVAL (default: 2s)
//   - TIERCTL_PROBE_POLL_INTERVAL (default: 5s)
//   - TIERCTL_RETRY_MAX_ATTEMPTS (default: 5)
//   - TIERCTL_RETRY_BASE_DELAY (default: 1s)
//   - TIERCTL_RETRY_MULTIPLIER (default: 2.0)
//   - TIERCTL_RETRY_MAX_DELAY (default: 30s)
//   - TIERCTL_CONCURRENCY (default: 0, unbounded)
func LoadTunables() *Tunables {
	return &Tunables{
		LockMaxWait:       parseDuration("TIERCTL_LOCK_MAX_WAIT", 5*time.Minute),
		LockPollInterval:  parseDuration("TIERCTL_LOCK_POLL_INTERVAL", 2*time.Second),
		ProbePollInterval: parseDuration("TIERCTL_PROBE_POLL_INTERVAL", 5*time.Second),
		RetryMaxAttempts:  parseInt("TIERCTL_RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:    parseDuration("TIERCTL_RETRY_BASE_DELAY", 1*time.Second),
		RetryMultiplier:   parseFloat("TIERCTL_RETRY_MULTIPLIER", 2.0),
		RetryMaxDelay:     parseDuration("TIERCTL_RETRY_MAX_DELAY", 30*time.Second),
		Concurrency:       parseInt("TIERCTL_CONCURRENCY", 0),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
