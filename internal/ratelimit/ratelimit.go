package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter caps submissions per team using a token bucket that refills
// once a minute. A zero rate disables limiting entirely.
type RateLimiter struct {
	mu            sync.Mutex
	teamTokens    map[string]int
	teamLastReset map[string]time.Time
	perMinute     int
}

// New creates a RateLimiter allowing perMinute submissions per team.
func New(perMinute int) *RateLimiter {
	return &RateLimiter{
		teamTokens:    make(map[string]int),
		teamLastReset: make(map[string]time.Time),
		perMinute:     perMinute,
	}
}

// Allow checks whether the team may submit now, consuming one token if so.
func (rl *RateLimiter) Allow(teamname string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	lastReset, exists := rl.teamLastReset[teamname]

	if !exists || now.Sub(lastReset) > time.Minute {
		rl.teamTokens[teamname] = rl.perMinute
		rl.teamLastReset[teamname] = now
	}

	if rl.teamTokens[teamname] > 0 {
		rl.teamTokens[teamname]--
		return true
	}

	return false
}
