package devbackend

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateLimiter enforces per-client hourly and daily request quotas over
// sliding windows. A non-positive limit disables that window.
type RateLimiter struct {
	hourly map[string][]time.Time
	daily  map[string][]time.Time
	now    func() time.Time
	mu     sync.Mutex

	HourlyLimit int
	DailyLimit  int
}

func NewRateLimiter(hourlyLimit, dailyLimit int) *RateLimiter {
	return &RateLimiter{
		hourly:      make(map[string][]time.Time),
		daily:       make(map[string][]time.Time),
		now:         time.Now,
		HourlyLimit: hourlyLimit,
		DailyLimit:  dailyLimit,
	}
}

// Allow records a request from client and returns an empty string, or
// returns the rejection detail when a quota is exhausted. Rejected requests
// are not recorded.
func (r *RateLimiter) Allow(client string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.daily[client] = prune(r.daily[client], now.Add(-24*time.Hour))
	r.hourly[client] = prune(r.hourly[client], now.Add(-time.Hour))

	if r.DailyLimit > 0 && len(r.daily[client]) >= r.DailyLimit {
		return fmt.Sprintf("Daily photo processing limit reached (%d photos/day). Please try again within 24 hours.", r.DailyLimit)
	}
	if r.HourlyLimit > 0 && len(r.hourly[client]) >= r.HourlyLimit {
		return fmt.Sprintf("Hourly photo processing limit reached (%d photos/hour). Please try again within 1 hour.", r.HourlyLimit)
	}

	r.daily[client] = append(r.daily[client], now)
	r.hourly[client] = append(r.hourly[client], now)
	return ""
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if detail := s.limiter.Allow(c.ClientIP()); detail != "" {
			log.Warnf("[DevBackend] Rate limit hit for %s", c.ClientIP())
			abortDetail(c, http.StatusTooManyRequests, detail)
			return
		}
		c.Next()
	}
}
