package middleware

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"trivia-achievement-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Rate-limited actions.
const (
	ActionSessionCreate = "session-create"
	ActionScoreSubmit   = "score-submit"
	ActionQuestionFetch = "question-fetch"
)

// RateLimitRule is a fixed-window budget for one action.
type RateLimitRule struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultRules are the per-action budgets.
var DefaultRules = map[string]RateLimitRule{
	ActionSessionCreate: {MaxAttempts: 3, Window: 10 * time.Second},
	ActionScoreSubmit:   {MaxAttempts: 20, Window: 10 * time.Second},
	ActionQuestionFetch: {MaxAttempts: 10, Window: 60 * time.Second},
}

type rateCounter struct {
	count       int
	windowStart time.Time
	sessionID   string
}

// RateLimiter is fixed-window admission control. Counters live in process
// memory only: in a multi-instance deployment each instance holds its own
// budget, which is accepted — this is anti-abuse, not a security boundary.
// Every failure path admits (fail open) so the scoring path stays available.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	rules    map[string]RateLimitRule
	counters map[string]*rateCounter
	db       *gorm.DB // audit sink; nil means log-only
}

func NewRateLimiter(db *gorm.DB, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		clock:    clock,
		rules:    DefaultRules,
		counters: make(map[string]*rateCounter),
		db:       db,
	}
}

// Admit reports whether one more attempt at (action, activityType) fits the
// live window, incrementing the counter when it does. For score submission a
// new session id always gets a fresh counter, so a legitimate new session is
// never penalized by the previous one's usage.
func (rl *RateLimiter) Admit(action, activityType, sessionID string) bool {
	rule, ok := rl.rules[action]
	if !ok {
		log.Printf("⚠️ [RATE] Unknown action %q, admitting", action)
		return true
	}

	key := action + "|" + activityType
	now := rl.clock.Now()

	rl.mu.Lock()
	c := rl.counters[key]
	if c == nil || now.Sub(c.windowStart) >= rule.Window {
		c = &rateCounter{windowStart: now, sessionID: sessionID}
		rl.counters[key] = c
	}
	if action == ActionScoreSubmit && c.sessionID != sessionID {
		c.count = 0
		c.windowStart = now
		c.sessionID = sessionID
	}
	if c.count >= rule.MaxAttempts {
		count := c.count
		rl.mu.Unlock()
		rl.audit(action, activityType, sessionID, count)
		return false
	}
	c.count++
	rl.mu.Unlock()
	return true
}

// audit writes a violation to durable storage only when the session key is
// numeric and resolves to a stored session. Synthetic keys stay in the
// process log; a failed lookup skips the write silently.
func (rl *RateLimiter) audit(action, activityType, sessionID string, count int) {
	log.Printf("🚫 [RATE] Denied %s (%s) session=%q count=%d", action, activityType, sessionID, count)
	if rl.db == nil {
		return
	}
	id, err := strconv.ParseUint(sessionID, 10, 64)
	if err != nil {
		return
	}
	var session models.GameSession
	if err := rl.db.First(&session, uint(id)).Error; err != nil {
		return
	}
	row := models.RateLimitAudit{
		SessionID:    session.ID,
		Action:       action,
		ActivityType: activityType,
		Count:        count,
	}
	if err := rl.db.Create(&row).Error; err != nil {
		log.Printf("⚠️ [RATE] Audit write failed (ignored): %v", err)
	}
}

// sessionIDFromRequest pulls a session id from the route param, query, or a
// JSON body {"sessionId": ...}, in that order. Returns "" when absent.
func sessionIDFromRequest(c *fiber.Ctx) string {
	if id := c.Params("id"); id != "" {
		return id
	}
	if id := c.Query("sessionId"); id != "" {
		return id
	}
	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		var body struct {
			SessionID json.Number `json:"sessionId"`
		}
		if err := json.Unmarshal(c.Body(), &body); err == nil {
			return body.SessionID.String()
		}
	}
	return ""
}

// RateLimit guards a route with the fixed-window budget for action. Denied
// requests get 429 with a retry hint.
func RateLimit(rl *RateLimiter, action, activityType string) fiber.Handler {
	rule := rl.rules[action]
	return func(c *fiber.Ctx) error {
		if rl.Admit(action, activityType, sessionIDFromRequest(c)) {
			return c.Next()
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":          "rate limit exceeded",
			"retry_after_ms": rule.Window.Milliseconds(),
		})
	}
}
