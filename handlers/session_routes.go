// handlers/session_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"trivia-achievement-system/middleware"
	"trivia-achievement-system/models"
	"trivia-achievement-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// timeNow is swappable so route tests can pin the week bucket.
var timeNow = time.Now

// SetupSessionRoutes wires the gameplay ingestion surface: session lifecycle,
// response recording and the weekly leaderboard read.
func SetupSessionRoutes(app *fiber.App, scoreService *services.ScoreService, ruleService *services.RuleService, limiter *middleware.RateLimiter) {

	app.Post("/sessions", middleware.RateLimit(limiter, middleware.ActionSessionCreate, "gameplay"), func(c *fiber.Ctx) error {
		type Req struct {
			WalletAddress string `json:"walletAddress"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.WalletAddress == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "walletAddress is required"})
		}

		user, err := scoreService.EnsureUser(req.WalletAddress)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve user",
				"cause": err.Error(),
			})
		}
		session, err := scoreService.StartSession(user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create session",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	app.Post("/sessions/:id/responses", func(c *fiber.Ctx) error {
		sessionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
		}
		type Req struct {
			WalletAddress   string `json:"walletAddress"`
			QuestionID      string `json:"questionId"`
			Category        string `json:"category"`
			IsCorrect       bool   `json:"isCorrect"`
			StreakCount     int    `json:"streakCount"`
			ResponseTimeMs  int    `json:"responseTimeMs"`
			PointsEarned    int    `json:"pointsEarned"`
			PotentialPoints int    `json:"potentialPoints"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.WalletAddress == "" || req.QuestionID == "" || req.Category == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "walletAddress, questionId and category are required",
			})
		}

		user, err := scoreService.GetUserByWallet(req.WalletAddress)
		if err != nil {
			return notFoundOrInternal(c, err, "wallet not found")
		}

		response := models.PlayerResponse{
			UserID:          user.ID,
			SessionID:       uint(sessionID),
			QuestionID:      req.QuestionID,
			Category:        req.Category,
			IsCorrect:       req.IsCorrect,
			StreakCount:     req.StreakCount,
			ResponseTimeMs:  req.ResponseTimeMs,
			PointsEarned:    req.PointsEarned,
			PotentialPoints: req.PotentialPoints,
		}
		if err := scoreService.RecordResponse(&response); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "failed to record response",
				"cause": err.Error(),
			})
		}

		// Achievement evaluation is best-effort: failures are logged, never
		// surfaced, and never undo the recorded response.
		unlocked, err := ruleService.EvaluateResponse(services.ResponseEvent{
			UserID:         user.ID,
			SessionID:      uint(sessionID),
			Category:       response.Category,
			IsCorrect:      response.IsCorrect,
			StreakCount:    response.StreakCount,
			ResponseTimeMs: response.ResponseTimeMs,
		})
		if err != nil {
			log.Printf("⚠️ Response rule evaluation failed for user %d: %v", user.ID, err)
		}

		return c.JSON(fiber.Map{
			"response": response,
			"unlocked": unlocked,
		})
	})

	app.Post("/sessions/complete", middleware.RateLimit(limiter, middleware.ActionScoreSubmit, "gameplay"), func(c *fiber.Ctx) error {
		type Req struct {
			SessionID      *uint  `json:"sessionId"`
			WalletAddress  string `json:"walletAddress"`
			FinalScore     *int64 `json:"finalScore"`
			CorrectAnswers *int   `json:"correctAnswers"`
			TotalQuestions *int   `json:"totalQuestions"`
			BestStreak     int    `json:"bestStreak"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.SessionID == nil || req.WalletAddress == "" || req.FinalScore == nil ||
			req.CorrectAnswers == nil || req.TotalQuestions == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "sessionId, walletAddress, finalScore, correctAnswers and totalQuestions are required",
			})
		}
		if *req.FinalScore < 0 || *req.CorrectAnswers < 0 || *req.TotalQuestions < 0 || req.BestStreak < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "negative values are not allowed"})
		}

		user, err := scoreService.GetUserByWallet(req.WalletAddress)
		if err != nil {
			return notFoundOrInternal(c, err, "wallet not found")
		}

		credited, err := scoreService.CompleteSession(*req.SessionID, user.ID,
			*req.FinalScore, *req.CorrectAnswers, *req.TotalQuestions, req.BestStreak)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to complete session",
			})
		}

		if credited {
			// Session-level rules run after the commit so their failure can
			// never roll back the score.
			go func(userID, sessionID uint, bestStreak int) {
				if _, err := ruleService.EvaluateSession(userID, sessionID, bestStreak); err != nil {
					log.Printf("⚠️ Session rule evaluation failed for user %d session %d: %v", userID, sessionID, err)
				}
			}(user.ID, *req.SessionID, req.BestStreak)
		}

		return c.JSON(fiber.Map{
			"message":  "session completed",
			"credited": credited,
		})
	})

	app.Post("/sessions/:id/cancel", func(c *fiber.Ctx) error {
		sessionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
		}
		if _, err := scoreService.GetSession(uint(sessionID)); err != nil {
			return notFoundOrInternal(c, err, "session not found")
		}
		if err := scoreService.CancelSession(uint(sessionID)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to cancel session",
			})
		}
		return c.JSON(fiber.Map{"message": "session cancelled"})
	})

	app.Get("/sessions/:id/summary", middleware.RateLimit(limiter, middleware.ActionQuestionFetch, "gameplay"), func(c *fiber.Ctx) error {
		sessionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
		}
		summary, err := scoreService.GetSessionSummary(uint(sessionID))
		if err != nil {
			return notFoundOrInternal(c, err, "session not found")
		}
		return c.JSON(summary)
	})

	app.Get("/leaderboard/weekly", func(c *fiber.Ctx) error {
		week, _ := strconv.Atoi(c.Query("week", "0"))
		year, _ := strconv.Atoi(c.Query("year", "0"))
		limit, _ := strconv.Atoi(c.Query("limit", "25"))
		if week == 0 || year == 0 {
			week, year = services.WeekOf(timeNow())
		}
		rows, err := scoreService.GetWeeklyLeaderboard(week, year, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"week":    week,
			"year":    year,
			"entries": rows,
		})
	})
}

func notFoundOrInternal(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "database error",
		"cause": err.Error(),
	})
}
