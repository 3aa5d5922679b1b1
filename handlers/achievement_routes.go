// handlers/achievement_routes.go
package handlers

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"trivia-achievement-system/middleware"
	"trivia-achievement-system/models"
	"trivia-achievement-system/services"
	"trivia-achievement-system/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupAchievementRoutes wires the achievement query surface, the repair
// endpoint and the admin asset routes.
func SetupAchievementRoutes(app *fiber.App, scoreService *services.ScoreService, achievementService *services.AchievementService, repairService *services.RepairService, ruleService *services.RuleService) {

	app.Get("/achievements/:wallet", func(c *fiber.Ctx) error {
		user, err := scoreService.GetUserByWallet(c.Params("wallet"))
		if err != nil {
			return notFoundOrInternal(c, err, "wallet not found")
		}
		rows, err := achievementService.GetAchievementsForUser(user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get achievements",
				"cause": err.Error(),
			})
		}

		response := make([]fiber.Map, 0, len(rows))
		for _, row := range rows {
			entry := fiber.Map{
				"id":               row.ID,
				"achievement_type": row.AchievementType,
				"score":            row.Score,
				"minted_at":        row.MintedAt,
			}
			if info, ok := models.DisplayInfo(models.AchievementType(row.AchievementType)); ok {
				entry["name"] = info.Name
				entry["description"] = info.Description
				entry["icon"] = info.Icon
				entry["category"] = info.Category
			}
			response = append(response, entry)
		}
		return c.JSON(response)
	})

	// Dry run by default; safe to call on every page load. ?apply=true
	// performs the proposed writes.
	app.Post("/achievements/:wallet/repair", func(c *fiber.Ctx) error {
		user, err := scoreService.GetUserByWallet(c.Params("wallet"))
		if err != nil {
			return notFoundOrInternal(c, err, "wallet not found")
		}
		apply := strings.EqualFold(c.Query("apply", "false"), "true")
		report, err := repairService.Repair(user.ID, apply)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "repair failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"applied": apply,
			"report":  report,
		})
	})

	// One-off flag from the wallet-verification collaborator; not gameplay.
	app.Post("/achievements/:wallet/wallet-verified", func(c *fiber.Ctx) error {
		user, err := scoreService.EnsureUser(c.Params("wallet"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve user",
				"cause": err.Error(),
			})
		}
		outcome, err := ruleService.RecordWalletVerified(user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to record verification badge",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"outcome": outcome})
	})

	adminGroup := app.Group("/admin", middleware.ServiceAuthMiddleware())

	adminGroup.Post("/achievements/:type/icon", func(c *fiber.Ctx) error {
		if !utils.R2Configured() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "asset storage is not configured",
			})
		}
		achievementType := models.CanonicalType(c.Params("type"))
		if !models.IsRegistered(string(achievementType)) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown achievement type"})
		}
		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon file is required",
				"cause": err.Error(),
			})
		}
		key := fmt.Sprintf("achievements/%s%s", achievementType, filepath.Ext(fileHeader.Filename))
		url, err := utils.UploadIconToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "icon upload failed",
				"cause": err.Error(),
			})
		}
		models.SetIcon(achievementType, url)
		log.Printf("🎨 Icon updated for %s: %s", achievementType, url)
		return c.JSON(fiber.Map{
			"achievement_type": achievementType,
			"icon_url":         url,
		})
	})

	adminGroup.Post("/repair/:wallet", func(c *fiber.Ctx) error {
		user, err := scoreService.GetUserByWallet(c.Params("wallet"))
		if err != nil {
			return notFoundOrInternal(c, err, "wallet not found")
		}
		report, err := repairService.Repair(user.ID, true)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "repair failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(report)
	})
}
