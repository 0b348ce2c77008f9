package handlers

import (
	"github.com/gofiber/fiber/v2"

	u "office2pdf/internal/utils"
)

// HandleStats exposes conversion counters and the selected strategy.
func (svc *ConvertService) HandleStats(c *fiber.Ctx) error {
	s, err := svc.Stats.Snapshot(c.UserContext())
	if err != nil {
		u.Warn("Stats read failed", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Stats unavailable")
	}
	return c.JSON(fiber.Map{
		"strategy":     svc.Converter.StrategyName(),
		"available":    svc.Converter.Available(),
		"succeeded":    s.Succeeded,
		"failed":       s.Failed,
		"total_ms":     s.TotalMillis,
		"avg_ms":       s.AvgMillis(),
		"timeout_secs": int(svc.Config.Converter.Timeout.Seconds()),
	})
}
