package catalog

import "github.com/gofiber/fiber/v2"

// RegisterRoutes serves the shop catalog. It is public.
func RegisterRoutes(r fiber.Router, c *Catalog) {
	r.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"boosts":   c.Boosts(),
			"items":    c.Items(),
			"upgrades": c.Upgrades(),
		})
	})
}
