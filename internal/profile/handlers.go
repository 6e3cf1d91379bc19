package profile

import (
	"context"
	"errors"
	"time"

	"backend-runnersurfers/internal/auth"
	"backend-runnersurfers/internal/catalog"
	"backend-runnersurfers/internal/progression"
	"backend-runnersurfers/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

// BonusRefresher lets a running tracker pick up shop changes mid-run.
type BonusRefresher interface {
	RefreshBonuses(ctx context.Context, userID string) error
}

type View struct {
	Profile
	Rank            progression.Rank            `json:"rank"`
	ExpNeeded       float64                     `json:"exp_needed"`
	ExpPerKm        float64                     `json:"exp_per_km"`
	CoinsPerKm      float64                     `json:"coins_per_km"`
	ScoreMultiplier float64                     `json:"score_multiplier"`
	ReputationTier  progression.ReputationTier  `json:"reputation_tier"`
	ReputationLevel progression.ReputationLevel `json:"reputation_level"`
}

func NewView(p Profile) View {
	lvl := p.Progress.Level
	return View{
		Profile:         p,
		Rank:            progression.RankFor(lvl),
		ExpNeeded:       progression.ExpNeededFor(lvl),
		ExpPerKm:        progression.ExpPerKm(lvl),
		CoinsPerKm:      progression.CoinsPerKm(lvl),
		ScoreMultiplier: progression.ScoreMultiplier(lvl),
		ReputationTier:  progression.ReputationTierFor(p.Progress.TotalDistanceKm),
		ReputationLevel: progression.ReputationLevelFor(p.Progress.Reputation),
	}
}

type skillRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=coins score"`
	Points int    `json:"points" validate:"min=1"`
}

func RegisterRoutes(r fiber.Router, store Store, cat *catalog.Catalog, refresher BonusRefresher, authMiddleware fiber.Handler) {
	now := time.Now

	mutate := func(c *fiber.Ctx, fn func(*Profile) error) error {
		userID := auth.UserID(c)
		p, err := store.Mutate(c.UserContext(), userID, fn)
		if err != nil {
			return shopError(err)
		}
		if refresher != nil {
			_ = refresher.RefreshBonuses(c.UserContext(), userID)
		}
		return c.JSON(NewView(p))
	}

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		p, err := store.Load(c.UserContext(), auth.UserID(c))
		if err != nil {
			return shopError(err)
		}
		return c.JSON(NewView(p))
	})

	r.Post("/items/:id/buy", authMiddleware, func(c *fiber.Ctx) error {
		id := catalog.ItemID(c.Params("id"))
		return mutate(c, func(p *Profile) error { return p.Progress.BuyItem(cat, id) })
	})

	r.Post("/items/:id/equip", authMiddleware, func(c *fiber.Ctx) error {
		id := catalog.ItemID(c.Params("id"))
		return mutate(c, func(p *Profile) error { return p.Progress.Equip(cat, id) })
	})

	r.Post("/upgrades/:id/buy", authMiddleware, func(c *fiber.Ctx) error {
		id := catalog.UpgradeID(c.Params("id"))
		return mutate(c, func(p *Profile) error { return p.Progress.BuyUpgrade(cat, id) })
	})

	r.Post("/boosts/:id/activate", authMiddleware, func(c *fiber.Ctx) error {
		id := catalog.BoostID(c.Params("id"))
		return mutate(c, func(p *Profile) error { return p.Progress.ActivateBoost(cat, id, now()) })
	})

	r.Delete("/boosts/active", authMiddleware, func(c *fiber.Ctx) error {
		return mutate(c, func(p *Profile) error {
			p.Progress.DeactivateBoost()
			return nil
		})
	})

	r.Post("/skills", authMiddleware, func(c *fiber.Ctx) error {
		var req skillRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		return mutate(c, func(p *Profile) error {
			return p.Progress.InvestSkill(progression.SkillKind(req.Kind), req.Points)
		})
	})
}

func shopError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidUser):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, catalog.ErrUnknownItem),
		errors.Is(err, catalog.ErrUnknownUpgrade),
		errors.Is(err, catalog.ErrUnknownBoost):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, progression.ErrLevelLocked):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, progression.ErrAlreadyOwned),
		errors.Is(err, progression.ErrNotOwned),
		errors.Is(err, progression.ErrBoostActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, progression.ErrInsufficientCoins),
		errors.Is(err, progression.ErrNoSkillPoints):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, progression.ErrInvalidSkill):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
