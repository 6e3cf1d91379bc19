package run

import (
	"errors"
	"time"

	"backend-runnersurfers/internal/auth"
	"backend-runnersurfers/internal/shared/validate"
	"backend-runnersurfers/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type fixRequest struct {
	Lat       float64    `json:"lat" validate:"latitude"`
	Lng       float64    `json:"lng" validate:"longitude"`
	Accuracy  float64    `json:"accuracy" validate:"gte=0"`
	Timestamp *time.Time `json:"timestamp"`
}

// maxClockSkew bounds how far ahead of the server a client timestamp may run.
const maxClockSkew = 30 * time.Second

// fix falls back to the server clock when the client omits a timestamp or
// sends one too far in the future to trust.
func (f fixRequest) fix(now time.Time) tracking.Fix {
	at := now
	if f.Timestamp != nil && !f.Timestamp.IsZero() && !f.Timestamp.After(now.Add(maxClockSkew)) {
		at = *f.Timestamp
	}
	return tracking.Fix{Lat: f.Lat, Lng: f.Lng, AccuracyM: f.Accuracy, Time: at}
}

func RegisterRoutes(r fiber.Router, reg *Registry, runs RunRepository, syncer *Syncer, authMiddleware fiber.Handler) {
	now := reg.deps.Now

	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		var req fixRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		seed := req.fix(now())
		ctrl, release := reg.Acquire(auth.UserID(c))
		defer release()
		snap, err := ctrl.Start(c.UserContext(), &seed)
		if err != nil {
			return runError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Post("/fixes", authMiddleware, func(c *fiber.Ctx) error {
		var req fixRequest
		if err := validate.Body(c, &req); err != nil {
			return err
		}
		ctrl, ok := reg.Lookup(auth.UserID(c))
		if !ok {
			return runError(ErrNotRunning)
		}
		accepted, err := ctrl.PushFix(req.fix(now()))
		if err != nil {
			return runError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": accepted})
	})

	r.Post("/pause", authMiddleware, func(c *fiber.Ctx) error {
		ctrl, release := reg.Acquire(auth.UserID(c))
		defer release()
		snap, err := ctrl.Pause()
		if err != nil {
			return runError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/resume", authMiddleware, func(c *fiber.Ctx) error {
		ctrl, release := reg.Acquire(auth.UserID(c))
		defer release()
		snap, err := ctrl.Resume()
		if err != nil {
			return runError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/end", authMiddleware, func(c *fiber.Ctx) error {
		ctrl, release := reg.Acquire(auth.UserID(c))
		defer release()
		res, err := ctrl.End(c.UserContext())
		if err != nil {
			return runError(err)
		}
		return c.JSON(res)
	})

	r.Get("/current", authMiddleware, func(c *fiber.Ctx) error {
		ctrl, ok := reg.Lookup(auth.UserID(c))
		if !ok {
			return runError(ErrNotRunning)
		}
		snap, err := ctrl.Snapshot()
		if err != nil {
			return runError(err)
		}
		return c.JSON(snap)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		if runs == nil {
			return c.JSON([]Run{})
		}
		list, err := runs.ListRuns(c.UserContext(), auth.UserID(c), c.QueryInt("limit", 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if list == nil {
			list = []Run{}
		}
		return c.JSON(list)
	})

	r.Get("/:id/sync", authMiddleware, func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid run id")
		}
		state := SyncUnsynced
		if syncer != nil {
			state = syncer.State(id)
		}
		return c.JSON(fiber.Map{"run_id": id, "sync": state})
	})
}

// RegisterQuestRoutes serves today's quest ladder, including runs still waiting to sync.
func RegisterQuestRoutes(r fiber.Router, reg *Registry, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		ctrl, release := reg.Acquire(auth.UserID(c))
		defer release()
		state, err := ctrl.Quests(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(state)
	})
}

func runError(err error) error {
	switch {
	case errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrPaused),
		errors.Is(err, ErrNotPaused):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrGPSUnavailable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
