package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/database"
	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

type Handlers struct {
	DB    *database.DB
	Cache cache.Store
	Loc   *time.Location
}

// Health handles GET /api/health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Stats handles GET /api/stats -- subscription counts and cache size.
func (h *Handlers) Stats(c *fiber.Ctx) error {
	ctx := context.Background()
	total, alertable, err := h.DB.CountSubscriptions(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load stats"})
	}
	keys, err := h.Cache.Keys(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load cache keys"})
	}
	return c.JSON(fiber.Map{
		"subscriptions":       total,
		"alert_subscriptions": alertable,
		"cached_addresses":    len(keys),
	})
}

// ListSnapshots handles GET /api/snapshots -- all cached address keys.
func (h *Handlers) ListSnapshots(c *fiber.Ctx) error {
	keys, err := h.Cache.Keys(context.Background())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load cache keys"})
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"addresses": keys})
}

// GetSnapshot handles GET /api/snapshot?city=&street=&house= -- the last
// fetched schedule for one address, with merged windows and next transition.
func (h *Handlers) GetSnapshot(c *fiber.Ctx) error {
	addr := models.AddressKey{
		City:   c.Query("city"),
		Street: c.Query("street"),
		House:  c.Query("house"),
	}
	if addr.City == "" || addr.Street == "" || addr.House == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "city, street and house are required"})
	}

	entry, ok, err := h.Cache.Get(context.Background(), addr)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read cache"})
	}
	if !ok || entry.Snapshot == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no schedule cached for this address"})
	}

	days := make([]fiber.Map, 0)
	for _, date := range schedule.SortedDates(entry.Snapshot.Schedule) {
		windows := schedule.MergeSlots(entry.Snapshot.Schedule[date])
		if len(windows) == 0 {
			continue
		}
		days = append(days, fiber.Map{"date": date, "windows": windows})
	}

	resp := fiber.Map{
		"address":    addr.Display(),
		"group":      entry.Snapshot.Group,
		"digest":     entry.Digest,
		"fetched_at": entry.FetchedAt,
		"days":       days,
	}
	if ev, ok := schedule.NextEvent(entry.Snapshot, time.Now(), h.Loc); ok {
		resp["next_event"] = fiber.Map{"at": ev.At, "kind": ev.Kind.String()}
	}
	return c.JSON(resp)
}

// RegisterRoutes wires all API routes onto the fiber app.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.Health)
	api.Get("/stats", h.Stats)
	api.Get("/snapshots", h.ListSnapshots)
	api.Get("/snapshot", h.GetSnapshot)
}
