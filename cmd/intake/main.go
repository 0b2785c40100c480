// Command intake is a minimal HTTP front door for the dispatch engine:
// one route, POST /v1/emails, that validates a request body, builds a
// job, and hands it to the broker. It deliberately does not grow beyond
// that — no auth, no request-ID middleware, no OpenAPI surface, no
// metrics route (spec §1's out-of-scope ambient concerns) — it only
// exists to show that any transport producing a valid job record is an
// acceptable front door (spec §6), grounded on the shape of the
// teacher's internal/api.Handlers single-responsibility handlers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"emaildispatch/internal/broker"
	"emaildispatch/internal/config"
	"emaildispatch/internal/job"
	"emaildispatch/internal/observability"
)

type sendRequest struct {
	Recipients   []string       `json:"recipients"`
	TemplateName string         `json:"template_name"`
	TemplateData map[string]any `json:"template_data"`
	Priority     string         `json:"priority"`
	Provider     string         `json:"provider"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := broker.New(ctx, cfg.RedisURL())
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/v1/emails", func(c *fiber.Ctx) error {
		var req sendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		j, err := job.New(req.Recipients, req.TemplateName, req.TemplateData, job.Priority(req.Priority), req.Provider)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
			j.ScheduledAt = req.ScheduledAt
			if err := rdb.EnqueueScheduled(c.Context(), j, cfg.ScheduledBodyTTL); err != nil {
				logger.Error("enqueue scheduled failed", zap.String("job_id", j.ID), zap.Error(err))
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to schedule job"})
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": j.ID, "status": "SCHEDULED"})
		}

		if _, err := rdb.Enqueue(c.Context(), j, cfg.DedupTTL); err != nil {
			if err == broker.ErrDuplicate {
				// Spec §7: a duplicate enqueue is treated as success
				// (idempotent) — the job is already queued under j.ID,
				// so intake reports the same acceptance it would have
				// for a first-time enqueue.
				return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": j.ID, "status": "PENDING", "duplicate": true})
			}
			logger.Error("enqueue failed", zap.String("job_id", j.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to enqueue job"})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": j.ID, "status": "PENDING"})
	})

	go func() {
		if err := app.Listen(cfg.IntakeAddr); err != nil {
			logger.Error("intake server stopped", zap.Error(err))
		}
	}()

	logger.Info("intake listening", zap.String("addr", cfg.IntakeAddr))

	<-ctx.Done()
	logger.Info("shutting down intake...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
}
