package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/notify"
)

type NotificationController struct {
	processor *notify.Processor
	batchSize int
}

func NewNotificationController(processor *notify.Processor, batchSize int) *NotificationController {
	return &NotificationController{processor: processor, batchSize: batchSize}
}

// HandleProcessNotificationEvents: POST /process-notification-events
// Runs one batch. ?limit= overrides the configured batch size.
func (nc *NotificationController) HandleProcessNotificationEvents(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	limit := c.QueryInt("limit", nc.batchSize)
	result, err := nc.processor.ProcessBatch(ctx, limit)
	if err != nil {
		return renderError(c, apperror.Unexpected("notification_batch_failed", err))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"processed": result.Processed,
		"queued":    result.Queued,
	})
}
