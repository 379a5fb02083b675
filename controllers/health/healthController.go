package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"edulens-auth/types"
)

// Controller reports service liveness and dependency health.
type Controller struct {
	db  *gorm.DB
	rdb redis.UniversalClient
}

func NewController(db *gorm.DB, rdb redis.UniversalClient) *Controller {
	return &Controller{db: db, rdb: rdb}
}

// Check handles GET /health.
func (ctrl *Controller) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if ctrl.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := ctrl.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unavailable"
	}

	redisStatus := "ok"
	if ctrl.rdb == nil {
		redisStatus = "disabled"
	} else if err := ctrl.rdb.Ping(c.Context()).Err(); err != nil {
		redisStatus = "unavailable"
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Success: true,
		Message: "Service is healthy",
		Status:  fiber.StatusOK,
		Data: fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
