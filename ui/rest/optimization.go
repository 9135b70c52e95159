package rest

import (
	"github.com/gofiber/fiber/v2"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	"github.com/AzielCF/az-sheetboard/pkg/utils"
)

type Optimization struct {
	Service domainOptimization.IOptimizationUsecase
}

func InitRestOptimization(app fiber.Router, service domainOptimization.IOptimizationUsecase) Optimization {
	rest := Optimization{Service: service}
	app.Get("/optimization/status", rest.GetStatus)
	app.Get("/optimization/health", rest.HealthCheck)
	app.Post("/optimization/invalidate", rest.InvalidateCache)
	app.Post("/optimization/breakers/:id/reset", rest.ResetBreaker)

	return rest
}

func (handler *Optimization) GetStatus(c *fiber.Ctx) error {
	status, err := handler.Service.Status(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Optimization status retrieved",
		Results: status,
	})
}

func (handler *Optimization) HealthCheck(c *fiber.Ctx) error {
	status, err := handler.Service.HealthCheck(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Optimization health check completed",
		Results: status,
	})
}

func (handler *Optimization) InvalidateCache(c *fiber.Ctx) error {
	var body struct {
		BaseKey string `json:"base_key"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	err := handler.Service.InvalidateCache(c.UserContext(), body.BaseKey)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache invalidated successfully",
	})
}

func (handler *Optimization) ResetBreaker(c *fiber.Ctx) error {
	id := c.Params("id")
	handler.Service.ResetBreaker(c.UserContext(), id)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Circuit breaker reset",
	})
}
