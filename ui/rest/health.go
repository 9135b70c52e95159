package rest

import (
	"github.com/gofiber/fiber/v2"

	domainHealth "github.com/AzielCF/az-sheetboard/domains/health"
	"github.com/AzielCF/az-sheetboard/pkg/utils"
)

type Health struct {
	Service domainHealth.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service domainHealth.IHealthUsecase) Health {
	rest := Health{Service: service}
	app.Get("/health", rest.GetStatus)
	app.Post("/health/check", rest.CheckAll)

	return rest
}

func (handler *Health) GetStatus(c *fiber.Ctx) error {
	records, err := handler.Service.GetStatus(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: records,
	})
}

func (handler *Health) CheckAll(c *fiber.Ctx) error {
	records, err := handler.Service.CheckAll(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health check completed",
		Results: records,
	})
}
