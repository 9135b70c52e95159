package rest

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	domainCache "github.com/AzielCF/az-sheetboard/domains/cache"
	pkgError "github.com/AzielCF/az-sheetboard/pkg/error"
	"github.com/AzielCF/az-sheetboard/pkg/utils"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Post("/cache/clear", rest.ClearCache)
	app.Get("/cache/settings", rest.GetSettings)
	app.Put("/cache/settings", rest.UpdateSettings)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

func (handler *Cache) ClearCache(c *fiber.Ctx) error {
	err := handler.Service.ClearCache(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache cleared successfully",
	})
}

func (handler *Cache) GetSettings(c *fiber.Ctx) error {
	settings, err := handler.Service.GetSettings(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache settings retrieved",
		Results: settings,
	})
}

func (handler *Cache) UpdateSettings(c *fiber.Ctx) error {
	var settings domainCache.CacheSettings
	if err := c.BodyParser(&settings); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("body: " + err.Error()))
	}

	if err := validateCacheSettings(settings); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}

	err := handler.Service.SaveSettings(c.UserContext(), settings)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache settings updated successfully",
	})
}

func validateCacheSettings(settings domainCache.CacheSettings) error {
	return validation.ValidateStruct(&settings,
		validation.Field(&settings.DefaultTTLSecs, validation.Min(1)),
		validation.Field(&settings.L1MaxEntries, validation.Min(1)),
		validation.Field(&settings.CompressMinBytes, validation.Min(1)),
		// Chunks must stay under the backend's 100KB per-entry ceiling.
		validation.Field(&settings.MaxChunkBytes, validation.Min(1024), validation.Max(100_000)),
	)
}
