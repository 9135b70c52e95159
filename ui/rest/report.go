package rest

import (
	"github.com/gofiber/fiber/v2"

	domainReport "github.com/AzielCF/az-sheetboard/domains/report"
	"github.com/AzielCF/az-sheetboard/pkg/utils"
)

type Report struct {
	Service domainReport.IReportUsecase
}

func InitRestReport(app fiber.Router, service domainReport.IReportUsecase) Report {
	rest := Report{Service: service}
	app.Get("/reports/:sheetId/dataset", rest.GetDataset)
	app.Get("/reports/runs", rest.GetRecentRuns)

	return rest
}

func (handler *Report) GetDataset(c *fiber.Ctx) error {
	sheetID := c.Params("sheetId")
	refresh := c.QueryBool("refresh")

	dataset, err := handler.Service.LoadDataset(c.UserContext(), sheetID, refresh)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Dataset retrieved",
		Results: dataset,
	})
}

func (handler *Report) GetRecentRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	runs, err := handler.Service.RecentRuns(c.UserContext(), limit)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Recent runs retrieved",
		Results: runs,
	})
}
