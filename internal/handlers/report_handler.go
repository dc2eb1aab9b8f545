package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReportHandler struct {
	reportService *services.ReportService
	validator     *RequestValidator
}

func NewReportHandler(reportService *services.ReportService, validator *RequestValidator) *ReportHandler {
	return &ReportHandler{reportService: reportService, validator: validator}
}

func (h *ReportHandler) CreateReport(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := h.validator.Validate(&req); msg != "" {
		return badRequest(c, msg)
	}

	input := services.SubmitReportInput{
		ReporterID:  userID,
		TargetType:  models.ReportTargetType(req.TargetType),
		TargetID:    req.TargetID,
		Category:    models.ReportCategory(req.Category),
		Description: req.Description,
	}
	if req.TargetUserID != nil && *req.TargetUserID != "" {
		targetUserID := uuid.MustParse(*req.TargetUserID)
		input.TargetUserID = &targetUserID
	}
	for _, id := range req.FileIDs {
		input.FileIDs = append(input.FileIDs, uuid.MustParse(id))
	}

	report, err := h.reportService.SubmitReport(c.UserContext(), input)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) GetMyReports(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	params, msg := h.listParams(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	result, err := h.reportService.GetMyReports(c.UserContext(), userID, params)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(result)
}

func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	report, err := h.reportService.GetReportByID(c.UserContext(), reportID, userID, middleware.IsAdmin(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(report)
}

func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	params, msg := h.listParams(c)
	if msg != "" {
		return badRequest(c, msg)
	}

	result, err := h.reportService.GetAllReports(c.UserContext(), params)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(result)
}

func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	adminID, err := middleware.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.UpdateReportStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := h.validator.Validate(&req); msg != "" {
		return badRequest(c, msg)
	}

	report, err := h.reportService.UpdateReportStatus(c.UserContext(), reportID, adminID, models.ReportStatus(req.Status), req.Details)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(report)
}

func (h *ReportHandler) TakeAction(c *fiber.Ctx) error {
	adminID, err := middleware.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.TakeActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if msg := h.validator.Validate(&req); msg != "" {
		return badRequest(c, msg)
	}

	action, err := h.reportService.TakeAction(c.UserContext(), reportID, adminID, models.ReportActionType(req.ActionType), req.Details)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(action)
}

func (h *ReportHandler) UnsuspendUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.reportService.UnsuspendUser(c.UserContext(), userID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "User unsuspended successfully"})
}

func (h *ReportHandler) listParams(c *fiber.Ctx) (services.ListReportsParams, string) {
	var q dto.ListReportsQuery
	if err := c.QueryParser(&q); err != nil {
		return services.ListReportsParams{}, "Invalid query parameters"
	}
	if msg := h.validator.Validate(&q); msg != "" {
		return services.ListReportsParams{}, msg
	}
	return services.ListReportsParams{
		Page:     q.Page,
		Limit:    q.Limit,
		Status:   models.ReportStatus(q.Status),
		Category: models.ReportCategory(q.Category),
	}, ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

// serviceError maps service error kinds to HTTP statuses. Only dependency
// failures hide their message behind a generic one.
func serviceError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidTransition):
		code = fiber.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		code = fiber.StatusForbidden
	case errors.Is(err, services.ErrReportNotFound), errors.Is(err, services.ErrUserNotFound):
		code = fiber.StatusNotFound
	}

	message := err.Error()
	var svcErr *services.Error
	if code == fiber.StatusInternalServerError {
		if !errors.As(err, &svcErr) {
			slog.Error("unhandled service error", "method", c.Method(), "path", c.Path(), "error", err.Error())
			message = "Internal server error"
		}
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}
