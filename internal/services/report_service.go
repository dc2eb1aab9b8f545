package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf16"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/repository"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const (
	DefaultPageLimit     = 20
	MaxPageLimit         = 100
	MinDescriptionLength = 10
)

type SubmitReportInput struct {
	ReporterID   uuid.UUID
	TargetType   models.ReportTargetType
	TargetID     string
	TargetUserID *uuid.UUID
	Category     models.ReportCategory
	Description  string
	FileIDs      []uuid.UUID
}

type ListReportsParams struct {
	Page     int
	Limit    int
	Status   models.ReportStatus
	Category models.ReportCategory
}

type PaginatedReports struct {
	Reports    []models.Report `json:"reports"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

type PaginatedReportSummaries struct {
	Reports    []repository.ReportSummary `json:"reports"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	Limit      int                        `json:"limit"`
	TotalPages int                        `json:"total_pages"`
}

type ReportServiceOption func(*ReportService)

// WithPageLimits overrides the default and maximum page size.
func WithPageLimits(defaultLimit, maxLimit int) ReportServiceOption {
	return func(s *ReportService) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
		if s.defaultLimit > s.maxLimit {
			s.defaultLimit = s.maxLimit
		}
	}
}

// ReportService owns the report lifecycle: submission, the status state
// machine and admin actions against reported users.
type ReportService struct {
	repo         repository.ReportRepository
	notifier     Notifier
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

func NewReportService(repo repository.ReportRepository, notifier Notifier, logger *slog.Logger, opts ...ReportServiceOption) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ReportService{
		repo:         repo,
		notifier:     notifier,
		logger:       logger,
		defaultLimit: DefaultPageLimit,
		maxLimit:     MaxPageLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReportService) SubmitReport(ctx context.Context, input SubmitReportInput) (*models.Report, error) {
	targetID := strings.TrimSpace(input.TargetID)
	if input.TargetType == "" || targetID == "" {
		return nil, invalidInput("Target type and ID are required")
	}
	if !input.TargetType.Valid() {
		return nil, invalidInput("Invalid target type")
	}
	if input.Category == "" {
		return nil, invalidInput("Category is required")
	}
	if !input.Category.Valid() {
		return nil, invalidInput("Invalid category")
	}
	description := strings.TrimSpace(input.Description)
	if descriptionLength(description) < MinDescriptionLength {
		return nil, invalidInput(fmt.Sprintf("Description must be at least %d characters", MinDescriptionLength))
	}

	report := &models.Report{
		ReporterID:   input.ReporterID,
		TargetType:   input.TargetType,
		TargetID:     targetID,
		TargetUserID: input.TargetUserID,
		Category:     input.Category,
		Description:  description,
		Status:       models.ReportStatusSubmitted,
	}

	fileIDs := uniqueIDs(input.FileIDs)

	err := s.repo.Transaction(ctx, func(repo repository.ReportRepository) error {
		if report.TargetUserID != nil {
			exists, err := repo.UserExists(ctx, *report.TargetUserID)
			if err != nil {
				return err
			}
			if !exists {
				return invalidInput("Target user does not exist")
			}
		}
		if len(fileIDs) > 0 {
			found, err := repo.CountFiles(ctx, fileIDs)
			if err != nil {
				return err
			}
			if found != int64(len(fileIDs)) {
				return invalidInput("One or more files do not exist")
			}
		}
		if err := repo.Create(ctx, report); err != nil {
			return err
		}
		return repo.AttachFiles(ctx, report.ID, fileIDs)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		s.logger.Error("report submission failed",
			"user_id", input.ReporterID.String(),
			"action", "submit_report",
			"error", err,
		)
		return nil, dependencyFailure("Failed to submit report", err)
	}

	metrics.ReportsSubmitted.WithLabelValues(string(report.Category), string(report.TargetType)).Inc()

	s.notify(ctx, "submit_report", report.ID, NotificationInput{
		UserID:  report.ReporterID,
		Title:   "Report Submitted",
		Message: "Your report has been submitted and will be reviewed by our moderation team.",
		Type:    models.NotificationTypeSystem,
	})

	return report, nil
}

func (s *ReportService) GetMyReports(ctx context.Context, userID uuid.UUID, params ListReportsParams) (*PaginatedReports, error) {
	page, limit := s.normalizePage(params.Page, params.Limit)

	reports, total, err := s.repo.List(ctx, repository.ReportFilter{
		ReporterID: &userID,
		Status:     params.Status,
		Category:   params.Category,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, dependencyFailure("Failed to fetch reports", err)
	}
	if reports == nil {
		reports = []models.Report{}
	}

	return &PaginatedReports{
		Reports:    reports,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// GetReportByID returns the report with reporter, target user, files and
// actions (newest first). Only the reporter and admins may see it.
func (s *ReportService) GetReportByID(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*models.Report, error) {
	report, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if !isAdmin && report.ReporterID != userID {
		return nil, &Error{Kind: ErrForbidden, Message: "You do not have permission to view this report"}
	}
	return report, nil
}

func (s *ReportService) GetAllReports(ctx context.Context, params ListReportsParams) (*PaginatedReportSummaries, error) {
	page, limit := s.normalizePage(params.Page, params.Limit)

	reports, total, err := s.repo.ListSummaries(ctx, repository.ReportFilter{
		Status:   params.Status,
		Category: params.Category,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, dependencyFailure("Failed to fetch reports", err)
	}
	if reports == nil {
		reports = []repository.ReportSummary{}
	}

	return &PaginatedReportSummaries{
		Reports:    reports,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// UpdateReportStatus moves a report along the transition table and logs a
// STATUS_CHANGE action in the same transaction. The reporter is notified
// only after the change has committed.
func (s *ReportService) UpdateReportStatus(ctx context.Context, reportID, adminID uuid.UUID, newStatus models.ReportStatus, details *string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		return nil, s.lookupError(err)
	}

	previous := report.Status
	if !previous.CanTransitionTo(newStatus) {
		return nil, &Error{
			Kind:    ErrInvalidTransition,
			Message: fmt.Sprintf("Cannot transition from %s to %s", previous, newStatus),
		}
	}

	note := fmt.Sprintf("Status changed to %s", newStatus)
	if d := trimmed(details); d != nil {
		note = *d
	}

	err = s.repo.Transaction(ctx, func(repo repository.ReportRepository) error {
		if err := repo.UpdateStatus(ctx, reportID, previous, newStatus); err != nil {
			return err
		}
		return repo.CreateAction(ctx, &models.ReportAction{
			ReportID:   reportID,
			AdminID:    adminID,
			ActionType: models.ReportActionStatusChange,
			Details:    &note,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: ErrReportNotFound, Message: "Report not found", Err: err}
		}
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, s.staleTransition(ctx, reportID, previous, newStatus, err)
		}
		s.logger.Error("report status update failed",
			"report_id", reportID.String(),
			"user_id", adminID.String(),
			"action", "update_report_status",
			"error", err,
		)
		return nil, dependencyFailure("Failed to update report status", err)
	}

	metrics.StatusTransitions.WithLabelValues(string(previous), string(newStatus)).Inc()

	s.notify(ctx, "update_report_status", reportID, NotificationInput{
		UserID:  report.ReporterID,
		Title:   "Report Status Updated",
		Message: fmt.Sprintf("Your report is now %s.", statusLabel(newStatus)),
		Type:    models.NotificationTypeSystem,
	})

	updated, err := s.repo.FindByIDWithDetails(ctx, reportID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return updated, nil
}

type actionNotice struct {
	title        string
	message      string
	deactivating bool
}

// TakeAction applies WARNING, SUSPEND or BAN to the report's target user and
// records it. The report status is left alone.
func (s *ReportService) TakeAction(ctx context.Context, reportID, adminID uuid.UUID, actionType models.ReportActionType, details *string) (*models.ReportAction, error) {
	report, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	if report.TargetUserID == nil {
		return nil, invalidInput("This report does not have a target user for actions")
	}
	targetUserID := *report.TargetUserID

	note := trimmed(details)
	var notice actionNotice
	switch actionType {
	case models.ReportActionWarning:
		notice = actionNotice{
			title:   "Account Warning",
			message: "You have received a warning for violating our community guidelines. Further violations may lead to suspension.",
		}
		if note != nil {
			notice.message = *note
		}
	case models.ReportActionSuspend:
		notice = actionNotice{
			title:        "Account Suspended",
			message:      withReason("Your account has been suspended due to a violation of our policies.", note),
			deactivating: true,
		}
	case models.ReportActionBan:
		notice = actionNotice{
			title:        "Account Banned",
			message:      withReason("Your account has been banned due to severe or repeated violations of our policies.", note),
			deactivating: true,
		}
	default:
		return nil, invalidInput("Invalid action type")
	}

	action := &models.ReportAction{
		ReportID:   reportID,
		AdminID:    adminID,
		ActionType: actionType,
		Details:    note,
	}

	err = s.repo.Transaction(ctx, func(repo repository.ReportRepository) error {
		// SUSPEND and BAN share the same flag; only the action row tells them apart.
		if notice.deactivating {
			if err := repo.SuspendUser(ctx, targetUserID); err != nil {
				return err
			}
		}
		return repo.CreateAction(ctx, action)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: ErrUserNotFound, Message: "Target user not found", Err: err}
		}
		s.logger.Error("report action failed",
			"report_id", reportID.String(),
			"user_id", adminID.String(),
			"action", string(actionType),
			"error", err,
		)
		return nil, dependencyFailure("Failed to apply report action", err)
	}

	metrics.AdminActions.WithLabelValues(string(actionType)).Inc()

	s.notify(ctx, "take_action", reportID, NotificationInput{
		UserID:  targetUserID,
		Title:   notice.title,
		Message: notice.message,
		Type:    models.NotificationTypeSystem,
	})
	s.notify(ctx, "take_action", reportID, NotificationInput{
		UserID:  report.ReporterID,
		Title:   "Action Taken on Your Report",
		Message: "An administrator has reviewed your report and taken action. Thank you for helping keep the community safe.",
		Type:    models.NotificationTypeSystem,
	})

	return action, nil
}

// SuspendUser deactivates an account outside of any report flow.
func (s *ReportService) SuspendUser(ctx context.Context, userID uuid.UUID) error {
	return s.setUserActive(ctx, userID, false)
}

// UnsuspendUser reactivates an account. Nothing in the report flows calls
// it; it is meant for admin tooling.
func (s *ReportService) UnsuspendUser(ctx context.Context, userID uuid.UUID) error {
	return s.setUserActive(ctx, userID, true)
}

func (s *ReportService) setUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	var err error
	if active {
		err = s.repo.UnsuspendUser(ctx, userID)
	} else {
		err = s.repo.SuspendUser(ctx, userID)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: ErrUserNotFound, Message: "User not found", Err: err}
	}
	s.logger.Error("user active flag update failed",
		"user_id", userID.String(),
		"action", "set_user_active",
		"error", err,
	)
	return dependencyFailure("Failed to update user", err)
}

// notify creates a notification after the triggering change has committed.
// Failures are logged and reported but never returned: the change stands.
func (s *ReportService) notify(ctx context.Context, operation string, reportID uuid.UUID, input NotificationInput) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Create(context.WithoutCancel(ctx), input); err != nil {
		metrics.NotificationFailures.WithLabelValues(operation).Inc()
		s.logger.Error("notification dispatch failed",
			"report_id", reportID.String(),
			"user_id", input.UserID.String(),
			"action", operation,
			"error", err,
		)
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
	}
}

// staleTransition reports a status change that lost a race: another admin
// moved the report after it was read.
func (s *ReportService) staleTransition(ctx context.Context, reportID uuid.UUID, previous, newStatus models.ReportStatus, cause error) error {
	current := previous
	if report, err := s.repo.FindByID(ctx, reportID); err == nil {
		current = report.Status
	}
	return &Error{
		Kind:    ErrInvalidTransition,
		Message: fmt.Sprintf("Cannot transition from %s to %s", current, newStatus),
		Err:     cause,
	}
}

func (s *ReportService) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: ErrReportNotFound, Message: "Report not found", Err: err}
	}
	return dependencyFailure("Failed to fetch report", err)
}

func (s *ReportService) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// descriptionLength counts UTF-16 code units, so a character outside the
// BMP counts as two.
func descriptionLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func withReason(message string, reason *string) string {
	if reason == nil {
		return message
	}
	return message + " Reason: " + *reason
}

func statusLabel(status models.ReportStatus) string {
	switch status {
	case models.ReportStatusUnderReview:
		return "under review"
	case models.ReportStatusResolved:
		return "resolved"
	case models.ReportStatusDismissed:
		return "dismissed"
	}
	return strings.ToLower(string(status))
}
