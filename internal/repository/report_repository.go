package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStatusChanged = errors.New("report status changed")
)

// ReportFilter narrows report listings. Zero values mean "no filter".
type ReportFilter struct {
	ReporterID *uuid.UUID
	Status     models.ReportStatus
	Category   models.ReportCategory
	Limit      int
	Offset     int
}

// ReportSummary is a list-view row: the report with reporter and target user
// loaded plus how many actions and files hang off it.
type ReportSummary struct {
	models.Report
	ActionCount int64 `json:"action_count"`
	FileCount   int64 `json:"file_count"`
}

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	AttachFiles(ctx context.Context, reportID uuid.UUID, fileIDs []uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	ListSummaries(ctx context.Context, filter ReportFilter) ([]ReportSummary, int64, error)
	// UpdateStatus moves a report from one status to another. It returns
	// ErrStatusChanged when the report is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ReportStatus) error
	CountFiles(ctx context.Context, ids []uuid.UUID) (int64, error)
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	SuspendUser(ctx context.Context, userID uuid.UUID) error
	UnsuspendUser(ctx context.Context, userID uuid.UUID) error
	CreateAction(ctx context.Context, action *models.ReportAction) error
	// Transaction runs fn against a repository bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(repo ReportRepository) error) error
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *reportRepository) AttachFiles(ctx context.Context, reportID uuid.UUID, fileIDs []uuid.UUID) error {
	if len(fileIDs) == 0 {
		return nil
	}
	links := make([]models.ReportFile, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		links = append(links, models.ReportFile{ReportID: reportID, FileID: fileID})
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&links).Error; err != nil {
		return fmt.Errorf("failed to attach report files: %w", err)
	}
	return nil
}

func (r *reportRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (r *reportRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Preload("Reporter").
		Preload("TargetUser").
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("report_files.created_at ASC")
		}).
		Preload("Files.File").
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("report_actions.created_at DESC")
		}).
		Preload("Actions.Admin").
		First(&report, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report details: %w", err)
	}
	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	var reports []models.Report
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	if err := r.filtered(ctx, filter).Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, total, nil
}

func (r *reportRepository) ListSummaries(ctx context.Context, filter ReportFilter) ([]ReportSummary, int64, error) {
	var reports []models.Report
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	err := r.filtered(ctx, filter).
		Preload("Reporter", selectUserDisplayFields).
		Preload("TargetUser", selectUserDisplayFields).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&reports).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}

	summaries := make([]ReportSummary, len(reports))
	if len(reports) == 0 {
		return summaries, total, nil
	}

	ids := make([]uuid.UUID, len(reports))
	for i, report := range reports {
		ids[i] = report.ID
	}
	actionCounts, err := r.countByReport(ctx, &models.ReportAction{}, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count report actions: %w", err)
	}
	fileCounts, err := r.countByReport(ctx, &models.ReportFile{}, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count report files: %w", err)
	}

	for i, report := range reports {
		summaries[i] = ReportSummary{
			Report:      report,
			ActionCount: actionCounts[report.ID],
			FileCount:   fileCounts[report.ID],
		}
	}
	return summaries, total, nil
}

func (r *reportRepository) filtered(ctx context.Context, filter ReportFilter) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Report{}).Scopes(filter.scope)
}

type reportCount struct {
	ReportID uuid.UUID
	Count    int64
}

func (r *reportRepository) countByReport(ctx context.Context, model interface{}, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []reportCount
	err := r.db.WithContext(ctx).Model(model).
		Select("report_id, COUNT(*) AS count").
		Where("report_id IN ?", ids).
		Group("report_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ReportID] = row.Count
	}
	return counts, nil
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ReportStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update report status: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check report: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (r *reportRepository) CountFiles(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.File{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

func (r *reportRepository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

func (r *reportRepository) SuspendUser(ctx context.Context, userID uuid.UUID) error {
	return r.setUserActive(ctx, userID, false)
}

func (r *reportRepository) UnsuspendUser(ctx context.Context, userID uuid.UUID) error {
	return r.setUserActive(ctx, userID, true)
}

func (r *reportRepository) setUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update user active flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reportRepository) CreateAction(ctx context.Context, action *models.ReportAction) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(action).Error; err != nil {
		return fmt.Errorf("failed to create report action: %w", err)
	}
	return nil
}

func (r *reportRepository) Transaction(ctx context.Context, fn func(repo ReportRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&reportRepository{db: tx})
	})
}

func (f ReportFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ReporterID != nil {
		db = db.Where("reporter_id = ?", *f.ReporterID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	return db
}

func selectUserDisplayFields(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "role", "active")
}
