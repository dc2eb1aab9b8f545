package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/repository"
	"github.com/google/uuid"
)

// fakeReportRepository keeps reports, users and actions in memory.
// Transaction snapshots state and restores it when fn fails.
type fakeReportRepository struct {
	mu      sync.Mutex
	reports map[uuid.UUID]models.Report
	files   map[uuid.UUID][]uuid.UUID
	uploads map[uuid.UUID]bool
	actions []models.ReportAction
	active  map[uuid.UUID]bool
	clock   time.Time

	errCreate       error
	errCreateAction error
	errUpdateStatus error
	errFind         error

	// concurrentWrite runs once when the next transaction starts, standing
	// in for a write another request committed first.
	concurrentWrite func()
}

func newFakeReportRepository() *fakeReportRepository {
	return &fakeReportRepository{
		reports: make(map[uuid.UUID]models.Report),
		files:   make(map[uuid.UUID][]uuid.UUID),
		uploads: make(map[uuid.UUID]bool),
		active:  make(map[uuid.UUID]bool),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeReportRepository) addUser(id uuid.UUID) {
	f.active[id] = true
}

func (f *fakeReportRepository) addFile() uuid.UUID {
	id := uuid.New()
	f.uploads[id] = true
	return id
}

func (f *fakeReportRepository) seed(report models.Report) models.Report {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	f.reports[report.ID] = report
	return report
}

func (f *fakeReportRepository) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeReportRepository) actionsFor(reportID uuid.UUID) []models.ReportAction {
	var out []models.ReportAction
	for _, a := range f.actions {
		if a.ReportID == reportID {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeReportRepository) Create(_ context.Context, report *models.Report) error {
	if f.errCreate != nil {
		return f.errCreate
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := f.tick()
	report.CreatedAt, report.UpdatedAt = now, now
	f.reports[report.ID] = *report
	return nil
}

func (f *fakeReportRepository) AttachFiles(_ context.Context, reportID uuid.UUID, fileIDs []uuid.UUID) error {
	f.files[reportID] = append(f.files[reportID], fileIDs...)
	return nil
}

func (f *fakeReportRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	if f.errFind != nil {
		return nil, f.errFind
	}
	report, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &report, nil
}

func (f *fakeReportRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	report, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actions := f.actionsFor(id)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	report.Actions = actions
	for _, fileID := range f.files[id] {
		report.Files = append(report.Files, models.ReportFile{ReportID: id, FileID: fileID})
	}
	return report, nil
}

func (f *fakeReportRepository) filter(filter repository.ReportFilter) []models.Report {
	var out []models.Report
	for _, r := range f.reports {
		if filter.ReporterID != nil && r.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (f *fakeReportRepository) List(_ context.Context, filter repository.ReportFilter) ([]models.Report, int64, error) {
	all := f.filter(filter)
	return page(all, filter.Limit, filter.Offset), int64(len(all)), nil
}

func (f *fakeReportRepository) ListSummaries(_ context.Context, filter repository.ReportFilter) ([]repository.ReportSummary, int64, error) {
	all := f.filter(filter)
	var out []repository.ReportSummary
	for _, r := range page(all, filter.Limit, filter.Offset) {
		out = append(out, repository.ReportSummary{
			Report:      r,
			ActionCount: int64(len(f.actionsFor(r.ID))),
			FileCount:   int64(len(f.files[r.ID])),
		})
	}
	return out, int64(len(all)), nil
}

func (f *fakeReportRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.ReportStatus) error {
	if f.errUpdateStatus != nil {
		return f.errUpdateStatus
	}
	report, ok := f.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	if report.Status != from {
		return repository.ErrStatusChanged
	}
	report.Status = to
	report.UpdatedAt = f.tick()
	f.reports[id] = report
	return nil
}

func (f *fakeReportRepository) CountFiles(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if f.uploads[id] {
			n++
		}
	}
	return n, nil
}

func (f *fakeReportRepository) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.active[id]
	return ok, nil
}

func (f *fakeReportRepository) SuspendUser(_ context.Context, userID uuid.UUID) error {
	if _, ok := f.active[userID]; !ok {
		return repository.ErrNotFound
	}
	f.active[userID] = false
	return nil
}

func (f *fakeReportRepository) UnsuspendUser(_ context.Context, userID uuid.UUID) error {
	if _, ok := f.active[userID]; !ok {
		return repository.ErrNotFound
	}
	f.active[userID] = true
	return nil
}

func (f *fakeReportRepository) CreateAction(_ context.Context, action *models.ReportAction) error {
	if f.errCreateAction != nil {
		return f.errCreateAction
	}
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	action.CreatedAt = f.tick()
	f.actions = append(f.actions, *action)
	return nil
}

func (f *fakeReportRepository) Transaction(_ context.Context, fn func(repo repository.ReportRepository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.concurrentWrite != nil {
		write := f.concurrentWrite
		f.concurrentWrite = nil
		write()
	}

	reports := make(map[uuid.UUID]models.Report, len(f.reports))
	for k, v := range f.reports {
		reports[k] = v
	}
	files := make(map[uuid.UUID][]uuid.UUID, len(f.files))
	for k, v := range f.files {
		files[k] = append([]uuid.UUID(nil), v...)
	}
	active := make(map[uuid.UUID]bool, len(f.active))
	for k, v := range f.active {
		active[k] = v
	}
	actions := append([]models.ReportAction(nil), f.actions...)

	if err := fn(f); err != nil {
		f.reports, f.files, f.active, f.actions = reports, files, active, actions
		return err
	}
	return nil
}

type recordingNotifier struct {
	sent []NotificationInput
	err  error
}

func (n *recordingNotifier) Create(_ context.Context, input NotificationInput) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, input)
	return nil
}

func (n *recordingNotifier) to(userID uuid.UUID) []NotificationInput {
	var out []NotificationInput
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

var errStoreDown = errors.New("connection refused")
