package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportTargetType string

const (
	ReportTargetUser    ReportTargetType = "USER"
	ReportTargetProject ReportTargetType = "PROJECT"
	ReportTargetSession ReportTargetType = "SESSION"
	ReportTargetRequest ReportTargetType = "REQUEST"
)

func (t ReportTargetType) Valid() bool {
	switch t {
	case ReportTargetUser, ReportTargetProject, ReportTargetSession, ReportTargetRequest:
		return true
	}
	return false
}

type ReportCategory string

const (
	ReportCategoryFraud           ReportCategory = "FRAUD"
	ReportCategoryAbuse           ReportCategory = "ABUSE"
	ReportCategoryServiceFailure  ReportCategory = "SERVICE_FAILURE"
	ReportCategoryPolicyViolation ReportCategory = "POLICY_VIOLATION"
	ReportCategoryTechnical       ReportCategory = "TECHNICAL"
)

func (c ReportCategory) Valid() bool {
	switch c {
	case ReportCategoryFraud, ReportCategoryAbuse, ReportCategoryServiceFailure,
		ReportCategoryPolicyViolation, ReportCategoryTechnical:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportStatusSubmitted   ReportStatus = "SUBMITTED"
	ReportStatusUnderReview ReportStatus = "UNDER_REVIEW"
	ReportStatusResolved    ReportStatus = "RESOLVED"
	ReportStatusDismissed   ReportStatus = "DISMISSED"
)

// reportTransitions is the complete set of legal status changes. Anything
// not listed here is rejected, including re-opening a closed report.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusSubmitted:   {ReportStatusUnderReview},
	ReportStatusUnderReview: {ReportStatusResolved, ReportStatusDismissed},
	ReportStatusResolved:    {},
	ReportStatusDismissed:   {},
}

func (s ReportStatus) Valid() bool {
	_, ok := reportTransitions[s]
	return ok
}

// AllowedTransitions returns a copy of the statuses reachable from s.
func (s ReportStatus) AllowedTransitions() []ReportStatus {
	next := reportTransitions[s]
	out := make([]ReportStatus, len(next))
	copy(out, next)
	return out
}

func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	for _, allowed := range reportTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ReportStatus) IsTerminal() bool {
	return s.Valid() && len(reportTransitions[s]) == 0
}

type ReportActionType string

const (
	ReportActionStatusChange ReportActionType = "STATUS_CHANGE"
	ReportActionWarning      ReportActionType = "WARNING"
	ReportActionSuspend      ReportActionType = "SUSPEND"
	ReportActionBan          ReportActionType = "BAN"
)

// Report is a user-filed complaint against a user, project, session or
// request. TargetID is opaque and not checked against the target's store.
type Report struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"reporter_id"`
	TargetType   ReportTargetType `gorm:"type:varchar(20);not null;index:idx_reports_target" json:"target_type"`
	TargetID     string           `gorm:"not null;size:255;index:idx_reports_target" json:"target_id"`
	TargetUserID *uuid.UUID       `gorm:"type:uuid;index" json:"target_user_id,omitempty"`
	Category     ReportCategory   `gorm:"type:varchar(30);not null;index" json:"category"`
	Description  string           `gorm:"type:text;not null" json:"description"`
	Status       ReportStatus     `gorm:"type:varchar(20);not null;default:'SUBMITTED';index" json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	Reporter   *User          `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	TargetUser *User          `gorm:"foreignKey:TargetUserID" json:"target_user,omitempty"`
	Files      []ReportFile   `gorm:"foreignKey:ReportID" json:"files,omitempty"`
	Actions    []ReportAction `gorm:"foreignKey:ReportID" json:"actions,omitempty"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Report) TableName() string {
	return "reports"
}

// ReportFile links a report to an evidence file that was uploaded earlier.
type ReportFile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	FileID    uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	CreatedAt time.Time `json:"created_at"`
	File      *File     `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

func (f *ReportFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (ReportFile) TableName() string {
	return "report_files"
}

// ReportAction is the append-only moderation history of a report. admin_id
// has no FK: admins listed in config may have no users row.
type ReportAction struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"report_id"`
	AdminID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"admin_id"`
	ActionType ReportActionType `gorm:"type:varchar(20);not null" json:"action_type"`
	Details    *string          `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
	Admin      *User            `gorm:"foreignKey:AdminID;constraint:-" json:"admin,omitempty"`
}

func (a *ReportAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (ReportAction) TableName() string {
	return "report_actions"
}
