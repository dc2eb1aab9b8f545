package dto

type CreateReportRequest struct {
	TargetType   string   `json:"target_type"`
	TargetID     string   `json:"target_id"`
	TargetUserID *string  `json:"target_user_id" validate:"omitempty,uuid"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	FileIDs      []string `json:"file_ids" validate:"omitempty,dive,uuid"`
}

type ListReportsQuery struct {
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
	Status   string `query:"status" validate:"omitempty,oneof=SUBMITTED UNDER_REVIEW RESOLVED DISMISSED"`
	Category string `query:"category" validate:"omitempty,oneof=FRAUD ABUSE SERVICE_FAILURE POLICY_VIOLATION TECHNICAL"`
}

type UpdateReportStatusRequest struct {
	Status  string  `json:"status" validate:"required"`
	Details *string `json:"details" validate:"omitempty,max=2000"`
}

type TakeActionRequest struct {
	ActionType string  `json:"action_type"`
	Details    *string `json:"details" validate:"omitempty,max=2000"`
}
