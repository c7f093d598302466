package moderation

import "github.com/google/uuid"

// CreateReportRequest represents a report submission
type CreateReportRequest struct {
	TargetType   string     `json:"target_type" validate:"required,oneof=user stream"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID     *uuid.UUID `json:"stream_id,omitempty"`
	Reason       string     `json:"reason" validate:"required,report_reason"`
	Description  string     `json:"description,omitempty" validate:"max=2000"`
}

func (r *CreateReportRequest) toInput() *SubmitInput {
	return &SubmitInput{
		Target: Target{
			Type:     TargetType(r.TargetType),
			UserID:   r.TargetUserID,
			StreamID: r.StreamID,
		},
		Reason:      ReportReason(r.Reason),
		Description: r.Description,
	}
}

// CreateReportResponse is returned on submission
type CreateReportResponse struct {
	ID     uuid.UUID    `json:"id"`
	Status ReportStatus `json:"status"`
}
