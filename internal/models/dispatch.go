package models

import (
	"time"

	"github.com/google/uuid"
)

type DispatchStatus string

const (
	// DispatchPending marks a reservation taken before the provider call.
	DispatchPending DispatchStatus = "PENDING"
	DispatchSent    DispatchStatus = "SENT"
)

type DispatchSource string

const (
	SourceAutoSend              DispatchSource = "auto_send"
	SourceManual                DispatchSource = "manual"
	SourceAutoReply             DispatchSource = "auto_reply"
	SourceInterviewConfirmation DispatchSource = "interview_confirmation"
)

// DispatchLog is the outbound idempotency ledger. The unique index on
// (user_id, job_id, email_body_hash) admits one row per distinct content.
// Dispatches not tied to a job use the nil UUID so the index still applies.
type DispatchLog struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExecutionID       uuid.UUID      `gorm:"type:uuid;not null" json:"execution_id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_dispatch_user_job_hash,priority:1;index:ix_dispatch_user_created,priority:1" json:"user_id"`
	JobID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_dispatch_user_job_hash,priority:2" json:"job_id"`
	EmailBodyHash     string         `gorm:"type:text;not null;uniqueIndex:ux_dispatch_user_job_hash,priority:3" json:"email_body_hash"`
	ApplicationID     *uuid.UUID     `gorm:"type:uuid" json:"application_id,omitempty"`
	CompanyID         *uuid.UUID     `gorm:"type:uuid" json:"company_id,omitempty"`
	RecipientEmail    string         `gorm:"type:text;not null" json:"recipient_email"`
	Subject           string         `gorm:"type:text" json:"subject"`
	ProviderMessageID string         `gorm:"type:text;index" json:"provider_message_id,omitempty"`
	ProviderThreadID  string         `gorm:"type:text;index" json:"provider_thread_id,omitempty"`
	SentStatus        DispatchStatus `gorm:"type:text;not null" json:"sent_status"`
	Source            DispatchSource `gorm:"type:text" json:"source"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `gorm:"index:ix_dispatch_user_created,priority:2" json:"created_at"`
}

func (DispatchLog) TableName() string {
	return "email_dispatch_log"
}
