package models

import (
	"time"

	"github.com/google/uuid"
)

type ReplyType string

const (
	ReplyInterviewInvite    ReplyType = "INTERVIEW_INVITE"
	ReplyFollowUpRequired   ReplyType = "FOLLOW_UP_REQUIRED"
	ReplyRejection          ReplyType = "REJECTION"
	ReplyInformationRequest ReplyType = "INFORMATION_REQUEST"
	ReplyOther              ReplyType = "OTHER"
)

type InboundAction string

const (
	InboundPendingReview      InboundAction = "PENDING_REVIEW"
	InboundReplied            InboundAction = "REPLIED"
	InboundAcknowledged       InboundAction = "ACKNOWLEDGED"
	InboundManualReview       InboundAction = "MANUAL_REVIEW"
	InboundInterviewScheduled InboundAction = "INTERVIEW_SCHEDULED"
	InboundSkippedNoAction    InboundAction = "SKIPPED_NO_ACTION"
)

// InboundLog is the inbound idempotency ledger, one row per (user, message).
type InboundLog struct {
	ID                 uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:ux_inbound_user_message,priority:1" json:"user_id"`
	MessageID          string        `gorm:"type:text;not null;uniqueIndex:ux_inbound_user_message,priority:2" json:"message_id"`
	ThreadID           string        `gorm:"type:text;index" json:"thread_id,omitempty"`
	InReplyTo          string        `gorm:"type:text" json:"in_reply_to,omitempty"`
	SenderEmail        string        `gorm:"type:text" json:"sender_email"`
	Subject            string        `gorm:"type:text" json:"subject"`
	BodyExcerpt        string        `gorm:"type:text" json:"body_excerpt,omitempty"`
	ReplyType          ReplyType     `gorm:"type:text;not null" json:"reply_type"`
	UrgencyLevel       string        `gorm:"type:text" json:"urgency_level"`
	RequiresUserAction bool          `gorm:"not null;default:false" json:"requires_user_action"`
	Summary            string        `gorm:"type:text" json:"summary,omitempty"`
	MatchedDispatchID  *uuid.UUID    `gorm:"type:uuid" json:"matched_dispatch_id,omitempty"`
	JobID              *uuid.UUID    `gorm:"type:uuid" json:"job_id,omitempty"`
	ActionStatus       InboundAction `gorm:"type:text" json:"action_status,omitempty"`
	DraftSubject       string        `gorm:"type:text" json:"draft_subject,omitempty"`
	DraftBody          string        `gorm:"type:text" json:"draft_body,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (InboundLog) TableName() string {
	return "inbound_email_log"
}
