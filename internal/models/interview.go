package models

import (
	"time"

	"github.com/google/uuid"
)

type InterviewMode string

const (
	InterviewVirtual InterviewMode = "VIRTUAL"
	InterviewOnsite  InterviewMode = "ONSITE"
	InterviewPhone   InterviewMode = "PHONE"
)

const (
	InterviewStatusScheduled = "SCHEDULED"

	ConfirmationSent          = "SENT"
	ConfirmationPendingReview = "PENDING_REVIEW"
)

type Interview struct {
	ID                  uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:ux_interview_user_job_time,priority:1" json:"user_id"`
	JobID               uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:ux_interview_user_job_time,priority:2" json:"job_id"`
	ScheduledAt         time.Time     `gorm:"not null;uniqueIndex:ux_interview_user_job_time,priority:3" json:"scheduled_at"`
	InboundID           *uuid.UUID    `gorm:"type:uuid" json:"inbound_id,omitempty"`
	DurationMinutes     int           `gorm:"not null;default:60" json:"duration_minutes"`
	Timezone            string        `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	Mode                InterviewMode `gorm:"type:text;not null;default:'VIRTUAL'" json:"interview_mode"`
	InterviewerName     string        `gorm:"type:text" json:"interviewer_name,omitempty"`
	InterviewerEmail    string        `gorm:"type:text" json:"interviewer_email,omitempty"`
	MeetingLink         string        `gorm:"type:text" json:"meeting_link,omitempty"`
	Location            string        `gorm:"type:text" json:"location,omitempty"`
	CalendarEventID     string        `gorm:"type:text" json:"calendar_event_id,omitempty"`
	Status              string        `gorm:"type:text;not null;default:'SCHEDULED'" json:"status"`
	ConfirmationStatus  string        `gorm:"type:text" json:"confirmation_status,omitempty"`
	ConfirmationSubject string        `gorm:"type:text" json:"confirmation_subject,omitempty"`
	ConfirmationBody    string        `gorm:"type:text" json:"confirmation_body,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (Interview) TableName() string {
	return "interviews"
}
