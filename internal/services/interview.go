package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

const defaultInterviewMinutes = 60

var interviewModes = map[models.InterviewMode]bool{
	models.InterviewVirtual: true,
	models.InterviewOnsite:  true,
	models.InterviewPhone:   true,
}

type InterviewRequest struct {
	InboundID uuid.UUID
	Message   *InboundMessage
	Job       *models.Job
}

type InterviewService interface {
	Schedule(ctx context.Context, exec *Execution, req *InterviewRequest) (models.Outcome, error)
}

type interviewService struct {
	interviewRepo repositories.InterviewRepository
	jobRepo       repositories.JobRepository
	credentials   CredentialService
	calendar      CalendarProvider
	completion    CompletionService
	dispatch      DispatchService
	notifier      Notifier
	audit         AuditLogger
	promptBuilder *PromptBuilder
}

func NewInterviewService(
	interviewRepo repositories.InterviewRepository,
	jobRepo repositories.JobRepository,
	credentials CredentialService,
	calendar CalendarProvider,
	completion CompletionService,
	dispatch DispatchService,
	notifier Notifier,
	audit AuditLogger,
) InterviewService {
	return &interviewService{
		interviewRepo: interviewRepo,
		jobRepo:       jobRepo,
		credentials:   credentials,
		calendar:      calendar,
		completion:    completion,
		dispatch:      dispatch,
		notifier:      notifier,
		audit:         audit,
		promptBuilder: NewPromptBuilder(),
	}
}

type interviewState struct {
	exec      *Execution
	req       *InterviewRequest
	interview *models.Interview
	duplicate bool
	subject   string
	body      string
	dispatch  models.Outcome
}

// Schedule implements InterviewService.
func (s *interviewService) Schedule(ctx context.Context, exec *Execution, req *InterviewRequest) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleInterview, map[string]interface{}{
		"job_id":     req.Job.ID,
		"message_id": req.Message.MessageID,
	})

	state := &interviewState{exec: exec, req: req}
	err := pipeline.New[interviewState](models.ModuleInterview).
		Then("extract", s.extract).
		Then("dedup", s.dedup).
		Then("calendar", s.createEvent).
		Then("persist", s.persist).
		Then("update_job", s.updateJob).
		Then("draft_confirmation", s.draftConfirmation).
		Then("confirm", s.confirm).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleInterview, err)
		return nil, err
	}

	if state.duplicate {
		s.audit.Skipped(ctx, exec, models.ModuleInterview, map[string]interface{}{"reason": "duplicate_interview"})
		return models.NewOutcome("skipped", models.ModuleInterview).With("reason", "duplicate_interview"), nil
	}

	iv := state.interview
	outcome := models.NewOutcome("scheduled", models.ModuleInterview).
		With("interview_id", iv.ID).
		With("scheduled_at", iv.ScheduledAt.Format(time.RFC3339)).
		With("calendar_event_id", iv.CalendarEventID).
		With("confirmation_status", iv.ConfirmationStatus)
	if state.dispatch != nil {
		outcome.With("dispatch", state.dispatch)
	}
	s.audit.Success(ctx, exec, models.ModuleInterview, outcome)
	return outcome, nil
}

func (s *interviewService) extract(ctx context.Context, st *interviewState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.ExtractInterview(st.req.Message))
	if err != nil {
		return err
	}

	date, err := f.requireString("interview_date")
	if err != nil {
		return err
	}
	clock, err := f.requireString("interview_time")
	if err != nil {
		return err
	}

	timezone := f.optional("timezone")
	loc, err := time.LoadLocation(timezone)
	if timezone == "" || err != nil {
		timezone, loc = "UTC", time.UTC
	}

	local, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return apperr.Schemaf("%s: cannot parse %q %q as YYYY-MM-DD HH:MM", StageExtractInterview, date, clock)
	}

	mode := models.InterviewMode(strings.ToUpper(f.optional("interview_mode")))
	if !interviewModes[mode] {
		mode = models.InterviewVirtual
	}

	duration := f.intOr("duration_minutes", defaultInterviewMinutes)
	if duration <= 0 {
		duration = defaultInterviewMinutes
	}

	inboundID := st.req.InboundID
	st.interview = &models.Interview{
		UserID:           st.exec.Tenant.ID,
		JobID:            st.req.Job.ID,
		ScheduledAt:      local.UTC(),
		InboundID:        &inboundID,
		DurationMinutes:  duration,
		Timezone:         timezone,
		Mode:             mode,
		InterviewerName:  f.optional("interviewer_name"),
		InterviewerEmail: f.optional("interviewer_email"),
		MeetingLink:      f.optional("meeting_link"),
		Location:         f.optional("location"),
		Status:           models.InterviewStatusScheduled,
	}
	return nil
}

func (s *interviewService) dedup(ctx context.Context, st *interviewState) error {
	iv := st.interview
	exists, err := s.interviewRepo.Exists(ctx, iv.UserID, iv.JobID, iv.ScheduledAt)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("⏭️  Interview for job %s at %s already scheduled", iv.JobID, iv.ScheduledAt.Format(time.RFC3339))
		st.duplicate = true
		return pipeline.Stop()
	}
	return nil
}

func (s *interviewService) createEvent(ctx context.Context, st *interviewState) error {
	grant, err := s.credentials.AccessToken(ctx, st.exec.Tenant.ID)
	if err != nil {
		return err
	}

	iv := st.interview
	job := st.req.Job
	location := iv.Location
	if location == "" {
		location = iv.MeetingLink
	}

	eventID, err := s.calendar.CreateEvent(ctx, grant, &CalendarEvent{
		Summary:       fmt.Sprintf("Interview: %s at %s", job.JobTitle, job.Company.CompanyName),
		Description:   interviewDescription(iv),
		Start:         iv.ScheduledAt,
		Duration:      time.Duration(iv.DurationMinutes) * time.Minute,
		Timezone:      iv.Timezone,
		Location:      location,
		AttendeeName:  iv.InterviewerName,
		AttendeeEmail: iv.InterviewerEmail,
	})
	if err != nil {
		return err
	}
	iv.CalendarEventID = eventID
	return nil
}

func (s *interviewService) persist(ctx context.Context, st *interviewState) error {
	err := s.interviewRepo.Create(ctx, st.interview)
	if errors.Is(err, repositories.ErrDuplicate) {
		log.Printf("⚠️ Interview recorded concurrently; calendar event %s is orphaned", st.interview.CalendarEventID)
		st.duplicate = true
		return pipeline.Stop()
	}
	return err
}

func (s *interviewService) updateJob(ctx context.Context, st *interviewState) error {
	return s.jobRepo.UpdateStatus(ctx, st.req.Job.ID, models.JobStatusInterview)
}

func (s *interviewService) draftConfirmation(ctx context.Context, st *interviewState) error {
	tenant := st.exec.Tenant
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.DraftConfirmation(tenant, st.interview, st.req.Job))
	if err != nil {
		return err
	}
	subject, err := f.requireString("subject_line")
	if err != nil {
		return err
	}
	body, err := f.requireString("email_body")
	if err != nil {
		return err
	}

	st.subject, st.body, err = humanizeEmail(ctx, s.completion, s.promptBuilder, st.exec, subject, body)
	return err
}

// confirm stores the confirmation draft before anything is sent, so a failed
// AUTO send still leaves it for review.
func (s *interviewService) confirm(ctx context.Context, st *interviewState) error {
	iv := st.interview
	msg := st.req.Message

	if err := s.interviewRepo.UpdateConfirmation(ctx, iv.ID, models.ConfirmationPendingReview, st.subject, st.body); err != nil {
		return err
	}
	iv.ConfirmationStatus = models.ConfirmationPendingReview
	iv.ConfirmationSubject = st.subject
	iv.ConfirmationBody = st.body
	when := fmt.Sprintf("%s on %s", st.req.Job.JobTitle, iv.ScheduledAt.Format(time.RFC1123))

	if !st.exec.Tenant.AutoSend() {
		s.notifier.Notify(ctx, "Interview confirmation ready for review", when)
		return nil
	}

	recipient := iv.InterviewerEmail
	if recipient == "" {
		recipient = addressOf(msg.Sender)
	}

	companyID := st.req.Job.CompanyID
	result, err := s.dispatch.Send(ctx, st.exec, &DispatchRequest{
		Recipient: recipient,
		Subject:   st.subject,
		Body:      st.body,
		JobID:     st.req.Job.ID,
		CompanyID: &companyID,
		Source:    models.SourceInterviewConfirmation,
		ThreadID:  msg.ThreadID,
		InReplyTo: msg.MessageID,
	})
	if err != nil {
		s.notifier.Notify(ctx, "Interview confirmation not sent", fmt.Sprintf("%s: %v", when, err))
		return err
	}
	st.dispatch = result

	if err := s.interviewRepo.UpdateConfirmation(ctx, iv.ID, models.ConfirmationSent, st.subject, st.body); err != nil {
		return err
	}
	iv.ConfirmationStatus = models.ConfirmationSent
	return nil
}

func interviewDescription(iv *models.Interview) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Format: %s", iv.Mode))
	if iv.InterviewerName != "" {
		parts = append(parts, fmt.Sprintf("Interviewer: %s", iv.InterviewerName))
	}
	if iv.MeetingLink != "" {
		parts = append(parts, fmt.Sprintf("Link: %s", iv.MeetingLink))
	}
	if iv.Location != "" {
		parts = append(parts, fmt.Sprintf("Location: %s", iv.Location))
	}
	return strings.Join(parts, "\n")
}
