package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

// DispatchRequest is the one shape every caller hands to Send. JobID is
// uuid.Nil for mail that belongs to no job.
type DispatchRequest struct {
	Recipient     string
	Subject       string
	Body          string
	JobID         uuid.UUID
	ApplicationID *uuid.UUID
	CompanyID     *uuid.UUID
	Source        models.DispatchSource
	ThreadID      string
	InReplyTo     string
}

type DispatchService interface {
	Send(ctx context.Context, exec *Execution, req *DispatchRequest) (models.Outcome, error)
	DispatchApplication(ctx context.Context, exec *Execution, req *models.DispatchEmailData) (models.Outcome, error)
}

type dispatchService struct {
	dispatchRepo repositories.DispatchRepository
	appRepo      repositories.ApplicationRepository
	jobRepo      repositories.JobRepository
	credentials  CredentialService
	mail         MailProvider
	index        DispatchIndex
	audit        AuditLogger
	now          func() time.Time
}

func NewDispatchService(
	dispatchRepo repositories.DispatchRepository,
	appRepo repositories.ApplicationRepository,
	jobRepo repositories.JobRepository,
	credentials CredentialService,
	mail MailProvider,
	index DispatchIndex,
	audit AuditLogger,
) DispatchService {
	return &dispatchService{
		dispatchRepo: dispatchRepo,
		appRepo:      appRepo,
		jobRepo:      jobRepo,
		credentials:  credentials,
		mail:         mail,
		index:        index,
		audit:        audit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type dispatchState struct {
	exec      *Execution
	req       *DispatchRequest
	entry     *models.DispatchLog
	duplicate bool
	grant     *AccessGrant
	sent      *SentMessage
}

// ContentHash is the ledger key for an email's content.
func ContentHash(subject, body string) string {
	sum := sha256.Sum256([]byte(subject + "\n" + body))
	return hex.EncodeToString(sum[:])
}

// Send implements DispatchService. The reservation taken in the first stage
// is released when the send itself fails, and kept once the provider has
// accepted the message.
func (s *dispatchService) Send(ctx context.Context, exec *Execution, req *DispatchRequest) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleEmailDispatch, map[string]interface{}{
		"recipient": req.Recipient,
		"subject":   req.Subject,
		"source":    req.Source,
		"job_id":    req.JobID,
	})

	state := &dispatchState{exec: exec, req: req}
	err := pipeline.New[dispatchState](models.ModuleEmailDispatch).
		Then("reserve", s.reserve).
		Then("refresh_credential", s.refreshCredential).
		Then("send", s.send).
		ThenCommit("finalize", s.finalize).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleEmailDispatch, err)
		return nil, err
	}

	if state.duplicate {
		log.Printf("⏭️  Skipping duplicate email %q to %s", req.Subject, req.Recipient)
		s.audit.Skipped(ctx, exec, models.ModuleEmailDispatch, map[string]interface{}{"reason": "duplicate_email"})
		return models.NewOutcome("skipped", models.ModuleEmailDispatch).With("reason", "duplicate_email"), nil
	}

	s.indexSent(context.WithoutCancel(ctx), state.entry, req.Body)

	outcome := models.NewOutcome("sent", models.ModuleEmailDispatch).
		With("dispatch_id", state.entry.ID).
		With("provider_message_id", state.sent.MessageID)
	if req.ApplicationID != nil {
		outcome.With("application_id", *req.ApplicationID)
	}
	s.audit.Success(ctx, exec, models.ModuleEmailDispatch, outcome)
	return outcome, nil
}

func (s *dispatchService) reserve(ctx context.Context, st *dispatchState) error {
	req := st.req
	if strings.TrimSpace(req.Recipient) == "" {
		return apperr.Validation(apperr.ReasonInvalidPayload, "recipient email is required")
	}
	if _, err := mail.ParseAddress(req.Recipient); err != nil {
		return apperr.Validation(apperr.ReasonInvalidPayload, fmt.Sprintf("invalid recipient %q", req.Recipient))
	}

	tenant := st.exec.Tenant
	st.entry = &models.DispatchLog{
		ExecutionID:    st.exec.ID,
		UserID:         tenant.ID,
		JobID:          req.JobID,
		EmailBodyHash:  ContentHash(req.Subject, req.Body),
		ApplicationID:  req.ApplicationID,
		CompanyID:      req.CompanyID,
		RecipientEmail: req.Recipient,
		Subject:        req.Subject,
		Source:         req.Source,
	}

	err := s.dispatchRepo.Reserve(ctx, &repositories.Reservation{
		Entry:       st.entry,
		HourlyLimit: tenant.HourlyLimit(),
		DailyLimit:  tenant.DailyLimit(),
		Now:         s.now(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrDuplicate):
		st.duplicate = true
		return pipeline.Stop()
	case errors.Is(err, repositories.ErrHourlyLimit):
		return apperr.RateLimit(apperr.ReasonHourlyLimit,
			fmt.Sprintf("hourly email limit of %d reached", tenant.HourlyLimit()))
	case errors.Is(err, repositories.ErrDailyLimit):
		return apperr.RateLimit(apperr.ReasonDailyLimit,
			fmt.Sprintf("daily email limit of %d reached", tenant.DailyLimit()))
	}
	return fmt.Errorf("failed to reserve dispatch: %w", err)
}

func (s *dispatchService) refreshCredential(ctx context.Context, st *dispatchState) error {
	grant, err := s.credentials.AccessToken(ctx, st.exec.Tenant.ID)
	if err != nil {
		s.release(ctx, st)
		return err
	}
	st.grant = grant
	return nil
}

func (s *dispatchService) send(ctx context.Context, st *dispatchState) error {
	from := st.grant.SenderEmail
	if name := st.exec.Tenant.FullName; name != "" {
		from = (&mail.Address{Name: name, Address: st.grant.SenderEmail}).String()
	}

	sent, err := s.mail.Send(ctx, st.grant, &OutboundEmail{
		From:      from,
		To:        st.req.Recipient,
		Subject:   st.req.Subject,
		Body:      st.req.Body,
		ThreadID:  st.req.ThreadID,
		InReplyTo: st.req.InReplyTo,
	})
	if err != nil {
		s.release(ctx, st)
		return err
	}
	st.sent = sent
	return nil
}

// finalize runs after the provider accepted the message. Its failure keeps the
// reservation so the same content can never be sent twice.
func (s *dispatchService) finalize(ctx context.Context, st *dispatchState) error {
	err := s.dispatchRepo.Finalize(ctx, st.entry.ID, &repositories.SendReceipt{
		ProviderMessageID: st.sent.MessageID,
		ProviderThreadID:  st.sent.ThreadID,
		SentAt:            s.now(),
	})
	if err != nil {
		return fmt.Errorf("email sent but ledger not finalized: %w", err)
	}
	st.entry.ProviderMessageID = st.sent.MessageID
	st.entry.ProviderThreadID = st.sent.ThreadID
	st.entry.SentStatus = models.DispatchSent
	return nil
}

func (s *dispatchService) release(ctx context.Context, st *dispatchState) {
	if err := s.dispatchRepo.Release(context.WithoutCancel(ctx), st.entry.ID); err != nil {
		log.Printf("⚠️ Failed to release dispatch reservation %s: %v", st.entry.ID, err)
	}
}

func (s *dispatchService) indexSent(ctx context.Context, entry *models.DispatchLog, body string) {
	if err := s.index.IndexDispatch(ctx, entry, body); err != nil {
		log.Printf("⚠️ Failed to index dispatch %s: %v", entry.ID, err)
	}
}

// DispatchApplication implements DispatchService. It sends the stored email of
// one of the tenant's applications.
func (s *dispatchService) DispatchApplication(ctx context.Context, exec *Execution, req *models.DispatchEmailData) (models.Outcome, error) {
	appID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return nil, apperr.Validation(apperr.ReasonInvalidPayload, "application_id must be a UUID")
	}

	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("application not found")
		}
		return nil, err
	}
	// another tenant's application is reported exactly like a missing one
	if app.UserID != exec.Tenant.ID {
		return nil, apperr.NotFound("application not found")
	}
	if !app.HasEmail() {
		return nil, apperr.NotFound("application has no generated email")
	}

	job, err := s.jobRepo.FindByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}

	recipient := strings.TrimSpace(req.RecipientEmail)
	if recipient == "" {
		recipient = strings.TrimSpace(job.Company.HREmail)
	}

	companyID := job.CompanyID
	return s.Send(ctx, exec, &DispatchRequest{
		Recipient:     recipient,
		Subject:       app.EmailSubject,
		Body:          app.EmailBody,
		JobID:         app.JobID,
		ApplicationID: &app.ID,
		CompanyID:     &companyID,
		Source:        models.SourceManual,
	})
}
