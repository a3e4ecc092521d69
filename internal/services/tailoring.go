package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

type TailoringService interface {
	Tailor(ctx context.Context, exec *Execution, job *models.Job) (models.Outcome, error)
}

type tailoringService struct {
	appRepo       repositories.ApplicationRepository
	completion    CompletionService
	dispatch      DispatchService
	notifier      Notifier
	audit         AuditLogger
	promptBuilder *PromptBuilder
}

func NewTailoringService(
	appRepo repositories.ApplicationRepository,
	completion CompletionService,
	dispatch DispatchService,
	notifier Notifier,
	audit AuditLogger,
) TailoringService {
	return &tailoringService{
		appRepo:       appRepo,
		completion:    completion,
		dispatch:      dispatch,
		notifier:      notifier,
		audit:         audit,
		promptBuilder: NewPromptBuilder(),
	}
}

type tailorState struct {
	exec        *Execution
	job         *models.Job
	tailored    string
	summary     string
	humanized   string
	aiScore     int
	application *models.Application
	subject     string
	body        string
}

// Tailor implements TailoringService.
func (s *tailoringService) Tailor(ctx context.Context, exec *Execution, job *models.Job) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleTailoring, map[string]interface{}{
		"job_id":    job.ID,
		"job_title": job.JobTitle,
	})

	state := &tailorState{exec: exec, job: job}
	err := pipeline.New[tailorState](models.ModuleTailoring).
		Then("tailor", s.tailor).
		Then("humanize", s.humanize).
		Then("upsert_application", s.upsertApplication).
		Then("draft_email", s.draftEmail).
		Then("humanize_email", s.humanizeEmail).
		Then("persist_email", s.persistEmail).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleTailoring, err)
		return nil, err
	}

	app := state.application
	tenant := exec.Tenant
	recipient := strings.TrimSpace(job.Company.HREmail)

	switch {
	case !tenant.AutoSend():
		outcome := models.NewOutcome("draft_saved", models.ModuleTailoring).With("application_id", app.ID)
		s.audit.Success(ctx, exec, models.ModuleTailoring, outcome)
		s.notifier.Notify(ctx, "Application draft ready for review",
			fmt.Sprintf("%s at %s: %s", job.JobTitle, job.Company.CompanyName, state.subject))
		return outcome, nil

	case recipient == "":
		outcome := models.NewOutcome("draft_saved", models.ModuleTailoring).
			With("reason", "missing_recipient").
			With("application_id", app.ID)
		s.audit.Success(ctx, exec, models.ModuleTailoring, outcome)
		s.notifier.Notify(ctx, "Application has no recipient",
			fmt.Sprintf("%s at %s has no HR email; the draft was kept", job.JobTitle, job.Company.CompanyName))
		return outcome, nil
	}

	s.audit.Success(ctx, exec, models.ModuleTailoring, map[string]interface{}{
		"outcome":        "auto_send",
		"application_id": app.ID,
	})

	appID := app.ID
	companyID := job.CompanyID
	return s.dispatch.Send(ctx, exec, &DispatchRequest{
		Recipient:     recipient,
		Subject:       state.subject,
		Body:          state.body,
		JobID:         job.ID,
		ApplicationID: &appID,
		CompanyID:     &companyID,
		Source:        models.SourceAutoSend,
	})
}

func (s *tailoringService) tailor(ctx context.Context, st *tailorState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.TailorResume(st.exec.Tenant, st.job))
	if err != nil {
		return err
	}

	summary, err := f.requireString("tailored_summary")
	if err != nil {
		return err
	}
	experience, err := f.requireArray("tailored_experience")
	if err != nil {
		return err
	}

	st.summary = summary
	st.tailored = renderResume(st.exec.Tenant, summary, experience)
	return nil
}

func (s *tailoringService) humanize(ctx context.Context, st *tailorState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.HumanizeResume(st.tailored))
	if err != nil {
		return err
	}

	text, err := f.requireString("humanized_text")
	if err != nil {
		return err
	}

	st.humanized = text
	st.aiScore = f.intOr("ai_detection_score", models.DefaultAIDetectionScore)
	return nil
}

func (s *tailoringService) upsertApplication(ctx context.Context, st *tailorState) error {
	status := models.ApplicationPendingReview
	if st.exec.Tenant.AutoSend() {
		status = models.ApplicationReady
	}

	app, err := s.appRepo.Upsert(ctx, &models.Application{
		UserID:             st.exec.Tenant.ID,
		JobID:              st.job.ID,
		ResumeVersion:      models.CurrentResumeVersion,
		TailoredSummary:    st.summary,
		TailoredResumeText: st.humanized,
		AIDetectionScore:   st.aiScore,
		HumanizationPass:   1,
		GenerationModel:    st.exec.Model,
		Status:             status,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert application: %w", err)
	}

	st.application = app
	return nil
}

func (s *tailoringService) draftEmail(ctx context.Context, st *tailorState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.DraftEmail(st.exec.Tenant, st.job, st.humanized))
	if err != nil {
		return err
	}

	if st.subject, err = f.requireString("subject_line"); err != nil {
		return err
	}
	if st.body, err = f.requireString("email_body"); err != nil {
		return err
	}
	return nil
}

func (s *tailoringService) humanizeEmail(ctx context.Context, st *tailorState) error {
	subject, body, err := humanizeEmail(ctx, s.completion, s.promptBuilder, st.exec, st.subject, st.body)
	if err != nil {
		return err
	}
	st.subject, st.body = subject, body
	return nil
}

func (s *tailoringService) persistEmail(ctx context.Context, st *tailorState) error {
	if err := s.appRepo.UpdateEmail(ctx, st.application.ID, st.subject, st.body); err != nil {
		return fmt.Errorf("failed to store email draft: %w", err)
	}
	st.application.EmailSubject = st.subject
	st.application.EmailBody = st.body
	log.Printf("💾 Application %s saved as %s", st.application.ID, st.application.Status)
	return nil
}

// humanizeEmail is shared by every stage that polishes a drafted email.
func humanizeEmail(ctx context.Context, completion CompletionService, pb *PromptBuilder, exec *Execution, subject, body string) (string, string, error) {
	f, err := completeFields(ctx, completion, exec, pb.HumanizeEmail(subject, body))
	if err != nil {
		return "", "", err
	}

	humanSubject, err := f.requireString("humanized_subject")
	if err != nil {
		return "", "", err
	}
	humanBody, err := f.requireString("humanized_body")
	if err != nil {
		return "", "", err
	}
	return humanSubject, humanBody, nil
}

func renderResume(tenant *models.Tenant, summary string, experience []interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n", tenant.FullName, summary)

	for _, item := range experience {
		entry, ok := item.(map[string]interface{})
		if !ok {
			if s, ok := item.(string); ok {
				fmt.Fprintf(&b, "\n- %s", s)
			}
			continue
		}

		title, _ := entry["title"].(string)
		company, _ := entry["company"].(string)
		fmt.Fprintf(&b, "\n%s, %s\n", title, company)

		if highlights, ok := entry["highlights"].([]interface{}); ok {
			for _, h := range stringsOf(highlights) {
				fmt.Fprintf(&b, "- %s\n", h)
			}
		}
	}

	return strings.TrimSpace(b.String())
}
