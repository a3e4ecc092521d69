package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

// FitThreshold is the lowest fit score that proceeds to tailoring.
const FitThreshold = 75

type JobAnalysisService interface {
	Analyze(ctx context.Context, exec *Execution, req *models.AnalyzeJobData) (models.Outcome, error)
}

type jobAnalysisService struct {
	jobRepo       repositories.JobRepository
	scraper       ScraperService
	completion    CompletionService
	tailoring     TailoringService
	audit         AuditLogger
	promptBuilder *PromptBuilder
}

func NewJobAnalysisService(
	jobRepo repositories.JobRepository,
	scraper ScraperService,
	completion CompletionService,
	tailoring TailoringService,
	audit AuditLogger,
) JobAnalysisService {
	return &jobAnalysisService{
		jobRepo:       jobRepo,
		scraper:       scraper,
		completion:    completion,
		tailoring:     tailoring,
		audit:         audit,
		promptBuilder: NewPromptBuilder(),
	}
}

type jobState struct {
	exec     *Execution
	req      *models.AnalyzeJobData
	pageText string
	posting  *fields
	company  *models.Company
	job      *models.Job
	fitScore int
}

// Analyze implements JobAnalysisService. A job that clears the fit gate is
// handed to tailoring and the tailoring outcome is returned.
func (s *jobAnalysisService) Analyze(ctx context.Context, exec *Execution, req *models.AnalyzeJobData) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleJobAnalysis, map[string]interface{}{
		"job_url":     req.JobURL,
		"scrape_type": req.ScrapeType,
		"inline":      req.JobDescription != "",
	})

	state := &jobState{exec: exec, req: req}
	err := pipeline.New[jobState](models.ModuleJobAnalysis).
		Then("scrape", s.scrape).
		Then("normalize", s.normalize).
		Then("upsert_company", s.upsertCompany).
		Then("upsert_job", s.upsertJob).
		Then("fit_analysis", s.analyzeFit).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleJobAnalysis, err)
		return nil, err
	}

	if state.fitScore < FitThreshold {
		log.Printf("📉 %s scored %d, below the fit threshold", state.job.JobTitle, state.fitScore)
		s.audit.Success(ctx, exec, models.ModuleJobAnalysis, map[string]interface{}{
			"outcome":   "low_fit",
			"fit_score": state.fitScore,
			"job_id":    state.job.ID,
		})
		return models.NewOutcome("low_fit", models.ModuleJobAnalysis).
			With("job_id", state.job.ID).
			With("fit_score", state.fitScore), nil
	}

	log.Printf("📈 %s scored %d, tailoring application", state.job.JobTitle, state.fitScore)
	s.audit.Success(ctx, exec, models.ModuleJobAnalysis, map[string]interface{}{
		"outcome":   "tailoring",
		"fit_score": state.fitScore,
		"job_id":    state.job.ID,
	})

	return s.tailoring.Tailor(ctx, exec, state.job)
}

func (s *jobAnalysisService) scrape(ctx context.Context, st *jobState) error {
	if strings.TrimSpace(st.req.JobURL) == "" {
		return apperr.Validation(apperr.ReasonInvalidPayload, "job_url is required")
	}

	if inline := strings.TrimSpace(st.req.JobDescription); inline != "" {
		st.pageText = inline
		return nil
	}

	text, err := s.scraper.Scrape(ctx, st.req.JobURL, st.req.ScrapeType)
	if err != nil {
		return err
	}
	st.pageText = text
	return nil
}

func (s *jobAnalysisService) normalize(ctx context.Context, st *jobState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.NormalizeJob(st.req.JobURL, st.pageText))
	if err != nil {
		return err
	}

	for _, key := range []string{"company_name", "job_title"} {
		if _, err := f.requireString(key); err != nil {
			return err
		}
	}
	if _, err := f.requireArray("required_skills"); err != nil {
		return err
	}

	st.posting = f
	return nil
}

func (s *jobAnalysisService) upsertCompany(ctx context.Context, st *jobState) error {
	f := st.posting
	company, err := s.jobRepo.UpsertCompany(ctx, &models.Company{
		CompanyName:   f.optional("company_name"),
		Industry:      f.optional("industry"),
		Location:      f.optional("location"),
		HRContactName: f.optional("hr_contact_name"),
		HREmail:       f.optional("hr_email"),
		TechStack:     f.raw("tech_stack"),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	st.company = company
	return nil
}

func (s *jobAnalysisService) upsertJob(ctx context.Context, st *jobState) error {
	f := st.posting
	skills, _ := f.requireArray("required_skills")

	job, err := s.jobRepo.UpsertJob(ctx, &models.Job{
		CompanyID:          st.company.ID,
		JobTitle:           f.optional("job_title"),
		JobURL:             st.req.JobURL,
		DescriptionRaw:     st.pageText,
		DescriptionSummary: f.optional("description_summary"),
		RequiredSkills:     jsonArray(skills),
		ExperienceLevel:    f.optional("experience_level"),
		EmploymentType:     f.optional("employment_type"),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	job.Company = *st.company
	st.job = job
	return nil
}

func (s *jobAnalysisService) analyzeFit(ctx context.Context, st *jobState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.FitAnalysis(st.exec.Tenant, st.job))
	if err != nil {
		return err
	}

	raw, err := f.requireNumber("fit_score")
	if err != nil {
		return err
	}
	if raw < 0 || raw > 100 {
		return apperr.Schemaf("%s: fit_score %g is outside 0-100", StageFitAnalysis, raw)
	}
	score := int(math.Round(raw))
	if _, err := f.requirePresent("gap_analysis"); err != nil {
		return err
	}

	status := models.JobStatusLowFit
	if score >= FitThreshold {
		status = models.JobStatusAnalyzed
	}

	fit := &repositories.FitUpdate{
		FitScore:        score,
		GapAnalysis:     f.raw("gap_analysis"),
		AlignmentReport: f.optional("alignment_report"),
		StrategicAngle:  f.optional("strategic_angle"),
		Status:          status,
	}
	if err := s.jobRepo.UpdateFit(ctx, st.job.ID, fit); err != nil {
		return fmt.Errorf("failed to store fit analysis: %w", err)
	}

	st.fitScore = score
	st.job.FitScore = &score
	st.job.GapAnalysis = fit.GapAnalysis
	st.job.AlignmentReport = fit.AlignmentReport
	st.job.StrategicAngle = fit.StrategicAngle
	st.job.Status = status
	return nil
}
