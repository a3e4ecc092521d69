package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

type ResumeService interface {
	Ingest(ctx context.Context, exec *Execution, req *models.ResumeUploadData) (models.Outcome, error)
}

type resumeService struct {
	tenantRepo    repositories.TenantRepository
	extraction    ExtractionService
	completion    CompletionService
	storage       StorageService
	audit         AuditLogger
	promptBuilder *PromptBuilder
}

func NewResumeService(
	tenantRepo repositories.TenantRepository,
	extraction ExtractionService,
	completion CompletionService,
	storage StorageService,
	audit AuditLogger,
) ResumeService {
	return &resumeService{
		tenantRepo:    tenantRepo,
		extraction:    extraction,
		completion:    completion,
		storage:       storage,
		audit:         audit,
		promptBuilder: NewPromptBuilder(),
	}
}

type resumeState struct {
	exec     *Execution
	req      *models.ResumeUploadData
	filePath string
	doc      *ExtractedDocument
	profile  *repositories.ProfileUpdate
	skills   int
}

// Ingest implements ResumeService.
func (s *resumeService) Ingest(ctx context.Context, exec *Execution, req *models.ResumeUploadData) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleResumeIngestion, map[string]interface{}{
		"file_path": req.FilePath,
		"file_name": req.FileName,
		"inline":    req.ResumePDFBase64 != "",
	})

	state := &resumeState{exec: exec, req: req}
	err := pipeline.New[resumeState](models.ModuleResumeIngestion).
		Then("store", s.store).
		Then("extract", s.extract).
		Then("structure", s.structure).
		Then("upsert", s.upsert).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleResumeIngestion, err)
		return nil, err
	}

	outcome := models.NewOutcome("success", models.ModuleResumeIngestion).
		With("user_id", exec.Tenant.ID).
		With("full_name", state.profile.FullName).
		With("skills_count", state.skills)
	s.audit.Success(ctx, exec, models.ModuleResumeIngestion, outcome)

	log.Printf("✅ Resume ingested for %s (%d skills)", state.profile.FullName, state.skills)
	return outcome, nil
}

func (s *resumeService) store(ctx context.Context, st *resumeState) error {
	if st.req.ResumePDFBase64 == "" {
		if strings.TrimSpace(st.req.FilePath) == "" {
			return apperr.Validation(apperr.ReasonInvalidPayload, "file_path or resume_pdf_base64 is required")
		}
		st.filePath = st.req.FilePath
		return nil
	}

	path, err := s.storage.SaveBase64PDF(st.req.ResumePDFBase64, st.req.FileName)
	if err != nil {
		return apperr.Validation(apperr.ReasonInvalidPayload, err.Error())
	}
	log.Printf("💾 Stored inline resume at %s", path)
	st.filePath = path
	return nil
}

func (s *resumeService) extract(ctx context.Context, st *resumeState) error {
	doc, err := s.extraction.Extract(ctx, st.filePath)
	if err != nil {
		return err
	}
	st.doc = doc
	return nil
}

func (s *resumeService) structure(ctx context.Context, st *resumeState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.StructureResume(st.doc.Text))
	if err != nil {
		return err
	}

	fullName, err := f.requireString("full_name")
	if err != nil {
		return err
	}
	email, err := f.requireString("email")
	if err != nil {
		return err
	}
	if !strings.Contains(email, "@") {
		return apperr.Schemaf("%s: email %q is not an address", StageStructureResume, email)
	}
	skills, err := f.requireNonEmptyArray("skills")
	if err != nil {
		return err
	}

	st.skills = len(skills)
	st.profile = &repositories.ProfileUpdate{
		FullName:       fullName,
		Email:          email,
		Phone:          f.optional("phone"),
		Location:       f.optional("location"),
		Summary:        f.optional("summary"),
		Skills:         jsonArray(skills),
		Experience:     f.raw("experience"),
		Projects:       f.raw("projects"),
		Education:      f.raw("education"),
		Certifications: f.raw("certifications"),
		PreferredRoles: f.raw("preferred_roles"),
		RawResumeText:  st.doc.Text,
	}
	return nil
}

func (s *resumeService) upsert(ctx context.Context, st *resumeState) error {
	if err := s.tenantRepo.UpdateProfile(ctx, st.exec.Tenant.ID, st.profile); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
