package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

// extractionSidecar serves the extraction contract with a fixed text.
func extractionSidecar(t *testing.T, text string) ExtractionService {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FilePath string `json:"file_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FilePath == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"raw_text":   text,
				"char_count": len(text),
				"page_count": 1,
			},
		})
	}))
	t.Cleanup(srv.Close)

	return NewExtractionService(config.ServicesConfig{ExtractionURL: srv.URL, Timeout: 5 * time.Second})
}

func TestExtractionEnforcesMinimumLength(t *testing.T) {
	tests := []struct {
		name    string
		chars   int
		wantErr bool
	}{
		{"one short of the minimum", MinResumeChars - 1, true},
		{"exactly the minimum", MinResumeChars, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extraction := extractionSidecar(t, strings.Repeat("a", tt.chars))

			doc, err := extraction.Extract(context.Background(), "/tmp/resume.pdf")
			if tt.wantErr {
				require.Error(t, err)
				appErr, ok := apperr.As(err)
				require.True(t, ok)
				assert.Equal(t, apperr.ReasonExtractionFailed, appErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Len(t, doc.Text, tt.chars)
		})
	}
}

func TestIngestStoresStructuredProfile(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	tenantRepo := repositories.NewTenantRepository(db)
	completion := newFakeCompletion(map[string]string{
		StageStructureResume: `{
  "full_name": "Alex Chen",
  "email": "alex@example.com",
  "skills": ["Go", "PostgreSQL", "Kubernetes", "gRPC"],
  "experience": [{"title": "Backend Engineer", "company": "Initech"}]
}`,
	})

	svc := NewResumeService(tenantRepo, extractionSidecar(t, strings.Repeat("resume ", 30)), completion,
		NewStorageService(t.TempDir(), 0), NewAuditLogger(repositories.NewAuditRepository(db)))

	exec := NewExecution(tenant)
	outcome, err := svc.Ingest(context.Background(), exec, &models.ResumeUploadData{FilePath: "/uploads/alex.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "success", outcome.Status())
	assert.Equal(t, 4, outcome["skills_count"])

	stored, err := tenantRepo.FindByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", stored.Email)
	assert.JSONEq(t, `["Go","PostgreSQL","Kubernetes","gRPC"]`, string(stored.Skills))
	assert.NotNil(t, stored.ResumeUpdatedAt)
	assert.Equal(t, "fake-model", exec.Model)
}

func TestIngestRejectsProfileWithoutEmail(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	completion := newFakeCompletion(map[string]string{
		StageStructureResume: `{"full_name": "Alex Chen", "email": "n/a", "skills": ["Go"]}`,
	})

	svc := NewResumeService(repositories.NewTenantRepository(db), extractionSidecar(t, strings.Repeat("resume ", 30)), completion,
		NewStorageService(t.TempDir(), 0), NewAuditLogger(repositories.NewAuditRepository(db)))

	_, err := svc.Ingest(context.Background(), NewExecution(tenant), &models.ResumeUploadData{FilePath: "/uploads/alex.pdf"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSchema))

	stored, err := repositories.NewTenantRepository(db).FindByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Email, stored.Email)
}

func TestIngestRequiresAFile(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	completion := newFakeCompletion(nil)

	svc := NewResumeService(repositories.NewTenantRepository(db), NewExtractionService(config.ServicesConfig{}), completion,
		NewStorageService(t.TempDir(), 0), NewAuditLogger(repositories.NewAuditRepository(db)))

	_, err := svc.Ingest(context.Background(), NewExecution(tenant), &models.ResumeUploadData{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, completion.Total())
}

func TestSaveBase64PDFAcceptsDataURL(t *testing.T) {
	dir := t.TempDir()
	storage := NewStorageService(dir, 1024)
	encoded := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))

	path, err := storage.SaveBase64PDF(encoded, "cv.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))

	_, err = storage.SaveBase64PDF(encoded, "cv.docx")
	assert.Error(t, err)

	_, err = NewStorageService(dir, 4).SaveBase64PDF(encoded, "cv.pdf")
	assert.Error(t, err)
}
