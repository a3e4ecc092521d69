package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

// fakeCompletion answers each stage with a canned JSON output.
type fakeCompletion struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   map[string]int
}

func newFakeCompletion(outputs map[string]string) *fakeCompletion {
	return &fakeCompletion{outputs: outputs, calls: make(map[string]int)}
}

func (f *fakeCompletion) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[req.Stage]++
	out, ok := f.outputs[req.Stage]
	if !ok {
		return nil, apperr.External(apperr.ReasonCompletionFailed, "no canned output for "+req.Stage, nil)
	}
	return &CompletionResult{Output: out, Model: "fake-model", Tokens: 10}, nil
}

func (f *fakeCompletion) Calls(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeCompletion) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeCredentials struct {
	calls int
	err   error
}

func (f *fakeCredentials) AccessToken(ctx context.Context, userID uuid.UUID) (*AccessGrant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &AccessGrant{
		UserID:      userID,
		Provider:    models.ProviderGmail,
		SenderEmail: "alex.chen@example.com",
		Token:       &oauth2.Token{AccessToken: "access-token"},
	}, nil
}

func (f *fakeCredentials) Exchange(ctx context.Context, cred *models.EmailCredential) (*AccessGrant, error) {
	return f.AccessToken(ctx, cred.UserID)
}

type fakeMail struct {
	mu      sync.Mutex
	sent    []OutboundEmail
	inbox   []InboundMessage
	sendErr error
	// acceptLate makes Send wait for the caller's deadline and then accept
	// the message anyway, like a provider that answers after the timeout.
	acceptLate bool
}

func (f *fakeMail) Send(ctx context.Context, grant *AccessGrant, email *OutboundEmail) (*SentMessage, error) {
	if f.acceptLate {
		<-ctx.Done()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, *email)
	n := len(f.sent)
	return &SentMessage{
		MessageID: fmt.Sprintf("<sent-%d@test>", n),
		ThreadID:  fmt.Sprintf("thread-%d", n),
	}, nil
}

func (f *fakeMail) FetchRecent(ctx context.Context, grant *AccessGrant, limit int) ([]InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inbox, nil
}

func (f *fakeMail) Sent() []OutboundEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OutboundEmail(nil), f.sent...)
}

type fakeCalendar struct {
	events []CalendarEvent
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, grant *AccessGrant, event *CalendarEvent) (string, error) {
	f.events = append(f.events, *event)
	return fmt.Sprintf("event-%d", len(f.events)), nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (f *fakeNotifier) Notify(ctx context.Context, title, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
}

// fixture wires every module against one SQLite database and the fakes above.
type fixture struct {
	db          *gorm.DB
	completion  *fakeCompletion
	credentials *fakeCredentials
	mail        *fakeMail
	calendar    *fakeCalendar
	notifier    *fakeNotifier

	tenantRepo    repositories.TenantRepository
	jobRepo       repositories.JobRepository
	appRepo       repositories.ApplicationRepository
	dispatchRepo  repositories.DispatchRepository
	inboundRepo   repositories.InboundRepository
	interviewRepo repositories.InterviewRepository
	auditRepo     repositories.AuditRepository

	dispatch  DispatchService
	tailoring TailoringService
	jobs      JobAnalysisService
	interview InterviewService
	inbound   InboundService
}

func newFixture(t *testing.T, outputs map[string]string) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	f := &fixture{
		db:            db,
		completion:    newFakeCompletion(outputs),
		credentials:   &fakeCredentials{},
		mail:          &fakeMail{},
		calendar:      &fakeCalendar{},
		notifier:      &fakeNotifier{},
		tenantRepo:    repositories.NewTenantRepository(db),
		jobRepo:       repositories.NewJobRepository(db),
		appRepo:       repositories.NewApplicationRepository(db),
		dispatchRepo:  repositories.NewDispatchRepository(db),
		inboundRepo:   repositories.NewInboundRepository(db),
		interviewRepo: repositories.NewInterviewRepository(db),
		auditRepo:     repositories.NewAuditRepository(db),
	}

	audit := NewAuditLogger(f.auditRepo)
	f.dispatch = NewDispatchService(f.dispatchRepo, f.appRepo, f.jobRepo, f.credentials, f.mail, noopDispatchIndex{}, audit)
	f.tailoring = NewTailoringService(f.appRepo, f.completion, f.dispatch, f.notifier, audit)
	f.jobs = NewJobAnalysisService(f.jobRepo, nil, f.completion, f.tailoring, audit)
	f.interview = NewInterviewService(f.interviewRepo, f.jobRepo, f.credentials, f.calendar, f.completion, f.dispatch, f.notifier, audit)
	f.inbound = NewInboundService(f.inboundRepo, f.dispatchRepo, f.jobRepo, noopDispatchIndex{}, f.completion, f.dispatch, f.interview, f.notifier, audit)
	return f
}

func (f *fixture) audits(t *testing.T, exec *Execution) []models.AuditRecord {
	t.Helper()
	records, err := f.auditRepo.ListByExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	return records
}

func (f *fixture) countDispatches(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.DispatchLog{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count dispatches: %v", err)
	}
	return n
}

func auditStatuses(records []models.AuditRecord, module string) []models.AuditStatus {
	var statuses []models.AuditStatus
	for _, r := range records {
		if r.ModuleName == module {
			statuses = append(statuses, r.Status)
		}
	}
	return statuses
}

// tailoringOutputs is a happy-path answer for every tailoring stage.
var tailoringOutputs = map[string]string{
	StageTailorResume: `{"tailored_summary":"Go engineer focused on payments","tailored_experience":[{"title":"Backend Engineer","company":"Initech","highlights":["Cut p99 latency by 40%"]}]}`,
	StageHumanizeResume: "```json\n{\"humanized_text\":\"Alex Chen builds Go services.\",\"ai_detection_score\":22}\n```",
	StageDraftEmail:     `{"subject_line":"Backend role","email_body":"Hi team, I would like to apply."}`,
	StageHumanizeEmail:  `{"humanized_subject":"Senior Backend Engineer application","humanized_body":"Hi Acme team, I'd love to talk about the role."}`,
}

func withOutputs(base map[string]string, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
