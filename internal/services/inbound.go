package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/pipeline"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

const bodyExcerptChars = 2000

var urgencyLevels = map[string]bool{"LOW": true, "MEDIUM": true, "HIGH": true}

var replyTypes = map[models.ReplyType]bool{
	models.ReplyInterviewInvite:    true,
	models.ReplyFollowUpRequired:   true,
	models.ReplyRejection:          true,
	models.ReplyInformationRequest: true,
	models.ReplyOther:              true,
}

type InboundService interface {
	Process(ctx context.Context, exec *Execution, msg *InboundMessage) (models.Outcome, error)
}

type inboundService struct {
	inboundRepo   repositories.InboundRepository
	dispatchRepo  repositories.DispatchRepository
	jobRepo       repositories.JobRepository
	index         DispatchIndex
	completion    CompletionService
	dispatch      DispatchService
	interviews    InterviewService
	notifier      Notifier
	audit         AuditLogger
	promptBuilder *PromptBuilder
}

func NewInboundService(
	inboundRepo repositories.InboundRepository,
	dispatchRepo repositories.DispatchRepository,
	jobRepo repositories.JobRepository,
	index DispatchIndex,
	completion CompletionService,
	dispatch DispatchService,
	interviews InterviewService,
	notifier Notifier,
	audit AuditLogger,
) InboundService {
	return &inboundService{
		inboundRepo:   inboundRepo,
		dispatchRepo:  dispatchRepo,
		jobRepo:       jobRepo,
		index:         index,
		completion:    completion,
		dispatch:      dispatch,
		interviews:    interviews,
		notifier:      notifier,
		audit:         audit,
		promptBuilder: NewPromptBuilder(),
	}
}

type inboundState struct {
	exec      *Execution
	msg       *InboundMessage
	duplicate bool
	resumed   bool
	matched   *models.DispatchLog
	job       *models.Job
	entry     *models.InboundLog
	action    models.InboundAction
	result    models.Outcome
}

// Process implements InboundService.
func (s *inboundService) Process(ctx context.Context, exec *Execution, msg *InboundMessage) (models.Outcome, error) {
	s.audit.Started(ctx, exec, models.ModuleInboundReply, map[string]interface{}{
		"message_id": msg.MessageID,
		"thread_id":  msg.ThreadID,
		"sender":     msg.Sender,
		"subject":    msg.Subject,
	})

	state := &inboundState{exec: exec, msg: msg}
	err := pipeline.New[inboundState](models.ModuleInboundReply).
		Then("dedup", s.dedup).
		Then("match", s.match).
		Then("classify", s.classify).
		Then("persist", s.persist).
		Then("route", s.route).
		Run(ctx, state)
	if err != nil {
		s.audit.Failed(ctx, exec, models.ModuleInboundReply, err)
		return nil, err
	}

	if state.duplicate {
		s.audit.Skipped(ctx, exec, models.ModuleInboundReply, map[string]interface{}{"reason": "duplicate_message"})
		return models.NewOutcome("skipped", models.ModuleInboundReply).With("reason", "duplicate_message"), nil
	}

	outcome := models.NewOutcome("processed", models.ModuleInboundReply).
		With("inbound_id", state.entry.ID).
		With("reply_type", state.entry.ReplyType).
		With("action_status", state.action)
	if state.matched != nil {
		outcome.With("matched_dispatch_id", state.matched.ID)
	}
	if state.job != nil {
		outcome.With("job_id", state.job.ID)
	}
	if state.result != nil {
		outcome.With("result", state.result)
	}
	s.audit.Success(ctx, exec, models.ModuleInboundReply, outcome)
	return outcome, nil
}

// dedup skips messages that already reached an action. A recorded message
// without one failed in routing and is resumed from its stored classification.
func (s *inboundService) dedup(ctx context.Context, st *inboundState) error {
	existing, err := s.inboundRepo.FindByMessage(ctx, st.exec.Tenant.ID, st.msg.MessageID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if existing.ActionStatus != "" {
		log.Printf("⏭️  Message %s already processed", st.msg.MessageID)
		st.duplicate = true
		return pipeline.Stop()
	}

	log.Printf("🔁 Resuming message %s classified as %s", st.msg.MessageID, existing.ReplyType)
	st.entry = existing
	st.resumed = true
	return nil
}

// match ties the reply to the dispatch it answers. Every failure here is
// logged and leaves the reply unmatched.
func (s *inboundService) match(ctx context.Context, st *inboundState) error {
	if st.resumed {
		s.restoreMatch(ctx, st)
		return nil
	}
	userID := st.exec.Tenant.ID

	refs := make([]string, 0, len(st.msg.References)+1)
	if st.msg.InReplyTo != "" {
		refs = append(refs, st.msg.InReplyTo)
	}
	refs = append(refs, st.msg.References...)

	matched, err := s.dispatchRepo.FindByThread(ctx, userID, st.msg.ThreadID, refs)
	if err != nil {
		log.Printf("⚠️ Thread matching failed for %s: %v", st.msg.MessageID, err)
	}

	if matched == nil {
		matched = s.semanticMatch(ctx, userID, st.msg)
	}
	if matched == nil {
		log.Printf("🔍 No dispatch matches message %s", st.msg.MessageID)
		return nil
	}

	st.matched = matched
	if matched.JobID == uuid.Nil {
		return nil
	}

	job, err := s.jobRepo.FindByID(ctx, matched.JobID)
	if err != nil {
		log.Printf("⚠️ Matched dispatch %s points at a missing job: %v", matched.ID, err)
		return nil
	}
	st.job = job
	return nil
}

// restoreMatch reloads the dispatch and job a resumed message was matched to.
func (s *inboundService) restoreMatch(ctx context.Context, st *inboundState) {
	if id := st.entry.MatchedDispatchID; id != nil {
		matched, err := s.dispatchRepo.FindByID(ctx, *id)
		if err != nil {
			log.Printf("⚠️ Stored dispatch %s for message %s: %v", *id, st.msg.MessageID, err)
		} else {
			st.matched = matched
		}
	}
	if id := st.entry.JobID; id != nil {
		job, err := s.jobRepo.FindByID(ctx, *id)
		if err != nil {
			log.Printf("⚠️ Stored job %s for message %s: %v", *id, st.msg.MessageID, err)
		} else {
			st.job = job
		}
	}
}

func (s *inboundService) semanticMatch(ctx context.Context, userID uuid.UUID, msg *InboundMessage) *models.DispatchLog {
	hit, err := s.index.MatchReply(ctx, userID, truncate(msg.Subject+"\n\n"+msg.Body, 8000))
	if err != nil {
		log.Printf("⚠️ Semantic matching failed for %s: %v", msg.MessageID, err)
		return nil
	}
	if hit == nil {
		return nil
	}

	entry, err := s.dispatchRepo.FindByID(ctx, hit.DispatchID)
	if err != nil || entry.UserID != userID {
		return nil
	}
	log.Printf("🔍 Message %s matched dispatch %s semantically (%.2f)", msg.MessageID, entry.ID, hit.Score)
	return entry
}

func (s *inboundService) classify(ctx context.Context, st *inboundState) error {
	if st.resumed {
		return nil
	}
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.ClassifyReply(st.msg, st.job))
	if err != nil {
		return err
	}

	rawType, err := f.requireString("reply_type")
	if err != nil {
		return err
	}
	replyType := models.ReplyType(strings.ToUpper(rawType))
	if !replyTypes[replyType] {
		replyType = models.ReplyOther
	}

	urgency := strings.ToUpper(f.optional("urgency_level"))
	if !urgencyLevels[urgency] {
		urgency = "MEDIUM"
	}

	st.entry = &models.InboundLog{
		UserID:             st.exec.Tenant.ID,
		MessageID:          st.msg.MessageID,
		ThreadID:           st.msg.ThreadID,
		InReplyTo:          st.msg.InReplyTo,
		SenderEmail:        st.msg.Sender,
		Subject:            st.msg.Subject,
		BodyExcerpt:        truncate(st.msg.Body, bodyExcerptChars),
		ReplyType:          replyType,
		UrgencyLevel:       urgency,
		RequiresUserAction: f.flag("requires_user_action"),
		Summary:            f.optional("summary"),
	}
	if st.matched != nil {
		st.entry.MatchedDispatchID = &st.matched.ID
	}
	if st.job != nil {
		st.entry.JobID = &st.job.ID
	}
	return nil
}

func (s *inboundService) persist(ctx context.Context, st *inboundState) error {
	if st.resumed {
		return nil
	}
	err := s.inboundRepo.Create(ctx, st.entry)
	if errors.Is(err, repositories.ErrDuplicate) {
		// a concurrent run recorded the same message first
		st.duplicate = true
		return pipeline.Stop()
	}
	return err
}

func (s *inboundService) route(ctx context.Context, st *inboundState) error {
	log.Printf("📨 Message %s classified as %s", st.msg.MessageID, st.entry.ReplyType)

	switch st.entry.ReplyType {
	case models.ReplyInterviewInvite:
		return s.scheduleInterview(ctx, st)
	case models.ReplyFollowUpRequired, models.ReplyInformationRequest:
		return s.reply(ctx, st)
	case models.ReplyRejection:
		return s.acknowledge(ctx, st)
	}
	return s.manualReview(ctx, st, "Reply needs a human")
}

func (s *inboundService) scheduleInterview(ctx context.Context, st *inboundState) error {
	// interviews are keyed by job, so an unmatched invite goes to a human
	if st.job == nil {
		return s.manualReview(ctx, st, "Interview invite without a matching application")
	}

	result, err := s.interviews.Schedule(ctx, st.exec, &InterviewRequest{
		InboundID: st.entry.ID,
		Message:   st.msg,
		Job:       st.job,
	})
	if err != nil {
		return err
	}
	st.result = result
	return s.setAction(ctx, st, &repositories.InboundActionUpdate{Status: models.InboundInterviewScheduled})
}

func (s *inboundService) reply(ctx context.Context, st *inboundState) error {
	tenant := st.exec.Tenant
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.DraftReply(tenant, st.msg, st.entry.Summary))
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
	if subject, body, err = humanizeEmail(ctx, s.completion, s.promptBuilder, st.exec, subject, body); err != nil {
		return err
	}

	// the draft is stored first so a failed send still leaves it for review
	draft := &repositories.InboundActionUpdate{
		Status:       models.InboundPendingReview,
		DraftSubject: subject,
		DraftBody:    body,
	}
	if err := s.setAction(ctx, st, draft); err != nil {
		return err
	}

	if !tenant.AutoSend() {
		s.notifier.Notify(ctx, "Reply draft ready for review", fmt.Sprintf("%s: %s", st.msg.Sender, subject))
		return nil
	}

	req := &DispatchRequest{
		Recipient: addressOf(st.msg.Sender),
		Subject:   subject,
		Body:      body,
		Source:    models.SourceAutoReply,
		ThreadID:  st.msg.ThreadID,
		InReplyTo: st.msg.MessageID,
	}
	if st.job != nil {
		req.JobID = st.job.ID
		req.CompanyID = &st.job.CompanyID
	}

	result, err := s.dispatch.Send(ctx, st.exec, req)
	if err != nil {
		return err
	}
	st.result = result
	return s.setAction(ctx, st, &repositories.InboundActionUpdate{Status: models.InboundReplied})
}

func (s *inboundService) acknowledge(ctx context.Context, st *inboundState) error {
	f, err := completeFields(ctx, s.completion, st.exec, s.promptBuilder.Acknowledge(st.exec.Tenant, st.msg))
	if err != nil {
		return err
	}
	text, err := f.requireString("acknowledgment_text")
	if err != nil {
		return err
	}

	return s.setAction(ctx, st, &repositories.InboundActionUpdate{
		Status:       models.InboundAcknowledged,
		DraftSubject: replySubject(st.msg.Subject),
		DraftBody:    text,
	})
}

func (s *inboundService) manualReview(ctx context.Context, st *inboundState, title string) error {
	s.notifier.Notify(ctx, title, fmt.Sprintf("%s: %s\n%s", st.msg.Sender, st.msg.Subject, st.entry.Summary))
	return s.setAction(ctx, st, &repositories.InboundActionUpdate{Status: models.InboundManualReview})
}

func (s *inboundService) setAction(ctx context.Context, st *inboundState, update *repositories.InboundActionUpdate) error {
	if err := s.inboundRepo.UpdateAction(ctx, st.entry.ID, update); err != nil {
		return err
	}
	st.action = update.Status
	return nil
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
