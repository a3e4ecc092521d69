package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
)

// ActionHandler runs one module for an authenticated execution.
type ActionHandler func(ctx context.Context, exec *Execution, data json.RawMessage) (models.Outcome, error)

type Router struct {
	handlers map[string]ActionHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]ActionHandler)}
}

// Register binds an action name to its handler. Registering a name twice
// replaces the earlier handler.
func (r *Router) Register(action models.Action, handler ActionHandler) *Router {
	r.handlers[string(action)] = handler
	return r
}

func (r *Router) Route(ctx context.Context, exec *Execution, action string, data json.RawMessage) (models.Outcome, error) {
	handler, ok := r.handlers[action]
	if !ok {
		return nil, apperr.Validation(apperr.ReasonUnknownAction, fmt.Sprintf("unknown action %q", action))
	}

	log.Printf("🚀 [%s] execution %s for tenant %s", action, exec.ID, exec.Tenant.ID)
	return handler(ctx, exec, data)
}

// Modules groups the module services the default routes dispatch to.
type Modules struct {
	Resume   ResumeService
	Jobs     JobAnalysisService
	Dispatch DispatchService
	Inbound  InboundService
}

// NewDefaultRouter registers every webhook action.
func NewDefaultRouter(m Modules) *Router {
	return NewRouter().
		Register(models.ActionResumeUpload, func(ctx context.Context, exec *Execution, data json.RawMessage) (models.Outcome, error) {
			var req models.ResumeUploadData
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return m.Resume.Ingest(ctx, exec, &req)
		}).
		Register(models.ActionAnalyzeJob, func(ctx context.Context, exec *Execution, data json.RawMessage) (models.Outcome, error) {
			var req models.AnalyzeJobData
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return m.Jobs.Analyze(ctx, exec, &req)
		}).
		Register(models.ActionDispatchEmail, func(ctx context.Context, exec *Execution, data json.RawMessage) (models.Outcome, error) {
			var req models.DispatchEmailData
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			return m.Dispatch.DispatchApplication(ctx, exec, &req)
		}).
		Register(models.ActionProcessInbound, func(ctx context.Context, exec *Execution, data json.RawMessage) (models.Outcome, error) {
			var req models.InboundMessageData
			if err := decodeData(data, &req); err != nil {
				return nil, err
			}
			if req.MessageID == "" {
				return nil, apperr.Validation(apperr.ReasonInvalidPayload, "message_id is required")
			}
			return m.Inbound.Process(ctx, exec, &InboundMessage{
				MessageID: req.MessageID,
				ThreadID:  req.ThreadID,
				InReplyTo: req.InReplyTo,
				Sender:    req.Sender,
				Subject:   req.Subject,
				Body:      req.Body,
			})
		})
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return apperr.Validation(apperr.ReasonInvalidPayload, "data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation(apperr.ReasonInvalidPayload, fmt.Sprintf("invalid data: %v", err))
	}
	return nil
}
