package models

import "encoding/json"

type Action string

const (
	ActionResumeUpload   Action = "resume_upload"
	ActionAnalyzeJob     Action = "analyze_job"
	ActionDispatchEmail  Action = "dispatch_email"
	ActionProcessInbound Action = "process_inbound"
)

type WebhookRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type ResumeUploadData struct {
	FilePath        string `json:"file_path"`
	ResumePDFBase64 string `json:"resume_pdf_base64"`
	FileName        string `json:"file_name"`
}

type AnalyzeJobData struct {
	JobURL         string `json:"job_url"`
	ScrapeType     string `json:"scrape_type"`
	JobDescription string `json:"job_description"`
}

type DispatchEmailData struct {
	ApplicationID  string `json:"application_id"`
	RecipientEmail string `json:"recipient_email"`
}

type InboundMessageData struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	InReplyTo string `json:"in_reply_to"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Outcome is the success envelope returned to webhook callers. It always
// carries "status" and "module".
type Outcome map[string]interface{}

func NewOutcome(status, module string) Outcome {
	return Outcome{"status": status, "module": module}
}

func (o Outcome) With(key string, value interface{}) Outcome {
	o[key] = value
	return o
}

func (o Outcome) Status() string {
	s, _ := o["status"].(string)
	return s
}

type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ErrorType  string `json:"error_type,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
