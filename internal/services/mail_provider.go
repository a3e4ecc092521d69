package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"mime"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

const gmailRecentQuery = "in:inbox newer_than:1d"

// OutboundEmail is a message ready for the provider. InReplyTo and ThreadID
// are set when answering an existing conversation.
type OutboundEmail struct {
	From      string
	To        string
	Subject   string
	Body      string
	ThreadID  string
	InReplyTo string
}

type SentMessage struct {
	MessageID string
	ThreadID  string
}

// InboundMessage is one received email, normalized across the webhook and
// both providers.
type InboundMessage struct {
	MessageID  string
	ThreadID   string
	InReplyTo  string
	References []string
	Sender     string
	Subject    string
	Body       string
}

type MailProvider interface {
	Send(ctx context.Context, grant *AccessGrant, email *OutboundEmail) (*SentMessage, error)
	FetchRecent(ctx context.Context, grant *AccessGrant, limit int) ([]InboundMessage, error)
}

type mailProvider struct {
	timeout  time.Duration
	graphURL string
}

// NewMailProvider sends through Gmail or Microsoft Graph depending on the
// grant's provider.
func NewMailProvider(timeout time.Duration) MailProvider {
	return &mailProvider{timeout: timeout, graphURL: graphBaseURL}
}

// Send implements MailProvider.
func (p *mailProvider) Send(ctx context.Context, grant *AccessGrant, email *OutboundEmail) (*SentMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var sent *SentMessage
	var err error
	switch grant.Provider {
	case models.ProviderGmail:
		sent, err = p.sendGmail(ctx, grant, email)
	case models.ProviderOutlook:
		sent, err = p.sendGraph(ctx, grant, email)
	default:
		err = fmt.Errorf("unsupported email provider %q", grant.Provider)
	}
	if err != nil {
		return nil, apperr.External(apperr.ReasonSendFailed, fmt.Sprintf("failed to send email to %s", email.To), err)
	}

	log.Printf("📧 Sent %q to %s via %s", email.Subject, email.To, grant.Provider)
	return sent, nil
}

// FetchRecent implements MailProvider.
func (p *mailProvider) FetchRecent(ctx context.Context, grant *AccessGrant, limit int) ([]InboundMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	switch grant.Provider {
	case models.ProviderGmail:
		return p.fetchGmail(ctx, grant, limit)
	case models.ProviderOutlook:
		return p.fetchGraph(ctx, grant, limit)
	}
	return nil, fmt.Errorf("unsupported email provider %q", grant.Provider)
}

func gmailService(ctx context.Context, grant *AccessGrant) (*gmail.Service, error) {
	srv, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(grant.Token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return srv, nil
}

func (p *mailProvider) sendGmail(ctx context.Context, grant *AccessGrant, email *OutboundEmail) (*SentMessage, error) {
	srv, err := gmailService(ctx, grant)
	if err != nil {
		return nil, err
	}

	raw := buildRFC822(email, newMessageID(email.From))
	msg, err := srv.Users.Messages.Send("me", &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: email.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail send failed: %w", err)
	}

	return &SentMessage{MessageID: msg.Id, ThreadID: msg.ThreadId}, nil
}

func (p *mailProvider) fetchGmail(ctx context.Context, grant *AccessGrant, limit int) ([]InboundMessage, error) {
	srv, err := gmailService(ctx, grant)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Messages.List("me").Q(gmailRecentQuery).MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail messages: %w", err)
	}

	messages := make([]InboundMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		full, err := srv.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			log.Printf("⚠️ Failed to fetch gmail message %s: %v", ref.Id, err)
			continue
		}

		headers := parseHeaders(full)
		sender := headers["from"]
		if sameAddress(sender, grant.SenderEmail) {
			continue
		}

		messageID := headers["message-id"]
		if messageID == "" {
			messageID = full.Id
		}

		messages = append(messages, InboundMessage{
			MessageID:  messageID,
			ThreadID:   full.ThreadId,
			InReplyTo:  headers["in-reply-to"],
			References: strings.Fields(headers["references"]),
			Sender:     sender,
			Subject:    headers["subject"],
			Body:       getEmailBody(full.Payload),
		})
	}

	return messages, nil
}

func parseHeaders(msg *gmail.Message) map[string]string {
	headers := make(map[string]string)
	if msg.Payload == nil {
		return headers
	}
	for _, h := range msg.Payload.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}
	return headers
}

// getEmailBody prefers the first text/plain part anywhere in the tree.
func getEmailBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if d, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(d)
		}
	}
	for _, child := range part.Parts {
		if body := getEmailBody(child); body != "" {
			return body
		}
	}
	if part.Body != nil && part.Body.Data != "" && len(part.Parts) == 0 {
		if d, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(d)
		}
	}
	return ""
}

type graphRecipient struct {
	EmailAddress graphAddress `json:"emailAddress"`
}

type graphAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	Subject           string           `json:"subject"`
	Body              graphBody        `json:"body"`
	ToRecipients      []graphRecipient `json:"toRecipients"`
	InternetMessageID string           `json:"internetMessageId,omitempty"`
}

// sendGraph posts to /me/sendMail. Graph answers 202 with no body, so the
// client-generated Internet message id stands in as the provider id.
func (p *mailProvider) sendGraph(ctx context.Context, grant *AccessGrant, email *OutboundEmail) (*SentMessage, error) {
	messageID := newMessageID(email.From)
	payload := fiber.Map{
		"message": graphMessage{
			Subject:           email.Subject,
			Body:              graphBody{ContentType: "Text", Content: email.Body},
			ToRecipients:      []graphRecipient{{EmailAddress: graphAddress{Address: email.To}}},
			InternetMessageID: messageID,
		},
		"saveToSentItems": true,
	}

	agent := fiber.Post(p.graphURL+"/me/sendMail").
		Set(fiber.HeaderAuthorization, "Bearer "+grant.Token.AccessToken).
		JSON(payload)
	if err := doJSON(ctx, agent, p.timeout, nil); err != nil {
		return nil, fmt.Errorf("graph sendMail failed: %w", err)
	}

	return &SentMessage{MessageID: messageID, ThreadID: email.ThreadID}, nil
}

type graphInboxResponse struct {
	Value []struct {
		ID                     string         `json:"id"`
		InternetMessageID      string         `json:"internetMessageId"`
		ConversationID         string         `json:"conversationId"`
		Subject                string         `json:"subject"`
		Body                   graphBody      `json:"body"`
		From                   graphRecipient `json:"from"`
		InternetMessageHeaders []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"internetMessageHeaders"`
	} `json:"value"`
}

func (p *mailProvider) fetchGraph(ctx context.Context, grant *AccessGrant, limit int) ([]InboundMessage, error) {
	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	query := url.Values{}
	query.Set("$top", fmt.Sprint(limit))
	query.Set("$filter", "receivedDateTime ge "+since)
	query.Set("$select", "id,internetMessageId,conversationId,subject,body,from,internetMessageHeaders")

	agent := fiber.Get(p.graphURL+"/me/mailFolders/inbox/messages?"+query.Encode()).
		Set(fiber.HeaderAuthorization, "Bearer "+grant.Token.AccessToken).
		Set("Prefer", `outlook.body-content-type="text"`)

	var resp graphInboxResponse
	if err := doJSON(ctx, agent, p.timeout, &resp); err != nil {
		return nil, fmt.Errorf("failed to list outlook messages: %w", err)
	}

	messages := make([]InboundMessage, 0, len(resp.Value))
	for _, m := range resp.Value {
		sender := m.From.EmailAddress.Address
		if sameAddress(sender, grant.SenderEmail) {
			continue
		}

		msg := InboundMessage{
			MessageID: firstNonEmpty(m.InternetMessageID, m.ID),
			ThreadID:  m.ConversationID,
			Sender:    sender,
			Subject:   m.Subject,
			Body:      m.Body.Content,
		}
		for _, h := range m.InternetMessageHeaders {
			switch strings.ToLower(h.Name) {
			case "in-reply-to":
				msg.InReplyTo = h.Value
			case "references":
				msg.References = strings.Fields(h.Value)
			}
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func buildRFC822(email *OutboundEmail, messageID string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", email.From)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	if email.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", email.InReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", email.InReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.Body)
	return []byte(b.String())
}

func newMessageID(from string) string {
	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if i := strings.LastIndex(addr.Address, "@"); i != -1 {
			domain = addr.Address[i+1:]
		}
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

// addressOf returns the bare address of a From header value.
func addressOf(value string) string {
	if addr, err := mail.ParseAddress(value); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func sameAddress(a, b string) bool {
	return a != "" && b != "" && addressOf(a) == addressOf(b)
}
