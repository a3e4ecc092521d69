package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
)

type CalendarEvent struct {
	Summary       string
	Description   string
	Start         time.Time
	Duration      time.Duration
	Timezone      string
	Location      string
	AttendeeName  string
	AttendeeEmail string
}

type CalendarProvider interface {
	CreateEvent(ctx context.Context, grant *AccessGrant, event *CalendarEvent) (string, error)
}

type calendarProvider struct {
	timeout  time.Duration
	graphURL string
}

// NewCalendarProvider writes to the primary Google calendar or the default
// Outlook calendar depending on the grant's provider.
func NewCalendarProvider(timeout time.Duration) CalendarProvider {
	return &calendarProvider{timeout: timeout, graphURL: graphBaseURL}
}

// CreateEvent implements CalendarProvider.
func (p *calendarProvider) CreateEvent(ctx context.Context, grant *AccessGrant, event *CalendarEvent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var id string
	var err error
	switch grant.Provider {
	case models.ProviderGmail:
		id, err = p.createGoogle(ctx, grant, event)
	case models.ProviderOutlook:
		id, err = p.createGraph(ctx, grant, event)
	default:
		err = fmt.Errorf("unsupported calendar provider %q", grant.Provider)
	}
	if err != nil {
		return "", apperr.External(apperr.ReasonCalendarFailed, "failed to create calendar event", err)
	}

	log.Printf("📅 Created calendar event %s for %s", id, event.Start.Format(time.RFC3339))
	return id, nil
}

func (p *calendarProvider) createGoogle(ctx context.Context, grant *AccessGrant, event *CalendarEvent) (string, error) {
	srv, err := calendar.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(grant.Token)))
	if err != nil {
		return "", fmt.Errorf("failed to create calendar client: %w", err)
	}

	ev := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.Start.Add(event.Duration).Format(time.RFC3339),
			TimeZone: event.Timezone,
		},
	}
	if event.AttendeeEmail != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: event.AttendeeEmail, DisplayName: event.AttendeeName}}
	}

	created, err := srv.Events.Insert("primary", ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("events.insert failed: %w", err)
	}
	return created.Id, nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	Subject   string          `json:"subject"`
	Body      graphBody       `json:"body"`
	Start     graphDateTime   `json:"start"`
	End       graphDateTime   `json:"end"`
	Location  *graphLocation  `json:"location,omitempty"`
	Attendees []graphAttendee `json:"attendees,omitempty"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphAttendee struct {
	EmailAddress graphAddress `json:"emailAddress"`
	Type         string       `json:"type"`
}

// createGraph sends wall-clock times in UTC so the event lands at the same
// instant whatever zone name Graph expects.
func (p *calendarProvider) createGraph(ctx context.Context, grant *AccessGrant, event *CalendarEvent) (string, error) {
	const layout = "2006-01-02T15:04:05"
	start := event.Start.UTC()

	payload := graphEvent{
		Subject: event.Summary,
		Body:    graphBody{ContentType: "Text", Content: event.Description},
		Start:   graphDateTime{DateTime: start.Format(layout), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: start.Add(event.Duration).Format(layout), TimeZone: "UTC"},
	}
	if event.Location != "" {
		payload.Location = &graphLocation{DisplayName: event.Location}
	}
	if event.AttendeeEmail != "" {
		payload.Attendees = []graphAttendee{{
			EmailAddress: graphAddress{Address: event.AttendeeEmail, Name: event.AttendeeName},
			Type:         "required",
		}}
	}

	agent := fiber.Post(p.graphURL+"/me/events").
		Set(fiber.HeaderAuthorization, "Bearer "+grant.Token.AccessToken).
		JSON(payload)

	var created struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, agent, p.timeout, &created); err != nil {
		return "", fmt.Errorf("graph create event failed: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("graph returned no event id")
	}
	return created.ID, nil
}
