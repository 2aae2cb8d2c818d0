package services

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/letya999/duty-bot/db"
)

// CalendarSync mirrors assignments into an external calendar. The calendar is
// a one-way export, never a source of truth.
type CalendarSync interface {
	SyncAssignment(ctx context.Context, a db.Assignment) error
}

// GoogleCalendarSync exports duty days as all-day events.
type GoogleCalendarSync struct {
	calendarID string
	service    *calendar.Service
}

func NewGoogleCalendarSync(ctx context.Context, calendarID, credentialsFile string) (*GoogleCalendarSync, error) {
	svc, err := calendar.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	return &GoogleCalendarSync{calendarID: calendarID, service: svc}, nil
}

func (g *GoogleCalendarSync) SyncAssignment(ctx context.Context, a db.Assignment) error {
	date := a.Date.Format(db.DateLayout)
	event := &calendar.Event{
		Summary:     fmt.Sprintf("On duty: %s", a.PersonID),
		Description: fmt.Sprintf("Team %s duty assignment (%s mode)", a.TeamID, a.Mode),
		Start:       &calendar.EventDateTime{Date: date},
		End:         &calendar.EventDateTime{Date: a.Date.AddDate(0, 0, 1).Format(db.DateLayout)},
	}

	_, err := g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return nil
}
