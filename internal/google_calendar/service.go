package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/user"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

var (
	ErrUserNotFound          = errors.New("calendar owner not found")
	ErrDecryptionFailed      = errors.New("stored google token cannot be decrypted")
	ErrMissingCalendarTokens = errors.New("calendar owner never granted google access")
	ErrMissingEventID        = errors.New("goal has no google calendar event to update")
)

// CalendarService talks to the Google Calendar API on behalf of one user.
type CalendarService interface {
	AddEventToCalendar(ctx context.Context, userID uuid.UUID, g *CalendarGoal) (string, error)
	UpdateEventInCalendar(ctx context.Context, userID uuid.UUID, g *CalendarGoal) error
	DeleteEventFromCalendar(ctx context.Context, userID uuid.UUID, googleEventID string) error
}

type calendarService struct {
	users user.UserRepository
	oauth *oauth2.Config
}

func NewCalendarService(users user.UserRepository, oauthConfig *oauth2.Config) CalendarService {
	return &calendarService{users: users, oauth: oauthConfig}
}

// storedToken rebuilds the user's Google token from the encrypted columns. Its
// expiry is in the past so the first use refreshes it.
func storedToken(u *user.User) (*oauth2.Token, error) {
	if u.EncryptedGoogleAccessToken == "" {
		return nil, ErrMissingCalendarTokens
	}

	tok := &oauth2.Token{TokenType: "Bearer", Expiry: time.Unix(0, 0)}
	var err error
	if tok.AccessToken, err = config.Decrypt(u.EncryptedGoogleAccessToken); err != nil {
		return nil, fmt.Errorf("%w: access token: %v", ErrDecryptionFailed, err)
	}
	if u.EncryptedGoogleRefreshToken != "" {
		if tok.RefreshToken, err = config.Decrypt(u.EncryptedGoogleRefreshToken); err != nil {
			return nil, fmt.Errorf("%w: refresh token: %v", ErrDecryptionFailed, err)
		}
	}
	return tok, nil
}

// clientFor returns a Calendar client whose token source writes refreshed access
// tokens back to the user row.
func (s *calendarService) clientFor(ctx context.Context, userID uuid.UUID) (*gcal.Service, error) {
	log := config.WithContext(ctx).WithField("calendar_user_id", userID)

	u, err := s.users.GetByID(userID.String())
	if err != nil {
		log.WithError(err).Error("Could not load calendar owner")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	tok, err := storedToken(u)
	if err != nil {
		log.WithError(err).Warn("Google token unavailable")
		return nil, err
	}

	src := &savingTokenSource{
		base: s.oauth.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: func(access string) { s.persistAccessToken(ctx, u, access) },
	}
	if _, err := src.Token(); err != nil {
		log.WithError(err).Error("Google token refresh rejected")
		return nil, err
	}

	srv, err := gcal.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		log.WithError(err).Error("Could not build Calendar API client")
		return nil, err
	}
	return srv, nil
}

type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(access string)
}

func (t *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := t.base.Token()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	changed := tok.AccessToken != t.last
	t.last = tok.AccessToken
	t.mu.Unlock()

	if changed {
		t.save(tok.AccessToken)
	}
	return tok, nil
}

func (s *calendarService) persistAccessToken(ctx context.Context, u *user.User, accessToken string) {
	log := config.WithContext(ctx)

	encrypted, err := config.Encrypt(accessToken)
	if err != nil {
		log.WithError(err).Warn("Could not encrypt refreshed Google token")
		return
	}
	u.EncryptedGoogleAccessToken = encrypted
	if err := s.users.Update(u); err != nil {
		log.WithError(err).Warn("Could not save refreshed Google token")
		return
	}
	log.Debug("Saved refreshed Google token")
}

// buildCalendarEvent returns nil when the goal has no date.
func buildCalendarEvent(g *CalendarGoal) *gcal.Event {
	if g.Date == nil || g.Date.IsZero() {
		return nil
	}

	day := time.Date(g.Date.Year(), g.Date.Month(), g.Date.Day(), 0, 0, 0, 0, time.UTC)
	description := fmt.Sprintf("%s %s goal", g.Category, g.Type)
	if g.Minutes != nil && *g.Minutes > 0 {
		description = fmt.Sprintf("%s, planned %d min", description, *g.Minutes)
	}

	return &gcal.Event{
		Summary:      g.Title,
		Description:  description,
		Start:        &gcal.EventDateTime{Date: day.Format("2006-01-02")},
		End:          &gcal.EventDateTime{Date: day.AddDate(0, 0, 1).Format("2006-01-02")},
		Transparency: "transparent",
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func (s *calendarService) AddEventToCalendar(ctx context.Context, userID uuid.UUID, g *CalendarGoal) (string, error) {
	event := buildCalendarEvent(g)
	if event == nil {
		config.WithContext(ctx).WithField("goal_id", g.ID).Debug("Undated goal, no calendar event created")
		return "", nil
	}

	srv, err := s.clientFor(ctx, userID)
	if err != nil {
		return "", err
	}
	created, err := srv.Events.Insert(primaryCalendar, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

// UpdateEventInCalendar rewrites the goal's event, or removes it when the goal lost its date.
func (s *calendarService) UpdateEventInCalendar(ctx context.Context, userID uuid.UUID, g *CalendarGoal) error {
	if g.GoogleCalendarEventID == nil || *g.GoogleCalendarEventID == "" {
		return ErrMissingEventID
	}
	eventID := *g.GoogleCalendarEventID

	event := buildCalendarEvent(g)
	if event == nil {
		return s.DeleteEventFromCalendar(ctx, userID, eventID)
	}

	srv, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := srv.Events.Update(primaryCalendar, eventID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update calendar event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEventFromCalendar treats an event already gone on Google, or a user
// without usable tokens, as deleted.
func (s *calendarService) DeleteEventFromCalendar(ctx context.Context, userID uuid.UUID, googleEventID string) error {
	log := config.WithContext(ctx).WithField("event_id", googleEventID)

	srv, err := s.clientFor(ctx, userID)
	switch {
	case errors.Is(err, ErrMissingCalendarTokens), errors.Is(err, ErrDecryptionFailed):
		log.Warn("No usable Google token, leaving calendar event in place")
		return nil
	case err != nil:
		return err
	}

	err = srv.Events.Delete(primaryCalendar, googleEventID).Context(ctx).Do()
	if isGone(err) {
		log.Info("Calendar event already removed on Google")
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete calendar event %s: %w", googleEventID, err)
	}
	return nil
}

func isGone(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
