package account

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	draftVersion = 1
	draftMaxAge  = 7 * 24 * time.Hour
)

// Draft is the unfinished complete-profile form.
type Draft struct {
	Version   int       `json:"version" yaml:"-"`
	FirstName string    `json:"first_name,omitempty" yaml:"first_name"`
	LastName  string    `json:"last_name,omitempty" yaml:"last_name"`
	Email     string    `json:"email,omitempty" yaml:"email"`
	DOB       string    `json:"dob,omitempty" yaml:"dob"`
	Gender    string    `json:"gender,omitempty" yaml:"gender"`
	PlaceID   string    `json:"place_id,omitempty" yaml:"place_id"`
	CityName  string    `json:"city_name,omitempty" yaml:"city_name"`
	SeanebID  string    `json:"seaneb_id,omitempty" yaml:"seaneb_id"`
	SavedAt   time.Time `json:"saved_at" yaml:"-"`
}

// Profile turns the draft into a signup profile.
func (d Draft) Profile() Profile {
	return Profile{
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		DOB:       d.DOB,
		SeanebID:  d.SeanebID,
		PlaceID:   d.PlaceID,
		Gender:    d.Gender,
	}
}

// SaveDraft replaces the stored draft.
func (s *Service) SaveDraft(ctx context.Context, d Draft) {
	d.Version = draftVersion
	d.SavedAt = s.holder.Now()

	cookiejar.SetJSON(ctx, s.holder.Store(), session.CookieRegFormDraft, d, cookiejar.Options{MaxAge: draftMaxAge})
}

// LoadDraft returns the stored draft. A draft of another version or one that
// cannot be decoded is removed and reported as absent.
func (s *Service) LoadDraft(ctx context.Context) (Draft, bool) {
	store := s.holder.Store()
	if _, ok := store.Get(ctx, session.CookieRegFormDraft); !ok {
		return Draft{}, false
	}

	d, ok := cookiejar.GetJSON[Draft](ctx, store, session.CookieRegFormDraft)
	if !ok || d.Version != draftVersion {
		slogctx.Warn(ctx, "Discarding unreadable registration draft", "version", d.Version)
		store.Remove(ctx, session.CookieRegFormDraft)
		return Draft{}, false
	}

	return d, true
}

func (s *Service) DeleteDraft(ctx context.Context) {
	s.holder.Store().Remove(ctx, session.CookieRegFormDraft)
}
