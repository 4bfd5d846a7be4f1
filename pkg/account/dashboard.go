package account

import (
	"context"
	"strings"
	"time"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

type Mode string

const (
	ModeUser     Mode = "user"
	ModeBusiness Mode = "business"
)

const dashboardMaxAge = 30 * 24 * time.Hour

// DashboardMode returns the stored mode. Anything but "business" is ModeUser.
func DashboardMode(ctx context.Context, store cookiejar.Store) Mode {
	mode, _ := store.Get(ctx, session.CookieDashboardMode)
	if Mode(strings.ToLower(strings.TrimSpace(mode))) == ModeBusiness {
		return ModeBusiness
	}

	return ModeUser
}

// SetDashboardMode stores mode, coercing unknown values to ModeUser, and
// returns what was stored.
func SetDashboardMode(ctx context.Context, store cookiejar.Store, mode Mode) Mode {
	if mode != ModeBusiness {
		mode = ModeUser
	}
	store.Set(ctx, session.CookieDashboardMode, string(mode), cookiejar.Options{MaxAge: dashboardMaxAge})

	return mode
}

func BusinessRegistered(ctx context.Context, store cookiejar.Store) bool {
	v, _ := store.Get(ctx, session.CookieBusinessRegistered)
	return v == "true"
}

// MarkBusinessRegistered records that the user owns a business.
func MarkBusinessRegistered(ctx context.Context, store cookiejar.Store) {
	store.Set(ctx, session.CookieBusinessRegistered, "true", cookiejar.Options{MaxAge: dashboardMaxAge})
}

func (s *Service) DashboardMode(ctx context.Context) Mode {
	return DashboardMode(ctx, s.holder.Store())
}

func (s *Service) SetDashboardMode(ctx context.Context, mode Mode) Mode {
	return SetDashboardMode(ctx, s.holder.Store(), mode)
}

func (s *Service) BusinessRegistered(ctx context.Context) bool {
	return BusinessRegistered(ctx, s.holder.Store())
}
