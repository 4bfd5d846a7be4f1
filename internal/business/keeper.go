package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/config"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const defaultKeeperInterval = time.Minute

// Keeper keeps a stored session usable while nobody is making requests: it
// renews access tokens before they expire and drops the session once its
// window has ended.
type Keeper struct {
	api    *apiclient.Client
	holder *session.Holder
	margin time.Duration
}

// NewKeeper creates a keeper renewing tokens that expire within margin.
func NewKeeper(api *apiclient.Client, margin time.Duration) *Keeper {
	return &Keeper{
		api:    api,
		holder: api.Holder(),
		margin: margin,
	}
}

// KeeperMain starts the keeper loop
func KeeperMain(ctx context.Context, cfg *config.Config) error {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise the client: %w", err)
	}
	defer client.Close()

	interval := cfg.Keeper.Interval
	if interval <= 0 {
		interval = defaultKeeperInterval
	}
	margin := max(cfg.Session.RefreshMargin, interval)

	return NewKeeper(client.API, margin).Run(ctx, interval)
}

// Run ticks every interval until ctx is done.
func (k *Keeper) Run(ctx context.Context, interval time.Duration) error {
	c := time.Tick(interval)
	for {
		if err := k.Tick(ctx); err != nil {
			slogctx.Error(ctx, "Error during session keeping", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}

// Tick runs a single pass. A session that cannot be renewed any more is not
// an error; it is cleared and the user has to log in again.
func (k *Keeper) Tick(ctx context.Context) error {
	if k.holder.SessionExpired(ctx) {
		slogctx.Info(ctx, "Session window ended, clearing session")
		k.holder.ClearAll(ctx)
		return nil
	}

	_, started := k.holder.SessionStartTime(ctx)
	token := k.holder.AccessToken(ctx)
	switch {
	case !started && token == "":
		slogctx.Debug(ctx, "No session to keep")
		return nil
	case token != "" && !k.holder.NeedsRefresh(ctx, k.margin):
		return nil
	}

	slogctx.Info(ctx, "Renewing access token", "has_access_token", token != "")
	if _, err := k.api.Refresh(ctx); err != nil {
		if apiclient.IsSessionExpired(err) {
			slogctx.Warn(ctx, "Session could not be renewed", "error", err)
			return nil
		}

		return fmt.Errorf("renewing access token: %w", err)
	}

	return nil
}
