// Package rendezvous drives one authorization attempt: it asks the provider
// for an authorization URL, stashes the sealed inbound token under the
// provider's session id, shows the URL to the human and waits for the
// completion handler to settle the session.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/dmitrijs2005/kusogate/internal/pollx"
	"github.com/dmitrijs2005/kusogate/internal/provider"
	"github.com/dmitrijs2005/kusogate/internal/sealer"
	"github.com/dmitrijs2005/kusogate/internal/sessions"
	"github.com/dmitrijs2005/kusogate/internal/viewer"
)

// Config holds the knobs of a Client. SessionTTL and PollTimeout are
// independent: a session may expire while a poll is still running, which
// ends the poll as TimedOut.
type Config struct {
	// KeyID selects the sealing key.
	KeyID  string
	Scopes []string

	SessionTTL   time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultConfig returns the production timings; KeyID is left empty.
func DefaultConfig() Config {
	return Config{
		SessionTTL:   5 * time.Minute,
		PollInterval: 2 * time.Second,
		PollTimeout:  120 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.KeyID == "":
		return errors.New("rendezvous: key id is required")
	case c.SessionTTL < time.Second:
		return errors.New("rendezvous: session ttl must be at least one second")
	case c.PollInterval <= 0:
		return errors.New("rendezvous: poll interval must be positive")
	case c.PollTimeout <= 0:
		return errors.New("rendezvous: poll timeout must be positive")
	}
	return nil
}

// Client never changes the status of an existing session and never deletes
// one; an abandoned PENDING session is left to expire.
type Client struct {
	cfg      Config
	provider provider.Provider
	sealer   sealer.Sealer
	store    sessions.Store
	opener   viewer.Opener
	logger   logging.Logger
	now      func() time.Time
}

func NewClient(cfg Config, p provider.Provider, s sealer.Sealer, st sessions.Store, o viewer.Opener, logger logging.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		provider: p,
		sealer:   s,
		store:    st,
		opener:   o,
		logger:   logger.With("module", "rendezvous"),
		now:      time.Now,
	}, nil
}

// Authorize runs one attempt. Errors are returned for protocol, sealing and
// store failures; Denied and TimedOut come back as an Outcome. Cancelling
// ctx ends the wait promptly with TimedOut.
func (c *Client) Authorize(ctx context.Context, requiredToken string) (*Outcome, error) {
	grant, err := c.provider.BeginAuthorization(ctx, c.cfg.Scopes)
	if err != nil {
		return nil, fmt.Errorf("begin authorization: %w", err)
	}

	if grant.AlreadyAuthorized {
		token, err := c.provider.CompleteExchange(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("complete exchange: %w", err)
		}
		c.logger.Info(ctx, "already authorized")
		return &Outcome{Kind: Authorized, Token: token}, nil
	}

	if grant.SessionID == "" {
		if grant.SessionID, err = provider.SessionIDFromURL(grant.AuthURL); err != nil {
			return nil, err
		}
	} else if err := provider.CheckAuthURL(grant.AuthURL); err != nil {
		return nil, err
	}
	logger := c.logger.With("session_id", grant.SessionID)

	if err := c.stash(ctx, grant.SessionID, requiredToken); err != nil {
		return nil, err
	}
	logger.Info(ctx, "session stored", "ttl", c.cfg.SessionTTL)

	if err := c.opener.Open(ctx, grant.AuthURL); err != nil {
		if ctx.Err() != nil {
			return &Outcome{Kind: TimedOut, SessionID: grant.SessionID}, nil
		}
		return nil, fmt.Errorf("present authorization url: %w", err)
	}

	return c.AwaitSession(ctx, grant.SessionID)
}

func (c *Client) stash(ctx context.Context, sessionID, token string) error {
	plaintext := []byte(token)
	defer common.WipeByteArray(plaintext)

	sealed, err := c.sealer.Seal(ctx, c.cfg.KeyID, plaintext)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	err = c.store.Put(ctx, &models.AuthSession{
		SessionID:      sessionID,
		EncryptedToken: sealed,
		Status:         models.StatusPending,
		ExpiresAt:      c.now().Add(c.cfg.SessionTTL),
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// AwaitSession polls an existing session until it settles. A session that is
// missing or has expired counts as TimedOut.
func (c *Client) AwaitSession(ctx context.Context, sessionID string) (*Outcome, error) {
	logger := c.logger.With("session_id", sessionID)
	out := &Outcome{Kind: TimedOut, SessionID: sessionID}

	err := pollx.Until(ctx, c.cfg.PollInterval, c.cfg.PollTimeout, func(ctx context.Context) (bool, error) {
		s, err := c.store.Get(ctx, sessionID)
		if errors.Is(err, common.ErrorNotFound) {
			logger.Warn(ctx, "session vanished while polling")
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("poll session: %w", err)
		}

		switch s.Status {
		case models.StatusComplete:
			out.Kind = Authorized
			return true, nil
		case models.StatusFailed:
			out.Kind = Denied
			out.Reason = s.Error
			return true, nil
		}
		return false, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, pollx.ErrTimeout), ctx.Err() != nil:
		out.Kind = TimedOut
	default:
		return nil, err
	}

	if out.Kind == Authorized {
		token, err := c.provider.CompleteExchange(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("complete exchange: %w", err)
		}
		out.Token = token
	}

	logger.Info(ctx, "authorization settled", "outcome", out.Kind.String())
	return out, nil
}
