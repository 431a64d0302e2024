// Package completion settles a session once the human has finished (or
// abandoned) the external authorization step. It is the only writer of
// terminal statuses.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/dmitrijs2005/kusogate/internal/sealer"
	"github.com/dmitrijs2005/kusogate/internal/sessions"
)

// Reasons written with MarkFailed by the handler itself.
const (
	ReasonUnsealFailed   = "token_unseal_failed"
	ReasonExchangeFailed = "token_exchange_failed"
)

// Exchanger binds the user's inbound token to the authorization session at
// the identity service.
type Exchanger interface {
	CompleteTokenAuth(ctx context.Context, sessionURI, userToken string) error
}

// SettledError is returned by Complete for a session that was already denied.
// It wraps common.ErrAlreadyTerminal.
type SettledError struct {
	SessionID string
	Status    models.Status
	Reason    string
}

func (e *SettledError) Error() string {
	return fmt.Sprintf("session %s already %s: %s", e.SessionID, e.Status, e.Reason)
}

func (e *SettledError) Unwrap() error { return common.ErrAlreadyTerminal }

type Handler struct {
	store     sessions.Store
	sealer    sealer.Sealer
	exchanger Exchanger
	logger    logging.Logger
}

func NewHandler(store sessions.Store, s sealer.Sealer, ex Exchanger, logger logging.Logger) *Handler {
	return &Handler{
		store:     store,
		sealer:    s,
		exchanger: ex,
		logger:    logger.With("module", "completion"),
	}
}

// Complete finishes the exchange for sessionID and writes exactly one
// terminal status. If another writer got there first the call logs and
// returns nil. A failed unseal or exchange is recorded as FAILED and also
// returned.
func (h *Handler) Complete(ctx context.Context, sessionID string) error {
	logger := h.logger.With("session_id", sessionID)

	s, err := h.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s.Status != models.StatusPending {
		logger.Info(ctx, "session already settled", "status", string(s.Status))
		return settled(s)
	}

	token, err := h.sealer.Unseal(ctx, s.EncryptedToken)
	if err != nil {
		h.settle(ctx, logger, sessionID, ReasonUnsealFailed)
		return fmt.Errorf("unseal token: %w", err)
	}
	defer common.WipeByteArray(token)

	if err := h.exchanger.CompleteTokenAuth(ctx, sessionID, string(token)); err != nil {
		logger.Warn(ctx, "token exchange failed", "error", err)
		h.settle(ctx, logger, sessionID, ReasonExchangeFailed+": "+err.Error())
		return fmt.Errorf("token exchange: %w", err)
	}

	err = h.store.MarkComplete(ctx, sessionID)
	if errors.Is(err, common.ErrAlreadyTerminal) {
		logger.Info(ctx, "lost race to settle session")
		if s, err := h.store.Get(ctx, sessionID); err == nil {
			return settled(s)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	logger.Info(ctx, "session completed")
	return nil
}

// Fail records a denial, e.g. the user declined consent.
func (h *Handler) Fail(ctx context.Context, sessionID, reason string) error {
	logger := h.logger.With("session_id", sessionID)

	err := h.store.MarkFailed(ctx, sessionID, reason)
	if errors.Is(err, common.ErrAlreadyTerminal) {
		logger.Info(ctx, "lost race to settle session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	logger.Info(ctx, "session failed", "reason", reason)
	return nil
}

// settled is nil for a completed session and a *SettledError for a failed one.
func settled(s *models.AuthSession) error {
	if s.Status != models.StatusFailed {
		return nil
	}
	return &SettledError{SessionID: s.SessionID, Status: s.Status, Reason: s.Error}
}

func (h *Handler) settle(ctx context.Context, logger logging.Logger, sessionID, reason string) {
	err := h.store.MarkFailed(ctx, sessionID, reason)
	switch {
	case errors.Is(err, common.ErrAlreadyTerminal):
		logger.Info(ctx, "lost race to settle session")
	case err != nil:
		logger.Error(ctx, "could not mark session failed", "error", err)
	}
}
