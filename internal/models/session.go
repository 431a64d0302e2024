// Package models defines the records exchanged between the rendezvous client,
// the session stores and the completion handler.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
)

// Status is the lifecycle state of an AuthSession.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// AuthSession is one pending or finished authorization attempt.
//
// EncryptedToken is always the sealed (base64) form of the inbound token;
// Error is set only when Status is FAILED.
type AuthSession struct {
	SessionID      string
	EncryptedToken string
	Status         Status
	Error          string
	ExpiresAt      time.Time
}

// Expired reports whether the session is past its expiry at now. Expiry is
// kept in whole epoch seconds, the unit every persisted form stores, so all
// backends agree on the instant a session disappears.
func (s *AuthSession) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt.Unix()
}

// ExpiresAtSecond is ExpiresAt truncated to the second it is stored as.
func (s *AuthSession) ExpiresAtSecond() time.Time {
	return time.Unix(s.ExpiresAt.Unix(), 0)
}

// Validate checks the invariants a new session must satisfy before Put.
func (s *AuthSession) Validate(now time.Time) error {
	switch {
	case s.SessionID == "":
		return fmt.Errorf("%w: missing session_id", common.ErrInvalidSession)
	case s.EncryptedToken == "":
		return fmt.Errorf("%w: missing encrypted token", common.ErrInvalidSession)
	case s.Status != StatusPending:
		return fmt.Errorf("%w: new session must be %s, got %q", common.ErrInvalidSession, StatusPending, s.Status)
	case s.Expired(now):
		return fmt.Errorf("%w: expires_at must be at least one whole second in the future", common.ErrInvalidSession)
	}
	return nil
}

// Clone returns a copy so stores never hand out their internal records.
func (s *AuthSession) Clone() *AuthSession {
	c := *s
	return &c
}
