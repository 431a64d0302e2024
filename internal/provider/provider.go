// Package provider talks to the party that decides whether the agent already
// holds delegated access, and hands out the authorization URL when it does not.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/kusogate/internal/common"
)

// Grant is the typed result of BeginAuthorization.
type Grant struct {
	AlreadyAuthorized bool
	// AuthURL and SessionID are set only when AlreadyAuthorized is false.
	AuthURL   string
	SessionID string
}

type Provider interface {
	BeginAuthorization(ctx context.Context, scopes []string) (*Grant, error)
	// CompleteExchange returns the delegated token once the session
	// identified by sessionID has been approved.
	CompleteExchange(ctx context.Context, sessionID string) (string, error)
}

const sessionIDParam = "request_uri"

// SessionIDFromURL extracts the session id carried in the request_uri query
// parameter of an authorization URL.
func SessionIDFromURL(authURL string) (string, error) {
	u, err := parseAuthURL(authURL)
	if err != nil {
		return "", err
	}

	id := u.Query().Get(sessionIDParam)
	if id == "" {
		return "", fmt.Errorf("authorization url has no %s: %w", sessionIDParam, common.ErrProtocol)
	}
	return id, nil
}

// CheckAuthURL reports whether authURL is an absolute URL a browser can open.
func CheckAuthURL(authURL string) error {
	_, err := parseAuthURL(authURL)
	return err
}

func parseAuthURL(authURL string) (*url.URL, error) {
	if authURL == "" {
		return nil, fmt.Errorf("authorization url is empty: %w", common.ErrProtocol)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return nil, fmt.Errorf("authorization url: %w: %w", common.ErrProtocol, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("authorization url %q is not absolute: %w", authURL, common.ErrProtocol)
	}
	return u, nil
}

// InboundCallbackURL is the URL the identity service redirects to after the
// user signs in. The user id lets the callback find the workload identity.
func InboundCallbackURL(base, userID string) string {
	u := strings.TrimRight(base, "/") + "/inbound"
	if userID == "" {
		return u
	}
	return u + "?" + url.Values{"user_id": {userID}}.Encode()
}
