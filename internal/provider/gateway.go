package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// codeElicitationRequired is the MCP JSON-RPC error code a gateway returns
// when the target needs a user-approved OAuth grant first.
const codeElicitationRequired = -32042

const maxResponseBytes = 1 << 20

// RPCError is a JSON-RPC error other than "authorization required".
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gateway rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Elicitations []struct {
				URL string `json:"url"`
			} `json:"elicitations"`
		} `json:"data"`
	} `json:"error"`
}

// GatewayConfig describes the MCP gateway and the tool used as the
// authorization probe.
type GatewayConfig struct {
	Endpoint string
	// Tool is the fully qualified tool name, "<target>___<tool>".
	Tool      string
	Arguments map[string]any
	Timeout   time.Duration
}

// Gateway is a Provider backed by an MCP gateway. It calls the probe tool
// with the inbound bearer token; the gateway either runs it (already
// authorized) or answers with an elicitation carrying the authorization URL.
type Gateway struct {
	cfg    GatewayConfig
	token  string
	client *http.Client
	logger logging.Logger
	now    func() time.Time
}

func NewGateway(cfg GatewayConfig, token string, client *http.Client, logger logging.Logger) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		cfg:    cfg,
		token:  token,
		client: client,
		logger: logger.With("module", "gateway"),
		now:    time.Now,
	}
}

// checkTokenExpiry rejects a JWT whose exp is in the past. Opaque tokens
// are passed through; the gateway is the one that verifies signatures.
func (g *Gateway) checkTokenExpiry() error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(g.token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !g.now().Before(claims.ExpiresAt.Time) {
		return common.ErrTokenExpired
	}
	return nil
}

func (g *Gateway) call(ctx context.Context) (*rpcResponse, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  rpcParams{Name: g.cfg.Tool, Arguments: g.cfg.Arguments},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+g.token)
	req.Header.Set(common.MCPProtocolVersionHeaderName, common.MCPProtocolVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("gateway http %d: %s: %w", resp.StatusCode, truncate(string(raw), 200), common.ErrProtocol)
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gateway response: %w: %w", common.ErrProtocol, err)
	}
	return &out, nil
}

func (g *Gateway) BeginAuthorization(ctx context.Context, scopes []string) (*Grant, error) {
	if err := g.checkTokenExpiry(); err != nil {
		return nil, err
	}

	resp, err := g.call(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Error == nil {
		g.logger.Debug(ctx, "gateway already authorized", "tool", g.cfg.Tool)
		return &Grant{AlreadyAuthorized: true}, nil
	}
	if resp.Error.Code != codeElicitationRequired {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	el := resp.Error.Data.Elicitations
	if len(el) == 0 || el[0].URL == "" {
		return nil, fmt.Errorf("elicitation without url: %w", common.ErrProtocol)
	}
	sessionID, err := SessionIDFromURL(el[0].URL)
	if err != nil {
		return nil, err
	}

	g.logger.Info(ctx, "authorization required", "session_id", sessionID, "scopes", strings.Join(scopes, " "))
	return &Grant{AuthURL: el[0].URL, SessionID: sessionID}, nil
}

// CompleteExchange re-runs the probe. The gateway keeps the outbound token
// itself, so the delegated credential the agent uses is its own bearer
// token, valid for the gateway from now on.
func (g *Gateway) CompleteExchange(ctx context.Context, sessionID string) (string, error) {
	resp, err := g.call(ctx)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		if resp.Error.Code == codeElicitationRequired {
			return "", fmt.Errorf("session %s approved but gateway still asks for authorization: %w", sessionID, common.ErrProtocol)
		}
		return "", &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return g.token, nil
}

// IsRPCError reports whether err carries a gateway JSON-RPC error.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
