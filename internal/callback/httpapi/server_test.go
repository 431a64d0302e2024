package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/completion"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeCompleter struct {
	completeErr error
	failErr     error
	completed   []string
	failed      []string
}

func (f *fakeCompleter) Complete(_ context.Context, id string) error {
	f.completed = append(f.completed, id)
	return f.completeErr
}

func (f *fakeCompleter) Fail(_ context.Context, id, reason string) error {
	f.failed = append(f.failed, id+"|"+reason)
	return f.failErr
}

type fakeInbound struct {
	got string
	err error
}

func (f *fakeInbound) CompleteUserAuth(_ context.Context, sessionURI, userID string) error {
	f.got = sessionURI + "|" + userID
	return f.err
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestCallback_Complete(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewServer(":0", fc, nil, logging.Discard())

	w := do(t, s, "/callback?session_id=sess-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization complete")
	assert.Equal(t, []string{"sess-1"}, fc.completed)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestCallback_Declined(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewServer(":0", fc, nil, logging.Discard())

	w := do(t, s, "/callback?session_id=sess-2&error=access_denied")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "declined")
	assert.Equal(t, []string{"sess-2|access_denied"}, fc.failed)
	assert.Empty(t, fc.completed)
}

func TestCallback_AlreadyDeniedShowsDeclinedPage(t *testing.T) {
	fc := &fakeCompleter{completeErr: &completion.SettledError{
		SessionID: "sess-3",
		Status:    models.StatusFailed,
		Reason:    "access_denied",
	}}
	s := NewServer(":0", fc, nil, logging.Discard())

	w := do(t, s, "/callback?session_id=sess-3")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization declined")
	assert.NotContains(t, w.Body.String(), "Authorization complete")
}

func TestCallback_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		code   int
	}{
		{"missing session", "/callback", nil, http.StatusBadRequest},
		{"expired", "/callback?session_id=old", fmt.Errorf("load session: %w", common.ErrorNotFound), http.StatusGone},
		{"exchange failed", "/callback?session_id=s", errors.New("token exchange: denied"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", &fakeCompleter{completeErr: tt.err}, nil, logging.Discard())
			w := do(t, s, tt.target)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestInbound(t *testing.T) {
	fi := &fakeInbound{}
	s := NewServer(":0", &fakeCompleter{}, fi, logging.Discard())

	w := do(t, s, "/inbound?session_id=in-1&user_id=u-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in-1|u-1", fi.got)

	w = do(t, s, "/inbound?session_id=in-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, NewServer(":0", &fakeCompleter{}, nil, logging.Discard()), "/inbound?session_id=in-1&user_id=u-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	s := NewServer(":0", &fakeCompleter{}, nil, logging.Discard())
	w := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRun_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewServer(addr, &fakeCompleter{}, nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
