package viewer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubOpenURL(t *testing.T, fn func(string) error) {
	t.Helper()
	orig := openURL
	t.Cleanup(func() { openURL = orig })
	openURL = fn
}

func TestBrowser_Open(t *testing.T) {
	var opened string
	stubOpenURL(t, func(u string) error {
		opened = u
		return nil
	})

	var buf bytes.Buffer
	require.NoError(t, NewBrowser(&buf).Open(context.Background(), "https://idp.example.com/authorize?request_uri=s1"))
	assert.Equal(t, "https://idp.example.com/authorize?request_uri=s1", opened)
	assert.Contains(t, buf.String(), "https://idp.example.com/authorize?request_uri=s1")
}

func TestBrowser_LaunchFailureIsNotAnError(t *testing.T) {
	stubOpenURL(t, func(string) error { return errors.New("xdg-open: not found") })

	var buf bytes.Buffer
	require.NoError(t, NewBrowser(&buf).Open(context.Background(), "https://x"))
	assert.Contains(t, buf.String(), "could not launch a browser")
}

func TestOpen_CancelledContext(t *testing.T) {
	stubOpenURL(t, func(string) error {
		t.Fatal("browser must not be launched")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.ErrorIs(t, NewBrowser(&buf).Open(ctx, "https://x"), context.Canceled)
	assert.ErrorIs(t, NewPrinter(&buf).Open(ctx, "https://x"), context.Canceled)
	assert.Empty(t, buf.String())
}

func TestPrinter_Open(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf).Open(context.Background(), "https://x/y"))
	assert.Contains(t, buf.String(), "https://x/y")
}
