package vss

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocurse/robocurse/internal/state"
)

func TestRemoteClientRequiresCredentialInNonInteractiveCall(t *testing.T) {
	c := NewRemoteClient()
	err := c.do(context.Background(), http.MethodGet, "example", "/shares/x", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
}

func TestResolveShareDecodesLocalPath(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, `CORP\svc`, user)
		assert.Equal(t, "secret", pass)
		_ = json.NewEncoder(w).Encode(resolveShareResponse{LocalPath: `D:\shares\backups`})
	}))
	defer srv.Close()

	c := NewRemoteClient()
	c.http.HTTPClient = srv.Client()

	server := srv.Listener.Addr().String()
	localPath, err := c.ResolveShare(context.Background(), server, "backups", &state.Credential{Domain: "CORP", Username: "svc", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, `D:\shares\backups`, localPath)
}

func TestPingSucceedsWithoutCredential(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRemoteClient()
	c.http.HTTPClient = srv.Client()

	err := c.Ping(context.Background(), srv.Listener.Addr().String())
	require.NoError(t, err)
}

func TestPingTreatsAuthFailureAsReachable(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewRemoteClient()
	c.http.HTTPClient = srv.Client()

	err := c.Ping(context.Background(), srv.Listener.Addr().String())
	assert.NoError(t, err)
}

func TestPingFailsWhenUnreachable(t *testing.T) {
	c := NewRemoteClient()
	c.http.RetryMax = 0

	err := c.Ping(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
