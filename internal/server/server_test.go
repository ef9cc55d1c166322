package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/cypherguard/internal/config"
)

func TestServer_StartReturnsNilAfterShutdown(t *testing.T) {
	srv := New(discardLogger(), config.HTTPConfig{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		return srv.Shutdown(ctx) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
