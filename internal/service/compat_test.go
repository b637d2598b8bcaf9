package service

import (
	"context"
	"testing"
)

// testContext is a Go 1.21-compatible stand-in for testing.T.Context (Go
// 1.24+): it returns a context that is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
