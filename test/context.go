// Package test contains helpers shared by unit tests.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/ridge/quartz/tlog"
)

// Context returns a new testing context carrying a test logger.
//
// Code under test that logs through tlog.Get writes into the test output.
func Context(t *testing.T) context.Context {
	return tlog.WithLogger(context.Background(), tlog.NewForTesting(t))
}

// ContextWithTimeout is a version of Context with a timeout.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(Context(t), timeout)
	t.Cleanup(cancel)
	return ctx
}
