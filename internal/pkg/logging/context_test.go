package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestContextWithLogger(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	assert.Same(t, logger, FromContext(ContextWithLogger(ctx, logger)))

	// nil logger leaves the context untouched
	assert.Equal(t, ctx, ContextWithLogger(ctx, nil))
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	assert.Same(t, zap.L(), FromContext(context.Background()))
	assert.Same(t, zap.L(), FromContext(nil)) //nolint:staticcheck
}

func TestWithFields_DerivesFromCarriedLogger(t *testing.T) {
	ctx := ContextWithLogger(context.Background(), zap.NewNop())
	derived := WithFields(ctx, zap.String("owner_id", "alice"))

	assert.NotNil(t, FromContext(derived))
	assert.NotEqual(t, ctx, derived)
}
