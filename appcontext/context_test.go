package appcontext

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "hello")

	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))
}
