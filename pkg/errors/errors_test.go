package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorFormatting(t *testing.T) {
	err := NewNetwork("portal", "request failed", stderrors.New("connection reset"))
	assert.Equal(t, "[network] portal: request failed - connection reset", err.Error())

	err = NewStatus("portal", 503)
	assert.Equal(t, "[status] portal: unexpected status code: 503", err.Error())
}

func TestScrapeErrorIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("portal", "x", nil).IsRetryable())
	assert.True(t, NewStatus("portal", 500).IsRetryable())
	assert.True(t, NewRateLimit("portal", time.Minute).IsRetryable())
	assert.False(t, NewParsing("extractor", "x", nil).IsRetryable())
	assert.False(t, NewExport("csv", "x", nil).IsRetryable())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("post: %w", NewStatus("portal", 503))))
	assert.True(t, IsRetryable(stderrors.New("unexpected EOF")))
	assert.False(t, IsRetryable(fmt.Errorf("decode: %w", NewParsing("portal", "bad body", nil))))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(NewNetwork("portal", "request failed", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(nil))
}

func TestTransientFetchError(t *testing.T) {
	last := NewStatus("portal", 502)
	err := fmt.Errorf("count pages: %w", &TransientFetchError{
		Endpoint: "GetCurrentPublicTenderPageCount",
		Attempts: 4,
		Err:      last,
	})

	assert.True(t, stderrors.Is(err, ErrRetryExhausted))
	assert.True(t, IsTransient(err))
	assert.True(t, IsType(err, ErrorTypeStatus))
	assert.Contains(t, err.Error(), "after 4 attempts")

	assert.False(t, IsTransient(NewParsing("extractor", "missing header", nil)))
}
