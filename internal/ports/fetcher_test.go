package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &NetworkError{URL: "https://example.invalid/meta.zip", Err: cause}
	assert.Equal(t, "fetching https://example.invalid/meta.zip: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	withStatus := &NetworkError{URL: "u", StatusCode: 503, Err: cause}
	assert.Contains(t, withStatus.Error(), "HTTP 503")

	assert.True(t, IsNetworkError(fmt.Errorf("refresh: %w", err)))
	assert.False(t, IsNetworkError(cause))
}

func TestReplyf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Reply{Tone: ToneWarn, Text: "plugin foo"}, Replyf(ToneWarn, "plugin %s", "foo"))
	assert.Equal(t, Reply{Tone: ToneInfo, Text: "100%"}, Replyf(ToneInfo, "100%"))
}
