package notion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClient_DefaultRateLimit(t *testing.T) {
	c := NewClient("secret").(*notionClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(3), c.limiter.Limit())
}

func TestWithRateLimit_Override(t *testing.T) {
	c := NewClient("secret", WithRateLimit(10)).(*notionClient)
	assert.Equal(t, rate.Limit(10), c.limiter.Limit())

	c = NewClient("secret", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
}

func TestCreatePage_CancelledContext(t *testing.T) {
	c := NewClient("secret").(*notionClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreatePage(ctx, nil)
	require.Error(t, err)
}
