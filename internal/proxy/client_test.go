package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Direct(t *testing.T) {
	c, err := NewClient("", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Nil(t, c.Transport)
}

func TestNewClient_Socks(t *testing.T) {
	c, err := NewClient("127.0.0.1:1080", 0)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, c.Timeout)
	_, ok := c.Transport.(*http.Transport)
	assert.True(t, ok)
}
