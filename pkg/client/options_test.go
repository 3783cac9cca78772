package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 60 * time.Second}
	c := &Client{}
	WithHTTPClient(custom)(c)
	assert.Same(t, custom, c.httpClient)

	WithHTTPClient(nil)(c)
	assert.Same(t, custom, c.httpClient)
}

func TestWithTimeout(t *testing.T) {
	transport := &http.Transport{}
	c := &Client{httpClient: &http.Client{Transport: transport}}
	WithTimeout(5 * time.Second)(c)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Same(t, transport, c.httpClient.Transport)

	WithTimeout(0)(c)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	bare := &Client{}
	WithTimeout(time.Second)(bare)
	assert.Equal(t, time.Second, bare.httpClient.Timeout)
}

func TestWithRetryMax(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"positive value", 5, 5},
		{"zero value", 0, 0},
		{"negative value keeps current", -1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryMax: 3}
			WithRetryMax(tt.input)(c)
			assert.Equal(t, tt.expected, c.retryMax)
		})
	}
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name        string
		min, max    time.Duration
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{"valid", time.Second, 10 * time.Second, time.Second, 10 * time.Second},
		{"max below min", 2 * time.Second, time.Second, 2 * time.Second, 5 * time.Second},
		{"non-positive min", 0, 10 * time.Second, 500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryWaitMin: 500 * time.Millisecond, retryWaitMax: 5 * time.Second}
			WithRetryWait(tt.min, tt.max)(c)
			assert.Equal(t, tt.expectedMin, c.retryWaitMin)
			assert.Equal(t, tt.expectedMax, c.retryWaitMax)
		})
	}
}

func TestWithUserAgentAndLogger(t *testing.T) {
	c := &Client{userAgent: "default", logger: noopLogger{}}
	WithUserAgent("")(c)
	assert.Equal(t, "default", c.userAgent)
	WithUserAgent("my-agent/1.0")(c)
	assert.Equal(t, "my-agent/1.0", c.userAgent)

	l := &testLogger{}
	WithLogger(l)(c)
	assert.Same(t, l, c.logger)
	WithLogger(nil)(c)
	assert.Same(t, l, c.logger)
}
