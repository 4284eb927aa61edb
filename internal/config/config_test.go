package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsWellFormed(t *testing.T) {
	c := Default()

	assert.Equal(t, 8, c.ReplicationFactor)
	assert.Equal(t, 3, c.LookupConcurrency)
	assert.Greater(t, c.MaxConnections, 0)
	assert.Greater(t, c.CacheCapacity, 0)
	assert.Greater(t, c.FailureThreshold.Seconds(), 0.0)
}

func TestPeerManagerConfigProjection(t *testing.T) {
	c := Default()
	pmc := c.PeerManagerConfig()

	assert.Equal(t, c.MaxConnections, pmc.MaxConnections)
	assert.Equal(t, c.RateLimitRequests, pmc.RateLimitRequests)
	assert.Equal(t, c.MinPeerReliability, pmc.MinReliability)
}
