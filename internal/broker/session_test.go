package broker

import (
	"testing"
	"time"

	"github.com/quantedge/derivengine/pkg/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSendWhileDisconnectedReturnsError(t *testing.T) {
	s := NewSession(zap.NewNop(), types.DefaultBrokerConfig())
	err := s.send(rawFrame{"ticks": "R_100"})
	assert.Error(t, err)
}

func TestFetchCandlesDedupesWithinBoundary(t *testing.T) {
	s := NewSession(zap.NewNop(), types.DefaultBrokerConfig())
	s.FetchCandles("R_100", types.Gran1m, 200)
	assert.Len(t, s.historyQueue, 1)
	s.historySeen["R_100:60"] = time.Now().Unix() / 60
	s.FetchCandles("R_100", types.Gran1m, 200)
	assert.Len(t, s.historyQueue, 1, "dedup within the same boundary should not enqueue twice")
}

func TestEmitErrorClearsRunningOnAuthorizationRequired(t *testing.T) {
	s := NewSession(zap.NewNop(), types.DefaultBrokerConfig())
	var got *APIErrorEvent
	s.OnEvent(func(e Event) {
		if e.Type == EventAPIError {
			got = e.APIError
		}
	})
	s.running = true
	s.emitError("AuthorizationRequired", "token expired")
	assert.False(t, s.running)
	assert.Equal(t, ErrAuthorizationRequired, got.Code)
}
