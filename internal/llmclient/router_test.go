package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/grantscout/api/schemas"
)

// setupRouter creates a standard LLMRouter instance for testing, along with its mocks and a log observer.
func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &MockLLMClient{Name: "FastClient"}
	powerfulClient := &MockLLMClient{Name: "PowerfulClient"}

	router, err := NewLLMRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err)

	return router, fastClient, powerfulClient, observedLogs
}

func TestNewLLMRouter_Failure_MissingClients(t *testing.T) {
	logger := setupTestLogger(t)
	validClient := new(MockLLMClient)

	tests := []struct {
		name     string
		fast     schemas.LLMClient
		powerful schemas.LLMClient
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(logger, tt.fast, tt.powerful)
			assert.Nil(t, router)
			assert.ErrorContains(t, err, "both fast and powerful tier clients must be provided")
		})
	}
}

func TestLLMRouter_Generate_Routing(t *testing.T) {
	tests := []struct {
		name         string
		tier         schemas.ModelTier
		wantFast     bool
		wantLoggedAs schemas.ModelTier
	}{
		{"fast tier", schemas.TierFast, true, schemas.TierFast},
		{"powerful tier", schemas.TierPowerful, false, schemas.TierPowerful},
		{"empty tier defaults to powerful", "", false, schemas.TierPowerful},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fastClient, powerfulClient, logs := setupRouter(t)
			ctx := context.Background()
			req := schemas.GenerationRequest{Tier: tt.tier, UserPrompt: "prompt"}

			target, other := powerfulClient, fastClient
			if tt.wantFast {
				target, other = fastClient, powerfulClient
			}
			target.On("Generate", ctx, req).Return("answer", nil).Once()

			out, err := router.Generate(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, "answer", out)
			target.AssertExpectations(t)
			other.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, string(tt.wantLoggedAs), logs.All()[0].ContextMap()["tier"])
		})
	}
}

func TestLLMRouter_Generate_Errors(t *testing.T) {
	t.Run("client error propagates", func(t *testing.T) {
		router, fastClient, _, _ := setupRouter(t)
		ctx := context.Background()
		req := schemas.GenerationRequest{Tier: schemas.TierFast}
		expected := errors.New("underlying client API failure")
		fastClient.On("Generate", ctx, req).Return("", expected).Once()

		out, err := router.Generate(ctx, req)
		assert.Empty(t, out)
		assert.ErrorIs(t, err, expected)
	})

	t.Run("unknown tier", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: "invalid-tier-xyz"})
		assert.ErrorContains(t, err, "no LLM client configured for tier: invalid-tier-xyz")
		fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		powerfulClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestLLMRouter_Close(t *testing.T) {
	t.Run("closes each distinct client once", func(t *testing.T) {
		shared := &MockLLMClient{}
		shared.On("Close").Return(nil).Once()
		router, err := NewLLMRouter(setupTestLogger(t), shared, shared)
		require.NoError(t, err)

		assert.NoError(t, router.Close())
		shared.AssertExpectations(t)
	})

	t.Run("joins errors", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		fastClient.On("Close").Return(errors.New("fast close")).Once()
		powerfulClient.On("Close").Return(nil).Once()

		err := router.Close()
		assert.ErrorContains(t, err, "fast close")
	})
}
