package chat

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/grantscout/api/schemas"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Close() error { return nil }

type recordingLauncher struct {
	mu      sync.Mutex
	prompts []string
}

func (r *recordingLauncher) Launch(prompt string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	return "task-1"
}

func isExtraction(req schemas.GenerationRequest) bool {
	return req.Options.ForceJSONFormat && req.Tier == schemas.TierFast
}

func isConverse(req schemas.GenerationRequest) bool {
	return req.SystemPrompt == conciseInstruction
}
