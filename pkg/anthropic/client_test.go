package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestFirstText(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "tool_use", Text: ""},
			{Type: "text", Text: "hello"},
			{Type: "text", Text: "second"},
		},
	}
	assert.Equal(t, "hello", resp.FirstText())
}

func TestFirstText_NoTextBlock(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{{Type: "tool_use"}},
	}
	assert.Equal(t, "", resp.FirstText())
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-20250514"), 1e-9)
	assert.Equal(t, 0.0, u.EstimateCost("unknown-model"))
}

func TestMockClient(t *testing.T) {
	m := &MockClient{}
	req := MessageRequest{Model: "claude-sonnet-4-20250514", MaxTokens: 64}
	m.On("CreateMessage", mock.Anything, req).Return(&MessageResponse{
		Content: []ContentBlock{{Type: "text", Text: "ok"}},
	}, nil)

	resp, err := m.CreateMessage(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp.FirstText())
	m.AssertExpectations(t)
}
