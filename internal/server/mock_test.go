package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Analyze(ctx context.Context, req analyzer.Request) (*model.Analysis, error) {
	args := m.Called(ctx, req)
	if a := args.Get(0); a != nil {
		return a.(*model.Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}
