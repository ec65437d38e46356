//go:build !production

package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/exploding-kittens/internal/server/storage"
)

// MockStore 会话存储 mock
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveSession(ctx context.Context, session *storage.SessionData) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockStore) LoadSession(ctx context.Context, token string) (*storage.SessionData, error) {
	args := m.Called(ctx, token)
	data, _ := args.Get(0).(*storage.SessionData)
	return data, args.Error(1)
}

func (m *MockStore) SetSessionOnline(ctx context.Context, token string, online bool) error {
	args := m.Called(ctx, token, online)
	return args.Error(0)
}
