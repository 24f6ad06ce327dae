// Package tokenauth is an in-process AuthProvider backed by an in-memory
// token table. It stands in for the hosted auth service in deployments that
// do not have one.
package tokenauth

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"twils-assistant/providers"
)

// Provider implements providers.AuthProvider.
type Provider struct {
	logger *zap.Logger

	mu     sync.RWMutex
	tokens map[string]providers.User
}

// NewProvider creates an empty token table.
func NewProvider(logger *zap.Logger) *Provider {
	return &Provider{
		logger: logger,
		tokens: make(map[string]providers.User),
	}
}

// CurrentUser resolves a bearer token. Unknown tokens yield a nil user and
// no error; the caller treats the request as unauthenticated.
func (p *Provider) CurrentUser(_ context.Context, token string) (*providers.User, error) {
	if token == "" {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.tokens[token]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Login issues a fresh token for the given email.
func (p *Provider) Login(_ context.Context, email string) (string, error) {
	token := uuid.NewString()
	user := providers.User{ID: uuid.NewString(), Email: email}

	p.mu.Lock()
	p.tokens[token] = user
	p.mu.Unlock()

	p.logger.Info("User logged in", zap.String("user_id", user.ID))
	return token, nil
}

// Logout drops the token.
func (p *Provider) Logout(_ context.Context, token string) error {
	p.mu.Lock()
	delete(p.tokens, token)
	p.mu.Unlock()
	return nil
}
