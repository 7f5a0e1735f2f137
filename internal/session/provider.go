// Package session resolves the signed-in console user's tenant, customer and
// product identifiers. The wizard receives them and never owns them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"loan-wizard/internal/common/config"
	"loan-wizard/internal/wizard"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMissingToken    = errors.New("missing session token")
)

// Provider looks up the session behind a bearer token.
type Provider interface {
	Resolve(ctx context.Context, token string) (wizard.SessionContext, error)
}

// StaticProvider returns the same identifiers for any non-empty token. It
// backs single-tenant deployments and local development.
type StaticProvider struct {
	session wizard.SessionContext
}

func NewStaticProvider(s wizard.SessionContext) *StaticProvider {
	return &StaticProvider{session: s}
}

func (p *StaticProvider) Resolve(_ context.Context, token string) (wizard.SessionContext, error) {
	if strings.TrimSpace(token) == "" {
		return wizard.SessionContext{}, ErrMissingToken
	}
	return p.session, nil
}

// RedisProvider reads the hash written by the console's auth service at
// <prefix><token>.
type RedisProvider struct {
	client *redis.Client
	prefix string
}

func NewRedisProvider(client *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{client: client, prefix: prefix}
}

func (p *RedisProvider) Resolve(ctx context.Context, token string) (wizard.SessionContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return wizard.SessionContext{}, ErrMissingToken
	}

	values, err := p.client.HGetAll(ctx, p.prefix+token).Result()
	if err != nil {
		return wizard.SessionContext{}, fmt.Errorf("session lookup: %w", err)
	}
	if len(values) == 0 || values[wizard.FieldTenantID] == "" {
		return wizard.SessionContext{}, ErrSessionNotFound
	}

	return wizard.SessionContext{
		TenantID:   values[wizard.FieldTenantID],
		CustomerID: values[wizard.FieldCustomerID],
		ProductID:  values[wizard.FieldProductID],
	}, nil
}

// FromConfig picks the provider named in the session section. client may be
// nil for the static provider.
func FromConfig(cfg config.SessionConfig, client *redis.Client) (Provider, error) {
	switch cfg.Provider {
	case "redis":
		if client == nil {
			return nil, errors.New("redis session provider needs a redis client")
		}
		return NewRedisProvider(client, cfg.KeyPrefix), nil
	case "static", "":
		return NewStaticProvider(wizard.SessionContext{
			TenantID:   cfg.Static.TenantID,
			CustomerID: cfg.Static.CustomerID,
			ProductID:  cfg.Static.ProductID,
		}), nil
	default:
		return nil, fmt.Errorf("unknown session provider %q", cfg.Provider)
	}
}
