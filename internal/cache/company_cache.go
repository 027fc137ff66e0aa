package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-servicing/internal/domain"
)

// ErrCacheMiss is returned when a company is not cached
var ErrCacheMiss = errors.New("cache miss")

const companyKeyPrefix = "company:"

// CompanyCache keeps company fee and term configuration in redis. Calculation
// results are never cached here.
type CompanyCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	Set(ctx context.Context, company *domain.Company) error
}

type redisCompanyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCompanyCache(client *redis.Client, ttl time.Duration) CompanyCache {
	return &redisCompanyCache{client: client, ttl: ttl}
}

func companyKey(id uuid.UUID) string {
	return companyKeyPrefix + id.String()
}

func (c *redisCompanyCache) Get(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	raw, err := c.client.Get(ctx, companyKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var company domain.Company
	if err := json.Unmarshal(raw, &company); err != nil {
		return nil, fmt.Errorf("decode cached company %s: %w", id, err)
	}
	return &company, nil
}

func (c *redisCompanyCache) Set(ctx context.Context, company *domain.Company) error {
	raw, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("encode company %s: %w", company.ID, err)
	}
	return c.client.Set(ctx, companyKey(company.ID), string(raw), c.ttl).Err()
}
