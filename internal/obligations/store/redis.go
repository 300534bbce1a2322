package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fiscus/internal/obligations/models"
	redisplatform "fiscus/internal/platform/redis"
	"fiscus/pkg/platform/sentinel"
)

const (
	recordKind  = "record"
	profileKind = "profile"
)

// RedisStore keeps one JSON string per client under <namespace>:record:<id>,
// without expiry.
type RedisStore struct {
	client *redisplatform.Client
}

func NewRedis(client *redisplatform.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetClientRecord(ctx context.Context, clientID string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.client.Key(recordKind, clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client record: %w", err)
	}
	return payload, nil
}

func (s *RedisStore) UpdateClientRecord(ctx context.Context, clientID string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("update client record %s: %w", clientID, sentinel.ErrRejected)
	}
	if err := s.client.Set(ctx, s.client.Key(recordKind, clientID), payload, 0).Err(); err != nil {
		return fmt.Errorf("update client record: %w", err)
	}
	return nil
}

// RedisProfiles reads profiles stored as hashes under <namespace>:profile:<id>.
type RedisProfiles struct {
	client *redisplatform.Client
}

func NewRedisProfiles(client *redisplatform.Client) *RedisProfiles {
	return &RedisProfiles{client: client}
}

func (p *RedisProfiles) Profile(ctx context.Context, clientID string) (models.ClientProfile, error) {
	fields, err := p.client.HGetAll(ctx, p.client.Key(profileKind, clientID)).Result()
	if err != nil {
		return models.ClientProfile{}, fmt.Errorf("get client profile: %w", err)
	}
	if len(fields) == 0 {
		return models.ClientProfile{}, fmt.Errorf("profile %s: %w", clientID, sentinel.ErrNotFound)
	}
	return models.ClientProfile{
		ID:             clientID,
		PersonType:     models.PersonType(fields["personType"]),
		TaxRegime:      models.TaxRegime(fields["taxRegime"]),
		PropertyStatus: models.PropertyStatus(fields["propertyStatus"]),
	}, nil
}

func (p *RedisProfiles) SaveProfile(ctx context.Context, profile models.ClientProfile) error {
	err := p.client.HSet(ctx, p.client.Key(profileKind, profile.ID),
		"personType", string(profile.PersonType),
		"taxRegime", string(profile.TaxRegime),
		"propertyStatus", string(profile.PropertyStatus),
	).Err()
	if err != nil {
		return fmt.Errorf("save client profile: %w", err)
	}
	return nil
}
