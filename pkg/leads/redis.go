package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	goredis "github.com/redis/go-redis/v9"
)

const leadKeyPrefix = "leadmill:lead:"

// RedisStore keeps lead records as JSON values in Redis, one key per
// lead. Patches are applied under WATCH so concurrent updates to the
// same lead never lose fields.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewRedisStoreWithClient(goredis.NewClient(opts)), nil
}

// NewRedisStoreWithClient wires the store onto an existing client,
// used by tests running against miniredis.
func NewRedisStoreWithClient(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, leadID string) (models.LeadRecord, error) {
	data, err := s.client.Get(ctx, leadKeyPrefix+leadID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, protocol.ErrLeadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get lead %s: %w", leadID, err)
	}

	var record models.LeadRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode lead %s: %w", leadID, err)
	}

	return record, nil
}

// Seed inserts or replaces a lead record.
func (s *RedisStore) Seed(ctx context.Context, leadID string, record models.LeadRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode lead %s: %w", leadID, err)
	}

	return s.client.Set(ctx, leadKeyPrefix+leadID, data, 0).Err()
}

func (s *RedisStore) Update(ctx context.Context, leadID string, patch models.LeadPatch) error {
	key := leadKeyPrefix + leadID

	return s.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return protocol.ErrLeadNotFound
		}

		if err != nil {
			return fmt.Errorf("get lead %s: %w", leadID, err)
		}

		var record models.LeadRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode lead %s: %w", leadID, err)
		}

		for field, value := range patch {
			record[field] = value
		}

		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode lead %s: %w", leadID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)

			return nil
		})

		return err
	}, key)
}
