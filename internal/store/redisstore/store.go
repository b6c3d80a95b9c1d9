// Package redisstore keeps style records in Redis: one JSON value per style and a
// sorted set ordering the ids by creation time.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ store.StyleStore = (*RedisStore)(nil)

const (
	styleKeyPrefix = "vibecreator:style:"
	styleIndexKey  = "vibecreator:styles"
)

type styleInternal struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Config      json.RawMessage `json:"config_json"`
	CreatedAt   int64           `json:"created_at"` // unix nanoseconds
}

type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger.Named("RedisStore"), now: time.Now}
}

func styleKey(id uuid.UUID) string {
	return styleKeyPrefix + id.String()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) CreateStyle(ctx context.Context, arg store.CreateStyleParams) (*models.StyleRecord, error) {
	configBytes, err := arg.Config.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode style configuration: %w", err)
	}
	createdAt := s.now().UTC()
	payload, err := encodeStyle(styleInternal{
		ID:          arg.ID.String(),
		Name:        arg.Name,
		Description: arg.Description,
		Config:      configBytes,
		CreatedAt:   createdAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode style %s: %w", arg.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, styleKey(arg.ID), payload, 0)
		pipe.ZAdd(ctx, styleIndexKey, redis.Z{Score: float64(createdAt.UnixNano()), Member: arg.ID.String()})
		return nil
	})
	if err != nil {
		s.logger.Error("CreateStyle: transaction failed", zap.Stringer("id", arg.ID), zap.Error(err))
		return nil, fmt.Errorf("redis error creating style: %w", err)
	}

	return &models.StyleRecord{
		ID:          arg.ID,
		Name:        arg.Name,
		Description: arg.Description,
		Config:      arg.Config,
		CreatedAt:   createdAt,
	}, nil
}

func (s *RedisStore) ListStyles(ctx context.Context) ([]models.StyleRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, styleIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error listing styles: %w", err)
	}
	styles := []models.StyleRecord{}
	if len(ids) == 0 {
		return styles, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = styleKeyPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error loading styles: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a value: deleted concurrently.
			s.logger.Warn("ListStyles: dangling index entry", zap.String("id", ids[i]))
			continue
		}
		rec, err := decodeStyle([]byte(raw))
		if err != nil {
			return nil, err
		}
		styles = append(styles, *rec)
	}
	return styles, nil
}

func (s *RedisStore) GetStyleByID(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error) {
	raw, err := s.rdb.Get(ctx, styleKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redis error fetching style: %w", err)
	}
	return decodeStyle(raw)
}

func (s *RedisStore) DeleteStyle(ctx context.Context, id uuid.UUID) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, styleKey(id))
		pipe.ZRem(ctx, styleIndexKey, id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error deleting style: %w", err)
	}
	if del.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// encodeStyle leaves <, > and & unescaped so the configuration text is stored as given.
func encodeStyle(in styleInternal) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(in); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func decodeStyle(raw []byte) (*models.StyleRecord, error) {
	var in styleInternal
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode stored style: %w", err)
	}
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return nil, fmt.Errorf("stored style id %q is invalid: %w", in.ID, err)
	}
	cfg, err := models.ParseStyleConfig(in.Config)
	if err != nil {
		return nil, fmt.Errorf("stored configuration for style %s is invalid: %w", in.ID, err)
	}
	return &models.StyleRecord{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Config:      cfg,
		CreatedAt:   time.Unix(0, in.CreatedAt).UTC(),
	}, nil
}
