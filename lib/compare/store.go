package compare

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"slices"
	"sort"
	"strconv"
)

var ErrUnsupportedType = errors.New("unsupported key type")

const (
	TypeNone   = "none"
	TypeString = "string"
	TypeList   = "list"
	TypeSet    = "set"
	TypeZSet   = "zset"
	TypeHash   = "hash"
)

// Value is the normalized content of one key. Unordered types (set, hash) are sorted
// so two values can be compared element by element.
type Value struct {
	Type    string
	Items   []string
	Missing bool
}

// Equal reports whether both values have the same type and content
func (v Value) Equal(other Value) bool {
	if v.Missing || other.Missing {
		return v.Missing == other.Missing
	}
	return v.Type == other.Type && slices.Equal(v.Items, other.Items)
}

// Store is the read only view of one logical database
type Store interface {
	Scan(ctx context.Context, cursor uint64, count int64) (keys []string, next uint64, err error)
	Type(ctx context.Context, key string) (string, error)
	Value(ctx context.Context, key, typ string) (Value, error)
	Close() error
}

// Opener returns the Store for database db
type Opener func(db int) Store

// --------------------------------------------------------------------------
// go-redis backed store
// --------------------------------------------------------------------------

// RedisOpener opens stores with go-redis. network is "tcp" or "unix".
func RedisOpener(network, addr, password string) Opener {
	return func(db int) Store {
		return &redisStore{client: redis.NewClient(&redis.Options{
			Network:  network,
			Addr:     addr,
			Password: password,
			DB:       db,
		})}
	}
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Scan(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	return s.client.Scan(ctx, cursor, "", count).Result()
}

func (s *redisStore) Type(ctx context.Context, key string) (string, error) {
	return s.client.Type(ctx, key).Result()
}

func (s *redisStore) Value(ctx context.Context, key, typ string) (Value, error) {
	v := Value{Type: typ}

	switch typ {
	case TypeNone:
		v.Missing = true

	case TypeString:
		str, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			v.Missing = true
			return v, nil
		}
		if err != nil {
			return v, err
		}
		v.Items = []string{str}

	case TypeList:
		items, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return v, err
		}
		v.Items = items

	case TypeSet:
		members, err := s.client.SMembers(ctx, key).Result()
		if err != nil {
			return v, err
		}
		sort.Strings(members)
		v.Items = members

	case TypeZSet:
		entries, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return v, err
		}
		v.Items = make([]string, 0, len(entries))
		for _, z := range entries {
			v.Items = append(v.Items, fmt.Sprintf("%v:%s", z.Member, strconv.FormatFloat(z.Score, 'g', -1, 64)))
		}

	case TypeHash:
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return v, err
		}
		v.Items = make([]string, 0, len(fields))
		for field, value := range fields {
			v.Items = append(v.Items, field+"="+value)
		}
		sort.Strings(v.Items)

	default:
		return v, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}

	return v, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
