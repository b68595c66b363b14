package modbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Redis layout, everything under one prefix:
//
//	prefix:approvals     set<approval_id>
//	prefix:approval:id   approval.json
//	prefix:contact:id    submitter.json
//
// Approvals live as long as the process does: Reset wipes the prefix on startup,
// nothing is carried over from a previous run.

var redisContext = context.Background()

type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(prefix string, opt *redis.Options) *RedisRegistry {
	return &RedisRegistry{
		client: redis.NewClient(opt),
		prefix: prefix,
	}
}

func (db *RedisRegistry) toKey(args ...string) string {
	entities := []string{db.prefix}
	entities = append(entities, args...)
	return strings.Join(entities, ":")
}

func (db *RedisRegistry) Ping() error {
	return db.client.Ping(redisContext).Err()
}

// Reset deletes every key under the registry prefix.
func (db *RedisRegistry) Reset() error {
	var cursor uint64
	for {
		keys, next, err := db.client.Scan(redisContext, cursor, db.toKey("*"), 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := db.client.Del(redisContext, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (db *RedisRegistry) Close() error {
	return db.client.Close()
}

func (db *RedisRegistry) Put(approval *Approval) error {
	if !isApprovalValid(approval) {
		return errors.New("approval is not valid")
	}
	buff, err := json.Marshal(approval)
	if err != nil {
		return err
	}
	contact, err := json.Marshal(approval.Submitter)
	if err != nil {
		return err
	}

	created, err := db.client.SetNX(redisContext, db.toKey("approval", approval.Id), buff, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("approval with id %s already exists", approval.Id)
	}

	_, err = db.client.TxPipelined(redisContext, func(pipe redis.Pipeliner) error {
		pipe.SAdd(redisContext, db.toKey("approvals"), approval.Id)
		pipe.Set(redisContext, db.toKey("contact", approval.Id), contact, 0)
		return nil
	})
	return err
}

func (db *RedisRegistry) Pop(id string) (*Approval, error) {
	var value *redis.StringCmd
	_, err := db.client.TxPipelined(redisContext, func(pipe redis.Pipeliner) error {
		value = pipe.GetDel(redisContext, db.toKey("approval", id))
		pipe.SRem(redisContext, db.toKey("approvals"), id)
		return nil
	})
	if IsErrRedisNotFound(err) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeApproval(value.Val())
}

func (db *RedisRegistry) Get(id string) (*Approval, error) {
	buff, err := db.client.Get(redisContext, db.toKey("approval", id)).Result()
	if IsErrRedisNotFound(err) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeApproval(buff)
}

func (db *RedisRegistry) List() ([]*Approval, error) {
	ids, err := db.client.SMembers(redisContext, db.toKey("approvals")).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Approval{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = db.toKey("approval", id)
	}
	values, err := db.client.MGet(redisContext, keys...).Result()
	if err != nil {
		return nil, err
	}

	approvals := make([]*Approval, 0, len(values))
	for _, value := range values {
		buff, ok := value.(string)
		if !ok {
			// popped between SMEMBERS and MGET
			continue
		}
		approval, err := decodeApproval(buff)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}
	sortApprovals(approvals)
	return approvals, nil
}

func (db *RedisRegistry) Contact(id string) (Submitter, error) {
	buff, err := db.client.Get(redisContext, db.toKey("contact", id)).Bytes()
	if IsErrRedisNotFound(err) {
		return Submitter{}, ErrApprovalNotFound
	}
	if err != nil {
		return Submitter{}, err
	}
	var submitter Submitter
	if err := json.Unmarshal(buff, &submitter); err != nil {
		return Submitter{}, fmt.Errorf("contact %s is invalid formatted: %w", id, err)
	}
	return submitter, nil
}

func decodeApproval(buff string) (*Approval, error) {
	var approval Approval
	if err := json.Unmarshal([]byte(buff), &approval); err != nil {
		return nil, fmt.Errorf("approval is invalid formatted: %w", err)
	}
	return &approval, nil
}

func IsErrRedisNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
