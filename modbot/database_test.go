package modbot

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/go-redis/redis/v8"
)

const redisTestingKeyPrefix = "modrelay:testing"

var redisTestingConfig = &redis.Options{
	Addr: "localhost:6379",
	DB:   1,
}

func newTestingRedisRegistry(t *testing.T) *RedisRegistry {
	db := NewRedisRegistry(redisTestingKeyPrefix, redisTestingConfig)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("redis is not reachable at %s: %s", redisTestingConfig.Addr, err.Error())
	}
	if err := db.Reset(); err != nil {
		t.Fatal(err.Error())
	}
	t.Cleanup(func() {
		_ = db.Reset()
		_ = db.Close()
	})
	return db
}

func TestRedisRegistry_PutPop(t *testing.T) {
	db := newTestingRedisRegistry(t)

	approval := NewApproval(testSubmitter, Draft{
		Media: []MediaRef{"p1", "p2"},
		Poll:  &Poll{Question: "Q", Options: []string{"A", "B"}},
	})
	if err := db.Put(approval); err != nil {
		t.Fatal(err.Error())
	}
	if err := db.Put(approval); err == nil {
		t.Fatal("duplicate id must be rejected")
	}

	got, err := db.Get(approval.Id)
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(got.Media) != 2 || got.Poll == nil || got.Poll.Options[1] != "B" || got.Submitter != testSubmitter {
		t.Fatalf("stored approval differs: %+v", got)
	}

	if _, err := db.Pop(approval.Id); err != nil {
		t.Fatal(err.Error())
	}
	if _, err := db.Pop(approval.Id); !errors.Is(err, ErrApprovalNotFound) {
		t.Fatalf("second Pop err = %v, want ErrApprovalNotFound", err)
	}

	submitter, err := db.Contact(approval.Id)
	if err != nil {
		t.Fatal(err.Error())
	}
	if submitter != testSubmitter {
		t.Fatalf("contact = %+v", submitter)
	}
}

func TestRedisRegistry_ConcurrentPop(t *testing.T) {
	db := newTestingRedisRegistry(t)
	approval := NewApproval(testSubmitter, Draft{Media: []MediaRef{"p1"}})
	if err := db.Put(approval); err != nil {
		t.Fatal(err.Error())
	}

	var succeeded int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Pop(approval.Id); err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("%d pops succeeded, want exactly 1", succeeded)
	}
}

func TestRedisRegistry_ListAndReset(t *testing.T) {
	db := newTestingRedisRegistry(t)

	first := NewApproval(testSubmitter, Draft{Media: []MediaRef{"p1"}, Caption: pointer.ToString("one")})
	second := NewApproval(testSubmitter, Draft{Media: []MediaRef{"p2"}})
	second.CreatedAt = first.CreatedAt.Add(1)
	for _, approval := range []*Approval{first, second} {
		if err := db.Put(approval); err != nil {
			t.Fatal(err.Error())
		}
	}

	approvals, err := db.List()
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(approvals) != 2 || approvals[0].Id != first.Id {
		t.Fatalf("List returned %d approvals", len(approvals))
	}

	if err := db.Reset(); err != nil {
		t.Fatal(err.Error())
	}
	keys, err := db.client.Keys(redisContext, redisTestingKeyPrefix+":*").Result()
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(keys) > 0 {
		t.Fatalf("not all keys where removed, left: %v", keys)
	}
}
