package diagnostics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"jurify/internal/webhook"
)

func entry(i int) Entry {
	p := webhook.Payload{Document: webhook.DocumentPayload{ID: fmt.Sprintf("doc-%d", i)}}
	return NewEntry(time.Unix(int64(i), 0), p, "Erro na comunicação: HTTP 500: Internal Server Error")
}

func TestFileSinkKeepsNewestFifty(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), 0)
	for i := 0; i < 60; i++ {
		if err := sink.Append(ctx, entry(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	got, err := sink.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != DefaultCapacity {
		t.Fatalf("len = %d, want %d", len(got), DefaultCapacity)
	}
	if got[0].Payload.Document.ID != "doc-10" || got[49].Payload.Document.ID != "doc-59" {
		t.Fatalf("wrong window: first=%s last=%s", got[0].Payload.Document.ID, got[49].Payload.Document.ID)
	}
}

func TestFileSinkEmptyAndConcurrent(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), 5)
	got, err := sink.List(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty list: %v %d", err, len(got))
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := sink.Append(ctx, entry(i)); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	got, err = sink.List(ctx)
	if err != nil || len(got) != 5 {
		t.Fatalf("list after concurrent appends: %v %d", err, len(got))
	}
}

// Requires a reachable Redis; set JURIFY_TEST_REDIS_ADDR to run.
func TestRedisSinkTrims(t *testing.T) {
	addr := os.Getenv("JURIFY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("JURIFY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	sink := &RedisSink{Client: client, Key: fmt.Sprintf("jurify_test_%d", time.Now().UnixNano()), Capacity: 3}
	defer client.Del(ctx, sink.Key)
	for i := 0; i < 5; i++ {
		if err := sink.Append(ctx, entry(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := sink.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].Payload.Document.ID != "doc-2" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}
