package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testHelper(t *testing.T) *CacheHelper {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, "exam:")
}

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper := testHelper(t)
	ctx := context.Background()

	want := cachedExam{ID: 1, Title: "Algebra Final"}
	if err := helper.Set(ctx, "id:1", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	var missing cachedExam
	if err := helper.Get(ctx, "id:2", &missing); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Get() on missing key error = %v, want %v", err, ErrCacheNotFound)
	}
}

func TestCacheHelper_DeleteAndExists(t *testing.T) {
	helper := testHelper(t)
	ctx := context.Background()

	if err := helper.SetString(ctx, "id:1", "cached", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	exists, err := helper.Exists(ctx, "id:1")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v after set", exists, err)
	}

	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	exists, err = helper.Exists(ctx, "id:1")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v after delete", exists, err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper := testHelper(t)
	ctx := context.Background()

	for _, key := range []string{"id:1", "id:1:questions", "id:2"} {
		if err := helper.SetString(ctx, key, "cached", time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "id:1*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	if exists, _ := helper.Exists(ctx, "id:1"); exists {
		t.Error("InvalidatePattern() left a matching key behind")
	}
	if exists, _ := helper.Exists(ctx, "id:2"); !exists {
		t.Error("InvalidatePattern() removed a non-matching key")
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper := testHelper(t)
	ctx := context.Background()

	// Miss executes the fetch and fills the destination
	var got cachedExam
	err := helper.CacheOrExecute(ctx, "id:1", &got, time.Minute, func() (interface{}, error) {
		return cachedExam{ID: 1, Title: "Algebra Final"}, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if got.Title != "Algebra Final" {
		t.Errorf("CacheOrExecute() = %+v", got)
	}

	// Hit serves from cache without calling the fetch
	if err := helper.Set(ctx, "id:2", cachedExam{ID: 2, Title: "Geometry Quiz"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var cached cachedExam
	err = helper.CacheOrExecute(ctx, "id:2", &cached, time.Minute, func() (interface{}, error) {
		t.Error("CacheOrExecute() fetched despite a cache hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if cached.ID != 2 {
		t.Errorf("CacheOrExecute() cached value = %+v", cached)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	if err := helper.Set(ctx, "id:1", "cached", time.Minute); err != nil {
		t.Errorf("Set() without client error = %v", err)
	}
	if err := helper.Get(ctx, "id:1", nil); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get() without client error = %v, want %v", err, ErrCacheNotAvailable)
	}
	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Errorf("Delete() without client error = %v", err)
	}
}

func TestCacheManager_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	manager := NewCacheManager(client)
	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	degraded := NewCacheManager(nil)
	if err := degraded.HealthCheck(context.Background()); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("HealthCheck() without client error = %v, want %v", err, ErrCacheNotAvailable)
	}
}
