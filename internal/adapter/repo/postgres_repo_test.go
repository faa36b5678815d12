package repo

import (
	"context"
	"os"
	"testing"

	"github.com/example/restaurant-pos/internal/adapter/storetest"
	"github.com/example/restaurant-pos/internal/domain"
)

// Тесты против живой базы запускаются только при заданном POS_TEST_POSTGRES_URL.
func testPostgresURL(t *testing.T) string {
	url := os.Getenv("POS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("POS_TEST_POSTGRES_URL not set")
	}
	return url
}

func TestPostgresStoreConformance(t *testing.T) {
	url := testPostgresURL(t)
	storetest.Run(t, func(t *testing.T) domain.Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, url)
		if err != nil {
			t.Fatalf("OpenPostgres() error = %v", err)
		}
		if _, err := s.Pool.Exec(ctx, `TRUNCATE pos_tables, products, archived_orders`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close(ctx) })
		return s
	})
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	url := testPostgresURL(t)
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer s.Close(ctx)
	if err := EnsureSchema(ctx, s.Pool); err != nil {
		t.Errorf("second EnsureSchema() error = %v", err)
	}
}
