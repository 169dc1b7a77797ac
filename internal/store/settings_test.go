package store

import (
	"context"
	"testing"

	"github.com/erazemk/jaego/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestJSONSettingRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	type cfg struct {
		Keywords []string `json:"keywords"`
		Interval int      `json:"interval"`
	}

	var got cfg
	found, err := GetJSONSetting(ctx, database, "nara_config", &got)
	if err != nil || found {
		t.Fatalf("expected unset setting, found=%v err=%v", found, err)
	}

	if err := PutJSONSetting(ctx, database, "nara_config", cfg{Keywords: []string{"전기"}, Interval: 3}); err != nil {
		t.Fatal(err)
	}
	if err := PutJSONSetting(ctx, database, "nara_config", cfg{Keywords: []string{"케이블"}, Interval: 5}); err != nil {
		t.Fatal(err)
	}

	found, err = GetJSONSetting(ctx, database, "nara_config", &got)
	if err != nil || !found {
		t.Fatalf("expected setting, found=%v err=%v", found, err)
	}
	if got.Interval != 5 || got.Keywords[0] != "케이블" {
		t.Errorf("expected overwritten value, got %+v", got)
	}
}
