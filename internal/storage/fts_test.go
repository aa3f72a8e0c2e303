package storage

import (
	"context"
	"testing"
)

func setupSearchDB(t *testing.T) *DB {
	t.Helper()
	db := setupTestDB(t)
	if err := db.SaveBuild(context.Background(), platformBuild(t)); err != nil {
		t.Fatalf("SaveBuild failed: %v", err)
	}
	return db
}

func TestFTSSearch_Tiers(t *testing.T) {
	db := setupSearchDB(t)
	ctx := context.Background()

	tests := []struct {
		query     string
		wantID    string
		wantMatch string
	}{
		{"newb", "live/network/subnets/variable-newbits", MatchPrefix},
		{"ewbit", "live/network/subnets/variable-newbits", MatchSubstring},
		{"Ubuntu image", "edge/data-aws_ami.ubuntu", MatchExact},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := db.Search(ctx, tt.query, 10)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("results = %+v", results)
			}
			if results[0].Identifier != tt.wantID || results[0].MatchType != tt.wantMatch {
				t.Errorf("result = %+v", results[0])
			}
		})
	}
}

func TestFTSSearch_ExactBeforeFallbacks(t *testing.T) {
	db := setupSearchDB(t)

	results, err := db.Search(context.Background(), "vpc", 20)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.Identifier] = true
	}
	for _, id := range []string{"edge/resource-aws_vpc.main", "live/network/resource-aws_vpc.main"} {
		if !found[id] {
			t.Errorf("missing %s in %+v", id, results)
		}
	}
	if results[0].MatchType != MatchExact {
		t.Errorf("first result = %+v", results[0])
	}
	for i := 1; i < len(results); i++ {
		if results[i].Rank > results[i-1].Rank {
			t.Errorf("results not ordered by tier at %d", i)
		}
	}
	if len(found) != len(results) {
		t.Errorf("duplicate results: %+v", results)
	}
}

func TestFTSSearch_Limits(t *testing.T) {
	db := setupSearchDB(t)
	ctx := context.Background()

	results, err := db.Search(ctx, "vpc", 1)
	if err != nil || len(results) != 1 {
		t.Errorf("limited search = %+v, %v", results, err)
	}

	if results, err := db.Search(ctx, "   ", 5); err != nil || results != nil {
		t.Errorf("blank query = %+v, %v", results, err)
	}
	if _, err := db.Search(ctx, `"unbalanced (`, 5); err != nil {
		t.Errorf("special characters should not fail: %v", err)
	}
	if results, err := db.Search(ctx, "100%_", 5); err != nil || len(results) != 0 {
		t.Errorf("LIKE wildcards must be literal: %+v, %v", results, err)
	}
}

func TestFTSMaintenance(t *testing.T) {
	db := setupSearchDB(t)
	ctx := context.Background()
	fts := db.FTS()

	if err := fts.Rebuild(ctx); err != nil {
		t.Errorf("Rebuild: %v", err)
	}
	if err := fts.Optimize(ctx); err != nil {
		t.Errorf("Optimize: %v", err)
	}
	if err := fts.IntegrityCheck(ctx); err != nil {
		t.Errorf("IntegrityCheck: %v", err)
	}

	var triggers int
	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='trigger' AND name LIKE 'definitions_a%'").Scan(&triggers)
	if err != nil || triggers != 3 {
		t.Errorf("sync triggers = %d, %v", triggers, err)
	}

	if _, err := db.Conn().ExecContext(ctx,
		"UPDATE definitions SET doc = 'Renamed zebra note.' WHERE identifier = 'edge/resource-aws_vpc.main'"); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search(ctx, "zebra", 5)
	if err != nil || len(results) != 1 || results[0].MatchType != MatchExact {
		t.Errorf("trigger-synced search = %+v, %v", results, err)
	}
}
