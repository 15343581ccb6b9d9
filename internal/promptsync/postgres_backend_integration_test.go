package promptsync

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var postgresIntegrationCounter uint64

func TestPostgresIntegrationStateBackendRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)

	backend, err := NewPostgresStateBackend(dsn)
	if err != nil {
		t.Fatalf("new postgres state backend: %v", err)
	}
	pg, ok := backend.(*PostgresStateBackend)
	if !ok {
		t.Fatalf("expected *PostgresStateBackend, got %T", backend)
	}
	pg.tableName = postgresIntegrationTableName("promptsync_state_it")
	pg.stateKey = "it"
	t.Cleanup(func() {
		_ = pg.Close()
		postgresIntegrationDropTable(t, dsn, pg.tableName)
	})

	snapshot, err := backend.Load()
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil initial snapshot, got %+v", snapshot)
	}

	saved := &persistedState{
		Document:        DefaultDocument(),
		Settings:        DefaultSettings(),
		UsageStats:      &UsageStats{TotalUses: 7, LastSevenDays: []int{0, 0, 0, 0, 0, 3, 4}},
		RemoteLink:      &RemoteLink{GistID: "g1"},
		AdminSecretHash: "hash",
	}
	saved.Document.Prompts = append(saved.Document.Prompts, Record{
		ID: "p1", Title: "Greeting", Content: "Say hello", Tags: []string{},
	})
	if err := backend.Save(saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := backend.Load()
	if err != nil {
		t.Fatalf("load after save failed: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected non-nil snapshot after save")
	}
	if len(loaded.Document.Prompts) != 1 || loaded.Document.Prompts[0].ID != "p1" {
		t.Fatalf("unexpected loaded document: %+v", loaded.Document)
	}
	if loaded.UsageStats.TotalUses != 7 || loaded.RemoteLink.GistID != "g1" {
		t.Fatalf("unexpected loaded snapshot: %+v", loaded)
	}

	loaded.RemoteLink.GistID = "g2"
	if err := backend.Save(loaded); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	reloaded, err := backend.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded == nil || reloaded.RemoteLink.GistID != "g2" {
		t.Fatalf("expected upserted snapshot, got %+v", reloaded)
	}
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("PROMPTSYNC_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set PROMPTSYNC_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func postgresIntegrationTableName(prefix string) string {
	n := atomic.AddUint64(&postgresIntegrationCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}

func postgresIntegrationDropTable(t *testing.T, dsn, tableName string) {
	t.Helper()
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(tableName) == "" {
		return
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres for cleanup failed: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteSQLIdentifier(tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		t.Fatalf("drop cleanup table %q failed: %v", tableName, err)
	}
}
