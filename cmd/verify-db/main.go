// verify-db checks the database against the repository without changing
// anything: every expected table must exist, every migration on disk must be
// applied with a matching checksum, and the migration ledger must not name
// files the repository no longer carries. Exit status is non-zero when any
// check fails, so it can gate a deploy.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

var expectedTables = []string{
	"companies",
	"users",
	"cycles",
	"daily_entries",
	"feed_purchases",
	"medicines",
	"expenses",
	"dispatches",
	"dispatch_weighings",
	"schema_migrations",
}

func main() {
	_ = godotenv.Load()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatal("[CONNECT] DATABASE_URL must be set")
	}

	ctx := context.Background()
	pool := connectDB(ctx, url)
	defer pool.Close()

	failures := 0
	failures += checkTables(ctx, pool)
	failures += checkMigrations(ctx, pool)

	if failures > 0 {
		log.Fatalf("[FAIL] %d check(s) failed", failures)
	}
	log.Println("[DONE] database matches the repository")
}

func connectDB(ctx context.Context, url string) *pgxpool.Pool {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		log.Fatalf("[CONNECT] failed to create pool: %v", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		log.Fatalf("[CONNECT] failed to ping database: %v", err)
	}

	log.Println("[CONNECT] success")
	return pool
}

func checkTables(ctx context.Context, pool *pgxpool.Pool) int {
	rows, err := pool.Query(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'")
	if err != nil {
		log.Fatalf("[TABLES] failed to list tables: %v", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("[TABLES] failed to scan table name: %v", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("[TABLES] failed reading tables: %v", err)
	}

	failures := 0
	for _, table := range expectedTables {
		if !present[table] {
			log.Printf("[MISSING] table %s", table)
			failures++
		}
	}
	if failures == 0 {
		log.Printf("[TABLES] all %d expected tables present", len(expectedTables))
	}
	return failures
}

func checkMigrations(ctx context.Context, pool *pgxpool.Pool) int {
	applied := make(map[string]string) // version -> checksum
	filenames := make(map[string]string)

	rows, err := pool.Query(ctx, "SELECT version, filename, checksum FROM schema_migrations")
	if err != nil {
		log.Printf("[MIGRATIONS] cannot read schema_migrations: %v", err)
		return 1
	}
	defer rows.Close()
	for rows.Next() {
		var version, filename, checksum string
		if err := rows.Scan(&version, &filename, &checksum); err != nil {
			log.Fatalf("[MIGRATIONS] failed to scan row: %v", err)
		}
		applied[version] = checksum
		filenames[version] = filename
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("[MIGRATIONS] failed reading rows: %v", err)
	}

	failures := 0
	onDisk := make(map[string]bool)
	for _, filename := range discoverMigrations() {
		version := extractVersion(filename)
		onDisk[version] = true

		checksum, ok := applied[version]
		switch {
		case !ok:
			log.Printf("[PENDING] %s has not been applied", filename)
			failures++
		case checksum != checksumFile(filename):
			log.Printf("[MISMATCH] %s differs from the applied version", filename)
			failures++
		default:
			log.Printf("[OK] %s", filename)
		}
	}

	for version := range applied {
		if !onDisk[version] {
			log.Printf("[UNKNOWN] version %s (%s) is applied but missing from migrations/", version, filenames[version])
			failures++
		}
	}
	return failures
}

func discoverMigrations() []string {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		log.Fatalf("[DISCOVER] failed to read migrations directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func extractVersion(filename string) string {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		log.Fatalf("[DISCOVER] invalid migration filename format: %s. Expected format NNN_description.sql", filename)
	}
	return parts[0]
}

func checksumFile(filename string) string {
	bytes, err := os.ReadFile(filepath.Join("migrations", filename))
	if err != nil {
		log.Fatalf("[ERROR] failed to read file for checksum %s: %v", filename, err)
	}

	hash := sha256.Sum256(bytes)
	return hex.EncodeToString(hash[:])
}
