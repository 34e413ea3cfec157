package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Execer runs a SQL statement. *pgxpool.Pool satisfies it through postgres.Store.Exec.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// RunPostgresMigrations applies the embedded SQL files in lexical order. Every file is idempotent.
func RunPostgresMigrations(ctx context.Context, db Execer) error {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
