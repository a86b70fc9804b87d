package migrations

import (
	"context"
	"fmt"
	"io/fs"
)

// CHExecer is the subset of the ClickHouse connection needed to apply migrations.
type CHExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouse applies all embedded SQL files in lexical order.
// ClickHouse rejects multi-statement Exec, so each file holds one statement.
func RunClickhouse(ctx context.Context, db CHExecer) error {
	files, err := listSQL(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
