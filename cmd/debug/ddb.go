// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/avroingest/internal/duckdbx"
	"github.com/cardinalhq/avroingest/internal/engine"
)

func GetDDBCmd() *cobra.Command {
	ddbCmd := &cobra.Command{
		Use:   "ddb",
		Short: "DuckDB debugging commands",
	}

	ddbCmd.AddCommand(getExtensionsCmd())
	ddbCmd.AddCommand(getVersionCmd())
	ddbCmd.AddCommand(getMemoryCmd())

	return ddbCmd
}

func getExtensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extensions",
		Short: "List DuckDB extensions and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtensions(cmd.Context())
		},
	}
}

func getVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the embedded DuckDB version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.Context())
		},
	}
}

func getMemoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memory",
		Short: "Print DuckDB database size and memory usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemory(cmd.Context())
		},
	}
}

func withSession(ctx context.Context, fn func(*engine.Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := engine.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	return fn(sess)
}

func runExtensions(ctx context.Context) error {
	return withSession(ctx, func(sess *engine.Session) error {
		rows, err := sess.Query(ctx, "SELECT extension_name, loaded, installed, coalesce(extension_version, '') FROM duckdb_extensions()")
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		var table [][]string
		for rows.Next() {
			var name, version string
			var loaded, installed bool
			if err := rows.Scan(&name, &loaded, &installed, &version); err != nil {
				return err
			}
			availability := "not available"
			switch {
			case loaded:
				availability = "loaded"
			case installed:
				availability = "available"
			}
			table = append(table, []string{name, availability, version})
		}
		if err := rows.Err(); err != nil {
			return err
		}
		printTable([]string{"extension_name", "availability", "extension_version"}, table)
		return nil
	})
}

func runVersion(ctx context.Context) error {
	return withSession(ctx, func(sess *engine.Session) error {
		rows, err := sess.Query(ctx, "SELECT version(), source_id FROM pragma_version()")
		if err != nil {
			return fmt.Errorf("failed to get DuckDB version: %w", err)
		}
		defer func() { _ = rows.Close() }()
		var version, source string
		if rows.Next() {
			if err := rows.Scan(&version, &source); err != nil {
				return err
			}
		}
		fmt.Printf("DuckDB version: %s (%s)\n", version, source)
		return rows.Err()
	})
}

func runMemory(ctx context.Context) error {
	db, err := duckdbx.NewDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if ctx == nil {
		ctx = context.Background()
	}
	conn, release, err := db.GetConnection(ctx)
	if err != nil {
		return err
	}
	defer release()

	stats, err := duckdbx.GetDuckDBMemoryStats(ctx, conn)
	if err != nil {
		return err
	}
	var table [][]string
	for _, s := range stats {
		table = append(table, []string{
			s.DatabaseName,
			fmt.Sprint(s.DatabaseSize),
			fmt.Sprint(s.WALSize),
			fmt.Sprint(s.MemoryUsage),
			fmt.Sprint(s.MemoryLimit),
		})
	}
	printTable([]string{"database", "size_bytes", "wal_bytes", "memory_usage_bytes", "memory_limit_bytes"}, table)
	return nil
}

func printTable(cols []string, rows [][]string) {
	colWidths := make([]int, len(cols))
	for i, col := range cols {
		colWidths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	border := func(left, mid, right string) {
		fmt.Print(left)
		for i, width := range colWidths {
			if i > 0 {
				fmt.Print(mid)
			}
			fmt.Print(strings.Repeat("─", width+2))
		}
		fmt.Println(right)
	}
	line := func(cells []string) {
		fmt.Print("│")
		for i, cell := range cells {
			if i > 0 {
				fmt.Print("│")
			}
			fmt.Printf(" %-*s ", colWidths[i], cell)
		}
		fmt.Println("│")
	}

	border("┌", "┬", "┐")
	line(cols)
	border("├", "┼", "┤")
	for _, row := range rows {
		line(row)
	}
	border("└", "┴", "┘")
}
