package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"visor/internal/sqlinline"
)

// usagereport prints analysis volume from the archive and optionally prunes
// old rows. It is an operator tool; the service itself never reads these
// aggregates.
func main() {
	var (
		days  int
		top   int
		prune int
	)
	flag.IntVar(&days, "days", 7, "how many days of history to report")
	flag.IntVar(&top, "top", 10, "how many of today's heaviest users to list")
	flag.IntVar(&prune, "prune-older-than", 0, "delete archived analyses older than this many days (0 keeps everything)")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach database: %v\n", err)
		os.Exit(1)
	}

	if err := printDaily(ctx, db, days); err != nil {
		fmt.Fprintf(os.Stderr, "daily report failed: %v\n", err)
		os.Exit(1)
	}
	if err := printTopUsers(ctx, db, top); err != nil {
		fmt.Fprintf(os.Stderr, "top users report failed: %v\n", err)
		os.Exit(1)
	}

	if prune > 0 {
		res, err := db.ExecContext(ctx, sqlinline.QPruneAnalyses, prune)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
			os.Exit(1)
		}
		removed, _ := res.RowsAffected()
		fmt.Printf("\nPruned %d archived analyses older than %d days\n", removed, prune)
	}
}

func printDaily(ctx context.Context, db *sql.DB, days int) error {
	rows, err := db.QueryContext(ctx, sqlinline.QUsageDaily, days)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Printf("Analysis volume, last %d days:\n", days)
	fmt.Printf("%-12s %8s %8s %8s\n", "day", "total", "cached", "users")
	any := false
	for rows.Next() {
		var (
			day                  time.Time
			total, cached, users int
		)
		if err := rows.Scan(&day, &total, &cached, &users); err != nil {
			return err
		}
		fmt.Printf("%-12s %8d %8d %8d\n", day.Format("2006-01-02"), total, cached, users)
		any = true
	}
	if !any {
		fmt.Println("  (no archived analyses)")
	}
	return rows.Err()
}

func printTopUsers(ctx context.Context, db *sql.DB, top int) error {
	rows, err := db.QueryContext(ctx, sqlinline.QUsageTopUsersToday, top)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Println("\nToday's heaviest users (UTC):")
	any := false
	for rows.Next() {
		var (
			userID string
			total  int
		)
		if err := rows.Scan(&userID, &total); err != nil {
			return err
		}
		fmt.Printf("  %-40s %6d\n", userID, total)
		any = true
	}
	if !any {
		fmt.Println("  (no calls today)")
	}
	return rows.Err()
}
