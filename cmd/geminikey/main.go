package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"visor/internal/infra"
	"visor/internal/infra/credentials"
)

// geminikey stores, rotates or removes the Gemini API key kept in the
// database so the running service can pick it up without a redeploy.
func main() {
	var (
		keyFlag    string
		deleteFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (falls back to GEMINI_API_KEY)")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored key instead of writing one")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" && !deleteFlag {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" && !deleteFlag {
		fmt.Fprintln(os.Stderr, "gemini API key is required via -key or GEMINI_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "geminikey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()

	if deleteFlag {
		if err := store.DeleteGeminiAPIKey(execCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete gemini api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gemini API key removed")
		return
	}

	if err := store.SetGeminiAPIKey(execCtx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist gemini api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Gemini API key stored successfully")
}
