// Command admin reopens permanently-failed fund movements after an
// operator has fixed the provider-side cause. Reopened entries flip back
// to pending and keep their attempt history; the next reconciliation
// cycle retries them under the same idempotency key.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "postgres connection string")
	opKey := flag.String("op-key", "", "reopen a single operation key (default: all failed entries)")
	flag.Parse()

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "no database URL: set DATABASE_URL or pass -db")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	query := `UPDATE idempotency_entries SET status = 'pending', updated_at = now() WHERE status = 'failed'`
	args := []any{}
	if *opKey != "" {
		query += ` AND op_key = $1`
		args = append(args, *opKey)
	}

	res, err := db.Exec(query, args...)
	if err != nil {
		panic(err)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("Reopened %d failed entries\n", n)
}
