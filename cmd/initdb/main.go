// Command initdb runs pending database migrations against DATABASE_URL
// and exits. It is meant to run once before cmd/server starts.
package main

import (
	"log"
	"os"

	"github.com/neuwcodebox/disaster-feed/internal/store/postgres"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	log.Println("initdb: running migrations…")
	if err := postgres.RunMigrations(dsn); err != nil {
		log.Fatalf("initdb: migrations failed: %v", err)
	}
	log.Println("initdb: migrations OK — exiting")
}
