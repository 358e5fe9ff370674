// Command seed_contracts fills issuance_contracts with synthetic metering
// points for local and performance testing.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn          string
	count        int
	startDate    string
	months       int
	gridArea     string
	organization string
	consumers    float64
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.count <= 0 {
		log.Fatal("count must be > 0")
	}

	start, err := time.Parse("2006-01-02", cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	seeded := 0
	for i := 0; i < cfg.count; i++ {
		gsrn := fmt.Sprintf("5713130000%08d", i+1)
		pointType := "production"
		fuel, tech := "F01040100", "T010000"
		if float64(i%100)/100.0 < cfg.consumers {
			pointType = "consumption"
			fuel, tech = "", ""
		}
		var end *time.Time
		if cfg.months > 0 {
			e := start.AddDate(0, cfg.months, 0)
			end = &e
		}
		_, err := db.ExecContext(ctx, `
INSERT INTO issuance_contracts (id, gsrn, point_type, organization_id, grid_area, fuel_code, tech_code, start_at, end_at, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, now())
ON CONFLICT (id) DO NOTHING`,
			fmt.Sprintf("seed-%s", gsrn), gsrn, pointType, cfg.organization, cfg.gridArea, fuel, tech, start, end)
		if err != nil {
			log.Fatalf("insert contract for %s: %v", gsrn, err)
		}
		seeded++
	}
	log.Printf("seeded %d contracts starting %s", seeded, start.Format("2006-01-02"))
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "db", envFirst("PG_DSN", "DATABASE_URL"), "postgres dsn")
	flag.IntVar(&cfg.count, "count", 100, "number of metering points")
	flag.StringVar(&cfg.startDate, "start-date", time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02"), "contract start date (YYYY-MM-DD)")
	flag.IntVar(&cfg.months, "months", 12, "contract length in months, 0 for open-ended")
	flag.StringVar(&cfg.gridArea, "grid-area", "DK1", "grid area")
	flag.StringVar(&cfg.organization, "org", "org-seed", "owning organization id")
	flag.Float64Var(&cfg.consumers, "consumption-share", 0.3, "fraction of consumption points (0..1)")
	flag.Parse()
	return cfg
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
