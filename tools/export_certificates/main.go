// Command export_certificates writes the current certificate ledger to an
// XLSX workbook by replaying every event stream.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/xuri/excelize/v2"

	certificate "certificate-engine/internal/certificates/domain"
	certpostgres "certificate-engine/internal/certificates/infrastructure/postgres"
)

func main() {
	dsn := flag.String("db", os.Getenv("DATABASE_URL"), "postgres dsn")
	out := flag.String("out", "certificates.xlsx", "output path")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("-db or DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo, err := certificate.NewRepository(certpostgres.NewEventStore(db))
	if err != nil {
		log.Fatalf("repository: %v", err)
	}

	ids, err := listStreamIDs(ctx, db)
	if err != nil {
		log.Fatalf("list streams: %v", err)
	}

	workbook, err := buildWorkbook(ctx, repo, ids)
	if err != nil {
		log.Fatalf("build workbook: %v", err)
	}
	if err := workbook.SaveAs(*out); err != nil {
		log.Fatalf("save %s: %v", *out, err)
	}
	log.Printf("wrote %d certificates to %s", len(ids), *out)
}

func listStreamIDs(ctx context.Context, db *sql.DB) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT stream_id FROM certificate_events ORDER BY stream_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func buildWorkbook(ctx context.Context, repo *certificate.Repository, ids []uuid.UUID) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "certificates"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"id", "point_type", "gsrn", "grid_area",
		"period_start", "period_end", "wallet_position",
		"quantity", "status", "owner", "rejection_reason", "version",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	for row, id := range ids {
		cert, err := repo.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		position := ""
		if p, ok := certificate.Position(cert.PeriodStart()); ok {
			position = fmt.Sprintf("%d", p)
		}
		values := []any{
			cert.ID().String(),
			string(cert.PointType()),
			cert.GSRN(),
			cert.GridArea(),
			time.Unix(cert.PeriodStart(), 0).UTC().Format(time.RFC3339),
			time.Unix(cert.PeriodEnd(), 0).UTC().Format(time.RFC3339),
			position,
			cert.Quantity(),
			string(cert.Status()),
			cert.Owner(),
			cert.RejectionReason(),
			cert.Version(),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}
	return f, nil
}
