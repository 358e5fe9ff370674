package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	contracts "certificate-engine/internal/contracts/domain"
	metering "certificate-engine/internal/metering/domain"
)

const defaultContractsTable = "issuance_contracts"

// ContractRepository is a Postgres implementation for issuance contracts.
type ContractRepository struct {
	db    *sql.DB
	table string
}

// NewContractRepository constructs a repository.
func NewContractRepository(db *sql.DB, opts ...ContractOption) *ContractRepository {
	repo := &ContractRepository{db: db, table: defaultContractsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ContractOption configures the repository.
type ContractOption func(*ContractRepository)

// WithContractsTable overrides the table name.
func WithContractsTable(table string) ContractOption {
	return func(repo *ContractRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ListCovering returns contracts for the metering point whose window covers
// the instant, newest creation first.
func (r *ContractRepository) ListCovering(ctx context.Context, gsrn metering.GSRN, at int64) ([]contracts.IssuanceContract, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("contract repo: nil db")
	}
	if gsrn == "" {
		return nil, metering.ErrInvalidGSRN
	}

	query := fmt.Sprintf(`
SELECT id, gsrn, point_type, organization_id, grid_area, fuel_code, tech_code, start_at, end_at, created_at
FROM %s
WHERE gsrn = $1
  AND start_at <= $2
  AND (end_at IS NULL OR end_at > $2)
ORDER BY created_at DESC, id DESC`, r.table)

	instant := time.Unix(at, 0).UTC()
	rows, err := r.db.QueryContext(ctx, query, string(gsrn), instant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []contracts.IssuanceContract
	for rows.Next() {
		var (
			contract contracts.IssuanceContract
			gsrnCol  string
			ptCol    string
			fuelCode sql.NullString
			techCode sql.NullString
			endAt    sql.NullTime
		)
		if err := rows.Scan(
			&contract.ID,
			&gsrnCol,
			&ptCol,
			&contract.OrganizationID,
			&contract.GridArea,
			&fuelCode,
			&techCode,
			&contract.StartAt,
			&endAt,
			&contract.CreatedAt,
		); err != nil {
			return nil, err
		}
		contract.GSRN = metering.GSRN(gsrnCol)
		contract.PointType = metering.PointType(ptCol)
		if fuelCode.Valid || techCode.Valid {
			contract.Technology = &metering.Technology{
				FuelCode: fuelCode.String,
				TechCode: techCode.String,
			}
		}
		if endAt.Valid {
			end := endAt.Time
			contract.EndAt = &end
		}
		result = append(result, contract)
	}
	return result, rows.Err()
}
