package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS prediction_history (
		id         UUID PRIMARY KEY,
		domain     TEXT NOT NULL,
		input      DOUBLE PRECISION NOT NULL,
		result     JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS prediction_history_domain_created_idx
		ON prediction_history (domain, created_at DESC);
`

// PostgresStore persists prediction records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create prediction_history schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec models.PredictionRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("parse prediction id: %w", err)
	}
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal prediction result: %w", err)
	}
	query := `
		INSERT INTO prediction_history (id, domain, input, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, id, string(rec.Sector), rec.Input, payload, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert prediction record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, sector domain.Sector, limit int) ([]models.PredictionRecord, error) {
	query := `
		SELECT id, domain, input, result, created_at
		FROM prediction_history
		WHERE domain = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(sector), limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction history: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var (
			rec     models.PredictionRecord
			id      uuid.UUID
			sec     string
			payload []byte
		)
		if err := rows.Scan(&id, &sec, &rec.Input, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction record: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Result); err != nil {
			return nil, fmt.Errorf("decode prediction result: %w", err)
		}
		rec.ID = id.String()
		rec.Sector = domain.Sector(sec)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction history: %w", err)
	}
	return out, nil
}
