package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/pkg/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS products (
	product_id       INTEGER     NOT NULL,
	language         VARCHAR(8)  NOT NULL,
	rank             INTEGER     NOT NULL,
	name             TEXT        NOT NULL,
	url              TEXT        NOT NULL DEFAULT '',
	revenue          TEXT        NOT NULL DEFAULT '',
	monthly_visits   TEXT        NOT NULL DEFAULT '',
	description      TEXT        NOT NULL DEFAULT '',
	snapshot_date    VARCHAR(16) NOT NULL DEFAULT '',
	full_analysis    TEXT,
	analysis_backend TEXT,
	analyzed_at      TIMESTAMPTZ,
	PRIMARY KEY (product_id, language)
)`

// Postgres 基于 PostgreSQL 的表格存储
type Postgres struct {
	db *sql.DB
}

// NewPostgres 建立数据库连接并确保表结构存在
func NewPostgres(cfg config.DBConfig) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

var _ RowStore = (*Postgres)(nil)

// Close 关闭连接
func (p *Postgres) Close() error {
	return p.db.Close()
}

const rowColumns = `product_id, language, rank, name, url, revenue,
	monthly_visits, description, snapshot_date, full_analysis, analysis_backend, analyzed_at`

func scanRow(scanner interface{ Scan(...any) error }) (*model.TabularRow, error) {
	var r model.TabularRow
	var analysis, backend sql.NullString
	var analyzedAt sql.NullTime

	err := scanner.Scan(&r.ProductID, &r.Language, &r.Rank, &r.Name, &r.URL,
		&r.Revenue, &r.MonthlyVisits, &r.Description, &r.SnapshotDate,
		&analysis, &backend, &analyzedAt)
	if err != nil {
		return nil, err
	}

	r.FullAnalysis = analysis.String
	r.AnalysisBackend = backend.String
	if analyzedAt.Valid {
		t := analyzedAt.Time
		r.AnalyzedAt = &t
	}
	return &r, nil
}

// ListRows implements RowStore
func (p *Postgres) ListRows(ctx context.Context, lang model.Language) ([]model.TabularRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE language = $1 ORDER BY rank`, rowColumns)
	rows, err := p.db.QueryContext(ctx, query, string(lang))
	if err != nil {
		return nil, fmt.Errorf("list rows failed: %w", err)
	}
	defer rows.Close()

	var out []model.TabularRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ReadRow implements RowStore
func (p *Postgres) ReadRow(ctx context.Context, id int, lang model.Language) (*model.TabularRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE product_id = $1 AND language = $2`, rowColumns)
	r, err := scanRow(p.db.QueryRowContext(ctx, query, id, string(lang)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read row failed: %w", err)
	}
	return r, nil
}

// WriteRows implements RowStore
func (p *Postgres) WriteRows(ctx context.Context, rows []model.TabularRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	const upsert = `
		INSERT INTO products (product_id, language, rank, name, url, revenue,
			monthly_visits, description, snapshot_date, full_analysis, analysis_backend, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (product_id, language) DO UPDATE SET
			rank = EXCLUDED.rank,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			revenue = EXCLUDED.revenue,
			monthly_visits = EXCLUDED.monthly_visits,
			description = EXCLUDED.description,
			snapshot_date = EXCLUDED.snapshot_date,
			full_analysis = EXCLUDED.full_analysis,
			analysis_backend = EXCLUDED.analysis_backend,
			analyzed_at = EXCLUDED.analyzed_at`

	for _, r := range rows {
		var analysis, backend sql.NullString
		var analyzedAt sql.NullTime
		if r.FullAnalysis != "" {
			analysis = sql.NullString{String: r.FullAnalysis, Valid: true}
		}
		if r.AnalysisBackend != "" {
			backend = sql.NullString{String: r.AnalysisBackend, Valid: true}
		}
		if r.AnalyzedAt != nil {
			analyzedAt = sql.NullTime{Time: *r.AnalyzedAt, Valid: true}
		}

		_, err := tx.ExecContext(ctx, upsert, r.ProductID, string(r.Language), r.Rank,
			r.Name, r.URL, r.Revenue, r.MonthlyVisits, r.Description, r.SnapshotDate,
			analysis, backend, analyzedAt)
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
			return fmt.Errorf("write row %d failed: %w", r.ProductID, err)
		}
	}

	return tx.Commit()
}

// LatestSnapshotDate implements RowStore
func (p *Postgres) LatestSnapshotDate(ctx context.Context, lang model.Language) (string, error) {
	var date sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT MAX(snapshot_date) FROM products WHERE language = $1`, string(lang)).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("query latest snapshot failed: %w", err)
	}
	return date.String, nil
}
