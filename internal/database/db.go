package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/WeShare/internal/database/migrations"
	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// uniqueViolation is the Postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(ctx context.Context, connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	p := &PostgresDB{db: db}
	if err := p.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return p, nil
}

func (p *PostgresDB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, p.db, ".")
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) CreateManifest(ctx context.Context, m *models.Manifest) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO upload_manifests (id, created_at) VALUES ($1, $2)`,
		m.ID, m.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}

	query := `
        INSERT INTO upload_files (upload_id, position, original_name, storage_key, content_type, size)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	for i, f := range m.Files {
		_, err := tx.ExecContext(ctx, query,
			m.ID,
			i,
			[]byte(f.OriginalName),
			f.StorageKey,
			f.ContentType,
			f.Size,
		)
		if err != nil {
			return fmt.Errorf("insert file %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (p *PostgresDB) GetManifest(ctx context.Context, id string) (*models.Manifest, error) {
	m := models.Manifest{ID: id}
	err := p.db.QueryRowContext(ctx,
		`SELECT created_at FROM upload_manifests WHERE id = $1`, id,
	).Scan(&m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select manifest: %w", err)
	}

	query := `
        SELECT original_name, storage_key, content_type, size
        FROM upload_files
        WHERE upload_id = $1
        ORDER BY position
    `
	rows, err := p.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	defer rows.Close()

	m.Files = []models.FileRecord{}
	for rows.Next() {
		var (
			f    models.FileRecord
			name []byte
		)
		if err := rows.Scan(&name, &f.StorageKey, &f.ContentType, &f.Size); err != nil {
			return nil, err
		}
		f.OriginalName = string(name)
		m.Files = append(m.Files, f)
	}
	return &m, rows.Err()
}
