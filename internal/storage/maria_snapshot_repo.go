package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaSnapshotRepo реализует SnapshotRepo для MariaDB/MySQL.
// Использует таблицы grid_heads и grid_snapshots.
type MariaSnapshotRepo struct {
	db *sql.DB
}

// NewMariaSnapshotRepo подключается к базе и создает таблицы, если их нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaSnapshotRepo(dsn string) (*MariaSnapshotRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaSnapshotRepo{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	return repo, nil
}

func (r *MariaSnapshotRepo) createTables() error {
	queries := []string{`
		CREATE TABLE IF NOT EXISTS grid_heads (
			grid        VARCHAR(128) PRIMARY KEY,
			snapshot_id VARCHAR(36)  NOT NULL,
			scale       INT UNSIGNED NOT NULL,
			data        LONGBLOB     NOT NULL,
			created_at  TIMESTAMP(6) NOT NULL
		) ENGINE=InnoDB
	`, `
		CREATE TABLE IF NOT EXISTS grid_snapshots (
			id         VARCHAR(36)  PRIMARY KEY,
			grid       VARCHAR(128) NOT NULL,
			scale      INT UNSIGNED NOT NULL,
			data       LONGBLOB     NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_grid_created (grid, created_at)
		) ENGINE=InnoDB
	`}

	for _, q := range queries {
		if _, err := r.db.Exec(q); err != nil {
			return fmt.Errorf("ошибка создания таблицы: %w", err)
		}
	}
	return nil
}

// SaveHead использует INSERT ... ON DUPLICATE KEY UPDATE для перезаписи головы
func (r *MariaSnapshotRepo) SaveHead(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	query := `
		INSERT INTO grid_heads (grid, snapshot_id, scale, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			snapshot_id = VALUES(snapshot_id),
			scale = VALUES(scale),
			data = VALUES(data),
			created_at = VALUES(created_at)
	`
	_, err := r.db.ExecContext(ctx, query, snap.Grid, snap.ID, snap.Scale, blob(snap.Data), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения головы сетки %s: %w", snap.Grid, err)
	}
	return nil
}

func (r *MariaSnapshotRepo) LoadHead(ctx context.Context, grid string) (Snapshot, bool, error) {
	query := `SELECT snapshot_id, grid, scale, data, created_at FROM grid_heads WHERE grid = ?`

	var snap Snapshot
	err := r.db.QueryRowContext(ctx, query, grid).
		Scan(&snap.ID, &snap.Grid, &snap.Scale, &snap.Data, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("ошибка загрузки головы сетки %s: %w", grid, err)
	}
	return snap, true, nil
}

func (r *MariaSnapshotRepo) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	query := `INSERT INTO grid_snapshots (id, grid, scale, data, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, snap.ID, snap.Grid, snap.Scale, blob(snap.Data), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка %s: %w", snap.ID, err)
	}
	return nil
}

func (r *MariaSnapshotRepo) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	query := `SELECT id, grid, scale, data, created_at FROM grid_snapshots WHERE id = ?`

	var snap Snapshot
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&snap.ID, &snap.Grid, &snap.Scale, &snap.Data, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("ошибка загрузки снимка %s: %w", id, err)
	}
	return snap, nil
}

func (r *MariaSnapshotRepo) ListSnapshots(ctx context.Context, grid string) ([]Snapshot, error) {
	query := `SELECT id, grid, scale, created_at FROM grid_snapshots WHERE grid = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, grid)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка снимков %s: %w", grid, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Grid, &snap.Scale, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки снимка: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (r *MariaSnapshotRepo) ListGrids(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT grid FROM grid_heads ORDER BY grid`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка сеток: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteGrid удаляет голову и снимки в одной транзакции
func (r *MariaSnapshotRepo) DeleteGrid(ctx context.Context, grid string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_snapshots WHERE grid = ?`, grid); err != nil {
		return fmt.Errorf("ошибка удаления снимков сетки %s: %w", grid, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_heads WHERE grid = ?`, grid); err != nil {
		return fmt.Errorf("ошибка удаления головы сетки %s: %w", grid, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (r *MariaSnapshotRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// blob заменяет nil на пустой срез: драйвер передает nil как NULL
func blob(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
