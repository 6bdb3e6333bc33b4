package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSnapshotNotFound снимок с таким идентификатором не сохранен
	ErrSnapshotNotFound = errors.New("снимок не найден")
	// ErrInvalidGridName имя сетки пустое или содержит недопустимые символы
	ErrInvalidGridName = errors.New("недопустимое имя сетки")
)

// Snapshot сериализованное состояние сетки.
// Data хранит BCF-буфер корня (возможно, в кадре zstd), Scale - масштаб сетки.
type Snapshot struct {
	ID        string    `json:"id"`
	Grid      string    `json:"grid"`
	Scale     uint32    `json:"scale"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRepo определяет интерфейс хранения снимков сеток.
//
// Голова сетки (head) - последнее сохраненное состояние, которое загружается
// при старте. Именованные снимки неизменяемы и восстанавливаются по ID.
type SnapshotRepo interface {
	// SaveHead перезаписывает голову сетки snap.Grid
	SaveHead(ctx context.Context, snap Snapshot) error

	// LoadHead возвращает голову сетки; false если сетка не сохранялась
	LoadHead(ctx context.Context, grid string) (Snapshot, bool, error)

	// SaveSnapshot сохраняет неизменяемый снимок
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadSnapshot возвращает снимок или ErrSnapshotNotFound
	LoadSnapshot(ctx context.Context, id string) (Snapshot, error)

	// ListSnapshots возвращает снимки сетки без данных, по времени создания
	ListSnapshots(ctx context.Context, grid string) ([]Snapshot, error)

	// ListGrids возвращает отсортированные имена сеток с сохраненной головой
	ListGrids(ctx context.Context) ([]string, error)

	// DeleteGrid удаляет голову и все снимки сетки
	DeleteGrid(ctx context.Context, grid string) error

	Close() error
}

// ValidateGridName проверяет имя сетки: 1..128 символов [a-zA-Z0-9_.-]
func ValidateGridName(name string) error {
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidGridName, name)
	}
	if strings.IndexFunc(name, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_' || r == '-' || r == '.':
			return false
		}
		return true
	}) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidGridName, name)
	}
	return nil
}

func validateSnapshot(snap Snapshot) error {
	if err := ValidateGridName(snap.Grid); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("пустой идентификатор снимка сетки %s", snap.Grid)
	}
	return nil
}

func ctxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
