package repository

import (
	"context"
	"errors"
	"fmt"

	"yakunote/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrStorage  = errors.New("storage error")
)

// SummaryStore persists summary records per user.
type SummaryStore interface {
	Create(ctx context.Context, summary *model.Summary) error
	ListByUser(ctx context.Context, userID string, skip, limit int) ([]model.SummaryPreview, int64, error)
	GetByID(ctx context.Context, id string) (*model.Summary, error)
	// Delete reports how many rows were removed; zero is not an error.
	Delete(ctx context.Context, id string) (int64, error)
	Ping(ctx context.Context) error
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s failed: %w: %w", op, ErrStorage, err)
}
