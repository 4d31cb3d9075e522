package repository

import (
	"context"

	"yakunote/internal/model"
	"yakunote/internal/platform/supabase"
)

// PostgRESTSummaryRepository stores summaries through the Supabase REST API.
type PostgRESTSummaryRepository struct {
	client *supabase.RestClient
	table  string
}

func NewPostgRESTSummaryRepository(client *supabase.RestClient, table string) *PostgRESTSummaryRepository {
	if table == "" {
		table = model.Summary{}.TableName()
	}
	return &PostgRESTSummaryRepository{client: client, table: table}
}

type summaryInsert struct {
	UserID       string  `json:"user_id"`
	OriginalText string  `json:"original_text"`
	Summary      string  `json:"summary"`
	URL          *string `json:"url"`
}

// Create lets the database assign id and created_at and copies them back into summary.
func (r *PostgRESTSummaryRepository) Create(ctx context.Context, summary *model.Summary) error {
	row := summaryInsert{
		UserID:       summary.UserID,
		OriginalText: summary.OriginalText,
		Summary:      summary.Summary,
		URL:          summary.URL,
	}
	var created []model.Summary
	if err := r.client.Insert(ctx, r.table, row, &created); err != nil {
		return storageErr("create summary", err)
	}
	if len(created) > 0 {
		summary.ID = created[0].ID
		summary.CreatedAt = created[0].CreatedAt
	}
	return nil
}

func (r *PostgRESTSummaryRepository) ListByUser(ctx context.Context, userID string, skip, limit int) ([]model.SummaryPreview, int64, error) {
	previews := make([]model.SummaryPreview, 0, limit)
	total, err := r.client.Select(ctx, r.table, supabase.Query{
		Select:  "id,summary,url,created_at",
		Filters: map[string]string{"user_id": "eq." + userID},
		Order:   "created_at.desc",
		Offset:  skip,
		Limit:   limit,
		Count:   true,
	}, &previews)
	if err != nil {
		return nil, 0, storageErr("list summaries", err)
	}
	if total < 0 {
		total = int64(len(previews))
	}
	return previews, total, nil
}

func (r *PostgRESTSummaryRepository) GetByID(ctx context.Context, id string) (*model.Summary, error) {
	var summary model.Summary
	_, err := r.client.Select(ctx, r.table, supabase.Query{
		Select:  "*",
		Filters: map[string]string{"id": "eq." + id},
		Single:  true,
	}, &summary)
	if err != nil {
		if supabase.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get summary", err)
	}
	if summary.ID == "" {
		return nil, ErrNotFound
	}
	return &summary, nil
}

func (r *PostgRESTSummaryRepository) Delete(ctx context.Context, id string) (int64, error) {
	n, err := r.client.Delete(ctx, r.table, map[string]string{"id": "eq." + id})
	if err != nil {
		return 0, storageErr("delete summary", err)
	}
	return n, nil
}

func (r *PostgRESTSummaryRepository) Ping(ctx context.Context) error {
	if !r.client.Configured() {
		return storageErr("ping rest api", supabase.ErrNotConfigured)
	}
	if err := r.client.Ping(ctx); err != nil {
		return storageErr("ping rest api", err)
	}
	return nil
}
