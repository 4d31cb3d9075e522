package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"yakunote/internal/model"
	"yakunote/internal/repository"
)

type EnglishSummarizer interface {
	ResummarizeEnglish(ctx context.Context, text string) (string, error)
}

type EnglishSummaryCache interface {
	GetEnglish(ctx context.Context, id string) (string, bool, error)
	SetEnglish(ctx context.Context, id, summary string) error
	MarkPending(ctx context.Context, id string) (bool, error)
	Invalidate(ctx context.Context, id string) error
}

type SummaryEventPublisher interface {
	PublishSummarySaved(ctx context.Context, event model.SummarySavedEvent) error
}

// LibraryService manages a user's saved summaries.
type LibraryService struct {
	store      repository.SummaryStore
	summarizer EnglishSummarizer
	cache      EnglishSummaryCache
	publisher  SummaryEventPublisher
	log        *slog.Logger
}

type LibraryOption func(*LibraryService)

func WithEnglishCache(cache EnglishSummaryCache) LibraryOption {
	return func(s *LibraryService) { s.cache = cache }
}

func WithEventPublisher(publisher SummaryEventPublisher) LibraryOption {
	return func(s *LibraryService) { s.publisher = publisher }
}

func NewLibraryService(store repository.SummaryStore, summarizer EnglishSummarizer, log *slog.Logger, opts ...LibraryOption) *LibraryService {
	if log == nil {
		log = slog.Default()
	}
	s := &LibraryService{store: store, summarizer: summarizer, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SaveInput struct {
	Text    string
	Summary string
	UserID  string
	URL     string
}

type ListResult struct {
	Summaries []model.SummaryPreview
	Page      model.Page
}

// Save stores a summary for principal. The request's user id must be the principal's own.
// Text and summary are stored exactly as given.
func (s *LibraryService) Save(ctx context.Context, principal *model.Principal, input SaveInput) (*model.Summary, error) {
	userID := strings.TrimSpace(input.UserID)
	switch {
	case strings.TrimSpace(input.Text) == "":
		return nil, invalid("text", "is required")
	case strings.TrimSpace(input.Summary) == "":
		return nil, invalid("summary", "is required")
	case userID == "":
		return nil, invalid("user_id", "is required")
	}

	if principal == nil {
		return nil, ErrUnauthenticated
	}
	if principal.ID != userID {
		return nil, ErrForbidden
	}

	record := &model.Summary{
		UserID:       userID,
		OriginalText: input.Text,
		Summary:      input.Summary,
	}
	if u := strings.TrimSpace(input.URL); u != "" {
		record.URL = &u
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "summary saved", "summary_id", record.ID, "user_id", userID)

	if s.publisher != nil {
		event := model.SummarySavedEvent{ID: record.ID, UserID: userID, SavedAt: time.Now().UTC()}
		if err := s.publisher.PublishSummarySaved(ctx, event); err != nil {
			s.log.WarnContext(ctx, "publish summary saved event failed", "summary_id", record.ID, "error", err)
		}
	}
	return record, nil
}

func (s *LibraryService) List(ctx context.Context, userID string, skip, limit int) (*ListResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}

	page := model.NewPage(skip, limit)
	previews, total, err := s.store.ListByUser(ctx, userID, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	page.Total = total
	return &ListResult{Summaries: previews, Page: page}, nil
}

func (s *LibraryService) Get(ctx context.Context, id string) (*model.Summary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id", "is required")
	}
	return s.store.GetByID(ctx, id)
}

// Delete removes a summary. Deleting an unknown id succeeds and reports zero rows.
func (s *LibraryService) Delete(ctx context.Context, id string) (int64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, invalid("id", "is required")
	}

	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		s.log.WarnContext(ctx, "delete matched no summary", "summary_id", id)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log.WarnContext(ctx, "invalidate english summary failed", "summary_id", id, "error", err)
		}
	}
	return n, nil
}

// English returns the record with its summary replaced by an English re-summary of the original text.
func (s *LibraryService) English(ctx context.Context, id string) (*model.Summary, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	english, err := s.englishFor(ctx, record)
	if err != nil {
		return nil, err
	}
	out := *record
	out.Summary = english
	return &out, nil
}

// PrefetchEnglish computes and caches the English re-summary ahead of a request.
func (s *LibraryService) PrefetchEnglish(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if _, ok, err := s.cache.GetEnglish(ctx, id); err == nil && ok {
		return nil
	}
	claimed, err := s.cache.MarkPending(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	record, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		_ = s.cache.Invalidate(ctx, id)
		return nil
	}
	if err != nil {
		_ = s.cache.Invalidate(ctx, id)
		return err
	}
	if _, err := s.englishFor(ctx, record); err != nil {
		_ = s.cache.Invalidate(ctx, id)
		return err
	}
	return nil
}

func (s *LibraryService) englishFor(ctx context.Context, record *model.Summary) (string, error) {
	if strings.TrimSpace(record.OriginalText) == "" {
		return "", invalid("original_text", "is missing in the stored summary")
	}

	// An on-demand request claims the pending marker too, so a queued prefetch skips the record.
	claimed := false
	if s.cache != nil {
		cached, ok, err := s.cache.GetEnglish(ctx, record.ID)
		if err != nil {
			s.log.WarnContext(ctx, "read english summary cache failed", "summary_id", record.ID, "error", err)
		} else if ok {
			return cached, nil
		}
		if claimed, err = s.cache.MarkPending(ctx, record.ID); err != nil {
			s.log.WarnContext(ctx, "set english summary pending marker failed", "summary_id", record.ID, "error", err)
		}
	}

	english, err := s.summarizer.ResummarizeEnglish(ctx, record.OriginalText)
	if err != nil {
		if claimed {
			if err := s.cache.Invalidate(ctx, record.ID); err != nil {
				s.log.WarnContext(ctx, "release english summary pending marker failed", "summary_id", record.ID, "error", err)
			}
		}
		return "", fmt.Errorf("english summary of %s failed: %w", record.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetEnglish(ctx, record.ID, english); err != nil {
			s.log.WarnContext(ctx, "write english summary cache failed", "summary_id", record.ID, "error", err)
		}
	}
	return english, nil
}
