package services

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/sha3"

	"postkeeper/app/feed"
	"postkeeper/app/models"
	"postkeeper/app/repositories"
)

var syncTracer = otel.Tracer("sync")

// Feed is the external post source.
type Feed interface {
	FetchAll(ctx context.Context) ([]feed.Record, error)
	Source() string
}

// invalidator is implemented by feeds that cache their last response.
type invalidator interface {
	Invalidate()
}

// SyncOptions tunes the import.
type SyncOptions struct {
	// Dedupe consults the import ledger so a record is stored at most once.
	// When false every sync stores every feed record as a new post.
	Dedupe bool
	Logger *slog.Logger
}

// SyncService imports feed records as local posts.
type SyncService struct {
	posts  repositories.PostRepository
	ledger repositories.ImportLedger
	feed   Feed
	dedupe bool
	logger *slog.Logger
}

// NewSyncService creates a new SyncService. ledger may be nil when dedupe is off.
func NewSyncService(posts repositories.PostRepository, ledger repositories.ImportLedger, source Feed, opts SyncOptions) *SyncService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		posts:  posts,
		ledger: ledger,
		feed:   source,
		dedupe: opts.Dedupe && ledger != nil,
		logger: logger,
	}
}

// SyncResult counts what a sync run did with each record. Invalid counts
// records that failed post validation and were left out of the run.
type SyncResult struct {
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Invalid   int `json:"invalid"`
}

// Sync fetches the whole feed and stores each record as a post, in feed
// order. It returns the newly created posts. A record that does not make a
// valid post is skipped and writes nothing. A fetch failure writes nothing;
// a save failure stops the run and returns the posts created so far together
// with the error. Nothing is cleaned up.
func (s *SyncService) Sync(ctx context.Context) ([]*models.Post, error) {
	created, _, err := s.Run(ctx)
	return created, err
}

// Run is Sync with per-record counts.
func (s *SyncService) Run(ctx context.Context) ([]*models.Post, SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "Sync.Service.Run")
	defer span.End()

	var result SyncResult
	records, err := s.feed.FetchAll(ctx)
	if err != nil {
		return nil, result, fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("feed.records", len(records)),
		attribute.Bool("sync.dedupe", s.dedupe),
	)

	created := make([]*models.Post, 0, len(records))
	for _, record := range records {
		if err := postFromRecord(record).Validate(); err != nil {
			result.Invalid++
			s.logger.WarnContext(ctx, "feed record rejected",
				"source", s.feed.Source(),
				"external_id", record.ID,
				"error", err,
			)
			continue
		}

		if s.dedupe {
			post, refreshed, err := s.reconcile(ctx, record)
			if post != nil {
				created = append(created, post)
				result.Created++
			}
			if err != nil {
				s.logRun(ctx, result, err)
				return created, result, fail(span, err)
			}
			switch {
			case refreshed:
				result.Refreshed++
			case post == nil:
				result.Skipped++
			}
			continue
		}

		post := postFromRecord(record)
		if err := s.posts.Save(ctx, post); err != nil {
			s.logRun(ctx, result, err)
			return created, result, fail(span, err)
		}
		created = append(created, post)
		result.Created++
	}

	// the ledger now holds this snapshot, so the next run fetches fresh content
	if cached, ok := s.feed.(invalidator); ok && s.dedupe {
		cached.Invalidate()
	}

	s.logRun(ctx, result, nil)
	return created, result, nil
}

// reconcile imports one record against the ledger. It returns the post when
// one was created, or refreshed=true when an existing post took new content.
func (s *SyncService) reconcile(ctx context.Context, record feed.Record) (*models.Post, bool, error) {
	source := s.feed.Source()
	fp := fingerprint(record)

	entry, err := s.ledger.Lookup(ctx, source, record.ID)
	if err != nil {
		return nil, false, err
	}

	if entry != nil {
		existing, err := s.posts.GetByID(ctx, entry.PostID)
		switch {
		case err == nil:
			if entry.Fingerprint == fp {
				return nil, false, nil
			}
			existing.Title = record.Title
			existing.Body = record.Body
			if err := s.posts.Save(ctx, existing); err != nil {
				return nil, false, err
			}
			entry.Fingerprint = fp
			return nil, true, s.ledger.Record(ctx, *entry)
		case !models.IsNotFound(err):
			return nil, false, err
		}
		// the local post was deleted since; import it again
	}

	post := postFromRecord(record)
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, false, err
	}
	err = s.ledger.Record(ctx, models.ImportEntry{
		Source:      source,
		ExternalID:  record.ID,
		PostID:      post.ID,
		Fingerprint: fp,
	})
	return post, false, err
}

func (s *SyncService) logRun(ctx context.Context, result SyncResult, err error) {
	attrs := []any{
		"source", s.feed.Source(),
		"dedupe", s.dedupe,
		"created", result.Created,
		"refreshed", result.Refreshed,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "feed sync aborted", append(attrs, "error", err)...)
		return
	}
	s.logger.InfoContext(ctx, "feed sync finished", attrs...)
}

func postFromRecord(record feed.Record) *models.Post {
	return &models.Post{
		Title:    record.Title,
		Body:     record.Body,
		Comments: []models.Comment{},
	}
}

func fingerprint(record feed.Record) string {
	sum := sha3.Sum256([]byte(record.Title + "\x00" + record.Body))
	return hex.EncodeToString(sum[:])
}
