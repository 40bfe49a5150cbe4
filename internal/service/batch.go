package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certgrouper/internal/archive"
	"certgrouper/internal/grouping"
	"certgrouper/internal/logging"
	"certgrouper/internal/metrics"
	"certgrouper/internal/model"
	"certgrouper/internal/repository"
	"certgrouper/internal/storage"
)

var (
	ErrIDRequired            = errors.New("id is required")
	ErrNotFound              = errors.New("batch not found")
	ErrNoArchives            = errors.New("no archives supplied")
	ErrTooManyArchives       = errors.New("too many archives")
	ErrNoQualifyingDocuments = errors.New("no PDF certificates found inside the archives")
	ErrStorageDisabled       = errors.New("archive publishing is not configured")
	ErrHistoryDisabled       = errors.New("batch history is not configured")
	ErrNotPublished          = errors.New("batch archive was not published")
)

const (
	DefaultMaxArchives    = 50
	DefaultOutputFilename = "Sharp_iHasco_Grouped.zip"
	defaultPresignExpiry  = time.Hour
)

var tracer = otel.Tracer("certgrouper/internal/service")

// LimitError reports a batch above the archive cap. It matches ErrTooManyArchives.
type LimitError struct {
	Uploaded int
	Max      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: %d uploaded, maximum is %d", ErrTooManyArchives, e.Uploaded, e.Max)
}

func (e *LimitError) Is(target error) bool { return target == ErrTooManyArchives }

// BatchListResult is the service-level DTO for paginated batch history.
type BatchListResult struct {
	Items []model.Batch `json:"data"`
	Total int           `json:"total"`
}

// Observer receives one call per finished batch operation.
type Observer interface {
	ObserveBatch(operation, outcome string, documents, groups, size int)
}

// Options tunes a BatchService. Zero values fall back to defaults.
type Options struct {
	MaxArchives    int
	OutputFilename string
	PresignExpiry  time.Duration
	Logger         *slog.Logger
	Observer       Observer
}

// BatchService groups uploaded certificate archives by course.
// Every call is independent; the service holds no per-batch state.
type BatchService interface {
	// Process builds the grouped archive. An empty batch is a no-op returning a nil Archive.
	Process(ctx context.Context, archives []model.InputArchive) (*model.BatchResult, error)

	// Preview reports what Process would produce without building the archive.
	Preview(ctx context.Context, archives []model.InputArchive) (*model.Summary, error)

	// Publish builds the grouped archive, uploads it to object storage and returns a presigned link.
	// If recording the batch fails the uploaded object is removed again.
	Publish(ctx context.Context, archives []model.InputArchive) (*model.PublishedBatch, error)

	// List returns recorded batches using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*BatchListResult, error)

	// Get returns a single recorded batch.
	Get(ctx context.Context, id string) (*model.Batch, error)

	// Download streams the published archive of a recorded batch.
	Download(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error)
}

type batchService struct {
	store storage.Storage
	repo  repository.BatchRepository
	opts  Options
}

// NewBatchService constructs a BatchService. store and repo may be nil, which disables
// publishing and history respectively.
func NewBatchService(store storage.Storage, repo repository.BatchRepository, opts Options) BatchService {
	if opts.MaxArchives <= 0 {
		opts.MaxArchives = DefaultMaxArchives
	}
	if opts.OutputFilename == "" {
		opts.OutputFilename = DefaultOutputFilename
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = defaultPresignExpiry
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &batchService{store: store, repo: repo, opts: opts}
}

type noopObserver struct{}

func (noopObserver) ObserveBatch(string, string, int, int, int) {}

// grouped is the intermediate result of one pipeline run.
type grouped struct {
	groups  *grouping.Groups
	archive []byte
	summary model.Summary
}

// run extracts, groups and optionally packages a non-empty batch.
func (s *batchService) run(ctx context.Context, archives []model.InputArchive, pack bool) (*grouped, error) {
	if len(archives) > s.opts.MaxArchives {
		return nil, &LimitError{Uploaded: len(archives), Max: s.opts.MaxArchives}
	}

	docs, err := archive.Extract(archives)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := grouping.Group(docs)
	if groups.Total() == 0 {
		return nil, ErrNoQualifyingDocuments
	}

	out := &grouped{groups: groups}
	var stats archive.PackageStats
	if pack {
		out.archive, stats, err = archive.Package(groups)
		if err != nil {
			return nil, fmt.Errorf("package archive: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		stats = archive.Plan(groups)
	}

	out.summary = model.Summary{
		ArchiveCount:   len(archives),
		TotalDocuments: groups.Total(),
		GroupCount:     groups.Len(),
		Overwritten:    stats.Overwritten,
		Groups:         groups.Counts(),
	}
	if stats.Overwritten > 0 {
		s.opts.Logger.WarnContext(ctx, "batch_path_collisions", slog.Int("overwritten", stats.Overwritten))
	}
	return out, nil
}

func (s *batchService) Process(ctx context.Context, archives []model.InputArchive) (res *model.BatchResult, err error) {
	ctx, span := startSpan(ctx, "BatchService.Process", len(archives))
	defer func() {
		var sum *model.Summary
		var size int
		if res != nil {
			sum, size = &res.Summary, len(res.Archive)
		}
		s.finish(ctx, span, "process", err, sum, size)
	}()

	if len(archives) == 0 {
		return &model.BatchResult{Filename: s.opts.OutputFilename, Summary: model.Summary{Groups: []model.GroupCount{}}}, nil
	}

	g, err := s.run(ctx, archives, true)
	if err != nil {
		return nil, err
	}

	res = &model.BatchResult{
		ID:       uuid.NewString(),
		Filename: s.opts.OutputFilename,
		Archive:  g.archive,
		Summary:  g.summary,
	}
	span.SetAttributes(attribute.String("batch.id", res.ID))

	if s.repo != nil {
		if _, err := s.repo.Create(ctx, newBatchRecord(res.ID, "", g.summary)); err != nil {
			s.opts.Logger.WarnContext(ctx, "batch_history_record_failed",
				slog.String("batch_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

func (s *batchService) Preview(ctx context.Context, archives []model.InputArchive) (sum *model.Summary, err error) {
	ctx, span := startSpan(ctx, "BatchService.Preview", len(archives))
	defer func() { s.finish(ctx, span, "preview", err, sum, 0) }()

	if len(archives) == 0 {
		return &model.Summary{Groups: []model.GroupCount{}}, nil
	}

	g, err := s.run(ctx, archives, false)
	if err != nil {
		return nil, err
	}
	return &g.summary, nil
}

func (s *batchService) Publish(ctx context.Context, archives []model.InputArchive) (pub *model.PublishedBatch, err error) {
	ctx, span := startSpan(ctx, "BatchService.Publish", len(archives))
	var size int
	defer func() {
		var sum *model.Summary
		if pub != nil {
			sum = &pub.Summary
		}
		s.finish(ctx, span, "publish", err, sum, size)
	}()

	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	if len(archives) == 0 {
		return nil, ErrNoArchives
	}

	g, err := s.run(ctx, archives, true)
	if err != nil {
		return nil, err
	}
	size = len(g.archive)

	id := uuid.NewString()
	key := path.Join("batches", id, s.opts.OutputFilename)
	span.SetAttributes(attribute.String("batch.id", id))

	if _, err := s.store.Put(ctx, key, bytes.NewReader(g.archive), storage.PutObjectOptions{
		Size:        int64(size),
		ContentType: archive.ContentType,
		Metadata: map[string]string{
			"batch-id":       id,
			"document-count": strconv.Itoa(g.summary.TotalDocuments),
		},
	}); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	if s.repo != nil {
		if _, err := s.repo.Create(ctx, newBatchRecord(id, key, g.summary)); err != nil {
			if delErr := s.store.Delete(ctx, key); delErr != nil {
				return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
			}
			return nil, fmt.Errorf("db save failed: %w", err)
		}
	}

	url, err := s.store.PresignGet(ctx, key, s.opts.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}

	return &model.PublishedBatch{
		BatchID:     id,
		ObjectKey:   key,
		DownloadURL: url,
		ExpiresAt:   time.Now().UTC().Add(s.opts.PresignExpiry),
		Summary:     g.summary,
	}, nil
}

// List returns paginated batches without exposing repository types.
func (s *batchService) List(ctx context.Context, limit, offset int) (*BatchListResult, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &BatchListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a batch by ID.
func (s *batchService) Get(ctx context.Context, id string) (*model.Batch, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// Download opens the stored archive of a published batch.
func (s *batchService) Download(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, storage.ObjectInfo{}, ErrStorageDisabled
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if b.ObjectKey == "" {
		return nil, storage.ObjectInfo{}, ErrNotPublished
	}
	rc, info, err := s.store.Get(ctx, b.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, storage.ObjectInfo{}, fmt.Errorf("%w: stored archive has expired", ErrNotPublished)
	}
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("open stored archive: %w", err)
	}
	return rc, info, nil
}

func newBatchRecord(id, key string, sum model.Summary) *model.Batch {
	return &model.Batch{
		ID:            id,
		ArchiveCount:  sum.ArchiveCount,
		DocumentCount: sum.TotalDocuments,
		GroupCount:    sum.GroupCount,
		ObjectKey:     key,
		Groups:        sum.Groups,
		CreatedAt:     time.Now().UTC(),
	}
}

func startSpan(ctx context.Context, name string, archives int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("batch.archives", archives)))
}

// finish closes the span, logs the outcome and reports it to the observer.
func (s *batchService) finish(ctx context.Context, span trace.Span, op string, err error, sum *model.Summary, size int) {
	defer span.End()

	outcome := outcomeOf(err, sum)
	var docs, groups int
	if sum != nil {
		docs, groups = sum.TotalDocuments, sum.GroupCount
	}
	s.opts.Observer.ObserveBatch(op, outcome, docs, groups, size)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.opts.Logger.InfoContext(ctx, "batch_rejected",
			slog.String("operation", op),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return
	}

	span.SetAttributes(
		attribute.Int("batch.documents", docs),
		attribute.Int("batch.groups", groups),
	)
	s.opts.Logger.InfoContext(ctx, "batch_processed",
		slog.String("operation", op),
		slog.String("outcome", outcome),
		slog.Int("documents", docs),
		slog.Int("groups", groups),
		slog.Int("bytes", size),
	)
}

func outcomeOf(err error, sum *model.Summary) string {
	switch {
	case err == nil && (sum == nil || sum.TotalDocuments == 0):
		return metrics.OutcomeEmpty
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, archive.ErrBadArchive):
		return metrics.OutcomeBadArchive
	case errors.Is(err, ErrNoQualifyingDocuments):
		return metrics.OutcomeNoDocuments
	case errors.Is(err, ErrTooManyArchives):
		return metrics.OutcomeTooMany
	default:
		return metrics.OutcomeError
	}
}
