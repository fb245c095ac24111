package note

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	apiError "versioned-notes/internal/errors"
	"versioned-notes/internal/logger"
	"versioned-notes/internal/metrics"
	"versioned-notes/internal/worker"
	"versioned-notes/redis"
)

type Service interface {
	CreateNote(ctx context.Context, ownerID uint64, title, content string) (*NoteResponse, error)
	UpdateNote(ctx context.Context, logicalNoteID string, ownerID uint64, title, content string) (*NoteResponse, error)
	DeleteNote(ctx context.Context, logicalNoteID string, ownerID uint64) error
	GetNote(ctx context.Context, logicalNoteID string, ownerID uint64) (*NoteResponse, error)
	ListNotes(ctx context.Context, ownerID uint64) ([]NoteResponse, error)
	ListRevisions(ctx context.Context, logicalNoteID string, ownerID uint64) (*NoteHistory, error)
	RetireOwnerNotes(ctx context.Context, ownerID uint64) (int64, error)
}

type DefaultService struct {
	store    Store
	cache    *redis.Cache
	pool     *worker.WorkerPool
	metrics  *metrics.Metrics
	log      *zap.Logger
	cacheTTL time.Duration
}

func NewService(
	store Store,
	cache *redis.Cache,
	pool *worker.WorkerPool,
	m *metrics.Metrics,
	log *zap.Logger,
	cacheTTL time.Duration,
) Service {
	return &DefaultService{
		store:    store,
		cache:    cache,
		pool:     pool,
		metrics:  m,
		log:      log,
		cacheTTL: cacheTTL,
	}
}

func versionKey(ownerID uint64) string {
	return fmt.Sprintf("user:%d:notes:version", ownerID)
}

// invalidate bumps the owner's list version so the next read misses the cache
func (s *DefaultService) invalidate(ctx context.Context, ownerID uint64) {
	s.cache.IncrementVersion(ctx, versionKey(ownerID))
}

func (s *DefaultService) CreateNote(ctx context.Context, ownerID uint64, title, content string) (*NoteResponse, error) {
	rev, err := s.store.Create(ctx, ownerID, title, content)
	if err != nil {
		return nil, s.fail(err, "create")
	}
	s.metrics.RevisionWritten("create")
	s.invalidate(ctx, ownerID)

	s.log.Debug("note created",
		zap.Uint64(logger.FieldUID, ownerID),
		zap.String(logger.FieldNoteID, rev.LogicalNoteID),
		zap.Uint64(logger.FieldRowID, rev.RowID))

	return toNoteResponse(rev)
}

func (s *DefaultService) UpdateNote(ctx context.Context, logicalNoteID string, ownerID uint64, title, content string) (*NoteResponse, error) {
	rev, err := s.store.Update(ctx, logicalNoteID, ownerID, title, content)
	if err != nil {
		return nil, s.fail(err, "update")
	}
	s.metrics.RevisionWritten("update")
	s.invalidate(ctx, ownerID)

	s.log.Debug("note revised",
		zap.Uint64(logger.FieldUID, ownerID),
		zap.String(logger.FieldNoteID, rev.LogicalNoteID),
		zap.Uint64(logger.FieldRowID, rev.RowID))

	return toNoteResponse(rev)
}

func (s *DefaultService) DeleteNote(ctx context.Context, logicalNoteID string, ownerID uint64) error {
	if err := s.store.Delete(ctx, logicalNoteID, ownerID); err != nil {
		return s.fail(err, "delete")
	}
	s.metrics.RevisionWritten("delete")
	s.invalidate(ctx, ownerID)
	return nil
}

// GetNote hides notes of other owners behind the same 404 as missing ones.
func (s *DefaultService) GetNote(ctx context.Context, logicalNoteID string, ownerID uint64) (*NoteResponse, error) {
	rev, err := s.store.GetCurrent(ctx, logicalNoteID)
	if err != nil {
		return nil, s.fail(err, "get")
	}
	if rev.OwnerID != ownerID {
		return nil, apiError.NotFound("Note not found", ErrNotFound)
	}
	return toNoteResponse(rev)
}

func (s *DefaultService) ListNotes(ctx context.Context, ownerID uint64) ([]NoteResponse, error) {
	// Get the current data version for this user's notes
	v := s.cache.GetVersion(ctx, versionKey(ownerID))
	cacheKey := fmt.Sprintf("notes:u:%d:v:%d", ownerID, v)

	var result []NoteResponse
	// get data from cache
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return result, nil
	}

	revs, err := s.store.ListCurrentByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.fail(err, "list")
	}
	result, err = toNoteResponses(revs)
	if err != nil {
		return nil, apiError.Internal(err)
	}

	// set value to cache off the request path
	if s.cache.Enabled() && s.pool != nil {
		s.pool.Submit(func(ctx context.Context) error {
			return s.cache.Set(ctx, cacheKey, result, s.cacheTTL)
		})
	}

	return result, nil
}

// ListRevisions returns the full history of a note, deleted or not, with a
// content patch per revision. Only the owner may read it.
func (s *DefaultService) ListRevisions(ctx context.Context, logicalNoteID string, ownerID uint64) (*NoteHistory, error) {
	revs, err := s.store.ListAllRevisions(ctx, logicalNoteID)
	if err != nil {
		return nil, s.fail(err, "history")
	}
	if len(revs) == 0 || revs[0].OwnerID != ownerID {
		return nil, apiError.NotFound("Note not found", ErrNotFound)
	}

	items, err := toRevisionResponses(revs)
	if err != nil {
		return nil, apiError.Internal(err)
	}
	for i, patch := range contentPatches(revs) {
		items[i].Patch = patch
	}
	return &NoteHistory{ID: logicalNoteID, Revisions: items}, nil
}

// RetireOwnerNotes deletes every live note of a banned owner.
func (s *DefaultService) RetireOwnerNotes(ctx context.Context, ownerID uint64) (int64, error) {
	n, err := s.store.RetireAllByOwner(ctx, ownerID)
	if err != nil {
		return 0, s.fail(err, "retire")
	}
	s.metrics.RevisionWritten("retire")
	s.invalidate(ctx, ownerID)

	s.log.Info("retired notes of owner",
		zap.Uint64(logger.FieldUID, ownerID),
		zap.Int64("count", n))
	return n, nil
}

// fail maps store errors to API errors and records conflicts.
func (s *DefaultService) fail(err error, op string) error {
	switch {
	case errors.Is(err, ErrValidation):
		return apiError.UnprocessableEntity("Invalid note", err)
	case errors.Is(err, ErrNotFound):
		return apiError.NotFound("Note not found", err)
	case errors.Is(err, ErrConflict):
		s.metrics.Conflict()
		s.log.Info("note write conflict", zap.String("op", op), zap.Error(err))
		return apiError.Conflict("Note was modified concurrently, retry the request", err)
	default:
		return apiError.Internal(errors.Wrapf(err, "note %s", op))
	}
}
