package note

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxTitleLength = 255

// Store is the append-only revision table. Update and Delete are atomic per
// logical note; writes on different logical notes never wait on each other.
type Store interface {
	Create(ctx context.Context, ownerID uint64, title, content string) (*Revision, error)
	Update(ctx context.Context, logicalNoteID string, ownerID uint64, newTitle, newContent string) (*Revision, error)
	Delete(ctx context.Context, logicalNoteID string, ownerID uint64) error
	GetCurrent(ctx context.Context, logicalNoteID string) (*Revision, error)
	ListCurrentByOwner(ctx context.Context, ownerID uint64) ([]Revision, error)
	ListAllRevisions(ctx context.Context, logicalNoteID string) ([]Revision, error)
	RetireAllByOwner(ctx context.Context, ownerID uint64) (int64, error)
}

type GormStore struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

// NewStore creates a store over the given connection
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// timestamp is UTC at millisecond precision so values read back identically
// from every supported engine.
func (s *GormStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

func checkTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errors.Wrapf(ErrValidation, "title longer than %d characters", MaxTitleLength)
	}
	return nil
}

func (s *GormStore) Create(ctx context.Context, ownerID uint64, title, content string) (*Revision, error) {
	if blank(title) || blank(content) {
		return nil, errors.Wrap(ErrValidation, "title and content are required")
	}
	if err := checkTitle(title); err != nil {
		return nil, err
	}

	now := s.timestamp()
	rev := &Revision{
		LogicalNoteID: s.newID(),
		OwnerID:       ownerID,
		Title:         title,
		Content:       content,
		IsCurrent:     true,
		CreatedAt:     now,
		RevisedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(rev).Error; err != nil {
		return nil, translate(err, "create note")
	}
	return rev, nil
}

func (s *GormStore) Update(ctx context.Context, logicalNoteID string, ownerID uint64, newTitle, newContent string) (*Revision, error) {
	if blank(newTitle) && blank(newContent) {
		return nil, errors.Wrap(ErrValidation, "title or content is required")
	}
	if err := checkTitle(newTitle); err != nil {
		return nil, err
	}

	var next *Revision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := lockCurrent(tx, logicalNoteID, ownerID)
		if err != nil {
			return err
		}

		if err := retire(tx, prev.RowID); err != nil {
			return err
		}

		next = &Revision{
			LogicalNoteID: prev.LogicalNoteID,
			OwnerID:       prev.OwnerID,
			Title:         prev.Title,
			Content:       prev.Content,
			IsCurrent:     true,
			CreatedAt:     prev.CreatedAt,
			RevisedAt:     s.timestamp(),
		}
		if !blank(newTitle) {
			next.Title = newTitle
		}
		if !blank(newContent) {
			next.Content = newContent
		}
		return tx.Create(next).Error
	})
	if err != nil {
		return nil, translate(err, "update note")
	}
	return next, nil
}

// Delete retires the current revision. Deleting a note that has no current
// revision for this owner succeeds without writing anything.
func (s *GormStore) Delete(ctx context.Context, logicalNoteID string, ownerID uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := lockCurrent(tx, logicalNoteID, ownerID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return retire(tx, prev.RowID)
	})
	return translate(err, "delete note")
}

func (s *GormStore) GetCurrent(ctx context.Context, logicalNoteID string) (*Revision, error) {
	var rev Revision
	err := s.db.WithContext(ctx).
		Where("logical_note_id = ? AND is_current = ?", logicalNoteID, true).
		Take(&rev).Error
	if err != nil {
		return nil, translate(err, "get note")
	}
	return &rev, nil
}

func (s *GormStore) ListCurrentByOwner(ctx context.Context, ownerID uint64) ([]Revision, error) {
	revisions := make([]Revision, 0)
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_current = ?", ownerID, true).
		Order("created_at DESC").
		Order("row_id DESC").
		Find(&revisions).Error
	if err != nil {
		return nil, translate(err, "list notes")
	}
	return revisions, nil
}

func (s *GormStore) ListAllRevisions(ctx context.Context, logicalNoteID string) ([]Revision, error) {
	revisions := make([]Revision, 0)
	err := s.db.WithContext(ctx).
		Where("logical_note_id = ?", logicalNoteID).
		Order("revised_at ASC").
		Order("row_id ASC").
		Find(&revisions).Error
	if err != nil {
		return nil, translate(err, "list revisions")
	}
	return revisions, nil
}

// RetireAllByOwner deletes every live note of the owner and returns how many
// were retired. Current rows are locked before the flip, and the pass repeats
// until none are left so a revision committed by an update that held one of
// the locks is retired too.
func (s *GormStore) RetireAllByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	var retired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for {
			var rowIDs []uint64
			err := tx.Model(&Revision{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("owner_id = ? AND is_current = ?", ownerID, true).
				Pluck("row_id", &rowIDs).Error
			if err != nil {
				return err
			}
			if len(rowIDs) == 0 {
				return nil
			}

			res := tx.Model(&Revision{}).
				Where("row_id IN ? AND is_current = ?", rowIDs, true).
				Update("is_current", false)
			if res.Error != nil {
				return res.Error
			}
			retired += res.RowsAffected
		}
	})
	if err != nil {
		return 0, translate(err, "retire notes")
	}
	return retired, nil
}

// lockCurrent selects the current revision FOR UPDATE. A writer that waited on
// the lock may find the row already retired by the winner, so the lookup runs
// once more to pick up the winner's committed revision.
func lockCurrent(tx *gorm.DB, logicalNoteID string, ownerID uint64) (*Revision, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var rev Revision
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("logical_note_id = ? AND owner_id = ? AND is_current = ?", logicalNoteID, ownerID, true).
			Take(&rev).Error
		if err == nil {
			return &rev, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// retire flips a single row out of current. The is_current guard makes it a
// compare-and-swap: losing a race leaves zero rows affected.
func retire(tx *gorm.DB, rowID uint64) error {
	res := tx.Model(&Revision{}).
		Where("row_id = ? AND is_current = ?", rowID, true).
		Update("is_current", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConflict
	}
	return nil
}

// AutoMigrate creates the revision table and its indexes. Engines with partial
// index support also get a unique index allowing one current row per note.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Revision{}); err != nil {
		return err
	}

	switch db.Dialector.Name() {
	case "postgres", "sqlite":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_note_revisions_one_current
			ON note_revisions (logical_note_id) WHERE is_current = true`).Error
	}
	return nil
}
