package note

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one connection keeps every session on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

// newTestStore returns a store whose clock advances one second per write.
func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	db := newTestDB(t)
	store := NewStore(db)

	var mu sync.Mutex
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return store, db
}

func countCurrent(t *testing.T, db *gorm.DB, logicalNoteID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Revision{}).
		Where("logical_note_id = ? AND is_current = ?", logicalNoteID, true).
		Count(&n).Error)
	return n
}

func TestCreate_ReturnsCurrentRevision(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rev, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)
	assert.True(t, rev.IsCurrent)
	assert.NotZero(t, rev.RowID)
	assert.NotEmpty(t, rev.LogicalNoteID)
	assert.Equal(t, uint64(1), rev.OwnerID)
	assert.True(t, rev.CreatedAt.Equal(rev.RevisedAt))

	got, err := store.GetCurrent(ctx, rev.LogicalNoteID)
	require.NoError(t, err)
	assert.Equal(t, rev.RowID, got.RowID)
	assert.Equal(t, "T1", got.Title)
	assert.Equal(t, "C1", got.Content)
	assert.True(t, got.IsCurrent)
	assert.True(t, rev.CreatedAt.Equal(got.CreatedAt))
}

func TestUpdate_CarriesForwardEmptyFieldsAndCreatedAt(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.LogicalNoteID, 1, "T2", "")
	require.NoError(t, err)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "C1", updated.Content)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.RevisedAt.After(created.RevisedAt))
	assert.NotEqual(t, created.RowID, updated.RowID)
	assert.Equal(t, created.LogicalNoteID, updated.LogicalNoteID)

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsCurrent)
	assert.Equal(t, "T1", history[0].Title)
	assert.True(t, history[1].IsCurrent)
	assert.Equal(t, int64(1), countCurrent(t, db, created.LogicalNoteID))
}

func TestUpdate_WhitespaceFieldIsTreatedAsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.LogicalNoteID, 1, "   ", "C2")
	require.NoError(t, err)
	assert.Equal(t, "T1", updated.Title)
	assert.Equal(t, "C2", updated.Content)
}

func TestDelete_KeepsHistory(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.LogicalNoteID, 1))

	_, err = store.GetCurrent(ctx, created.LogicalNoteID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].IsCurrent)
	assert.Equal(t, created.RowID, history[0].RowID)
}

func TestDelete_IsIdempotentAndTerminal(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, created.LogicalNoteID, 1))

	assert.NoError(t, store.Delete(ctx, created.LogicalNoteID, 1))
	assert.NoError(t, store.Delete(ctx, "never-created", 1))

	_, err = store.Update(ctx, created.LogicalNoteID, 1, "T2", "C2")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDelete_ForeignOwnerLeavesNoteLive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.LogicalNoteID, 2))

	got, err := store.GetCurrent(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Equal(t, created.RowID, got.RowID)
}

func TestUpdate_NeverCreated(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Update(context.Background(), "00000000-0000-4000-8000-000000000000", 1, "T", "C")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ForeignOwnerIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	_, err = store.Update(ctx, created.LogicalNoteID, 2, "T2", "C2")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetCurrent(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Equal(t, "T1", got.Title)
}

func TestUpdate_BothFieldsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	_, err = store.Update(ctx, created.LogicalNoteID, 1, "", " ")
	assert.ErrorIs(t, err, ErrValidation)

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{name: "empty title", title: "", content: "C1"},
		{name: "empty content", title: "T1", content: ""},
		{name: "blank title", title: "  \t", content: "C1"},
		{name: "title too long", title: strings.Repeat("x", MaxTitleLength+1), content: "C1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, db := newTestStore(t)

			_, err := store.Create(context.Background(), 1, tt.title, tt.content)
			assert.ErrorIs(t, err, ErrValidation)

			var n int64
			require.NoError(t, db.Model(&Revision{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestConcurrentUpdates_LeaveOneCurrent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Update(ctx, created.LogicalNoteID, 1, fmt.Sprintf("T%d", i+2), "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	require.GreaterOrEqual(t, succeeded, 1)

	assert.Equal(t, int64(1), countCurrent(t, db, created.LogicalNoteID))

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Len(t, history, 1+succeeded)
}

func TestConcurrentUpdateAndDelete(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var updateErr, deleteErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, updateErr = store.Update(ctx, created.LogicalNoteID, 1, "T2", "")
	}()
	go func() {
		defer wg.Done()
		deleteErr = store.Delete(ctx, created.LogicalNoteID, 1)
	}()
	wg.Wait()

	require.NoError(t, deleteErr)
	if updateErr != nil {
		assert.ErrorIs(t, updateErr, ErrNotFound)
	}
	// update then delete retires the new row; delete then update never inserts
	assert.Zero(t, countCurrent(t, db, created.LogicalNoteID))
}

func TestListCurrentByOwner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, 1, "first", "a")
	require.NoError(t, err)
	second, err := store.Create(ctx, 1, "second", "b")
	require.NoError(t, err)
	deleted, err := store.Create(ctx, 1, "deleted", "c")
	require.NoError(t, err)
	_, err = store.Create(ctx, 2, "other owner", "d")
	require.NoError(t, err)

	_, err = store.Update(ctx, first.LogicalNoteID, 1, "first v2", "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, deleted.LogicalNoteID, 1))

	notes, err := store.ListCurrentByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	// newest logical note first, regardless of edit time
	assert.Equal(t, second.LogicalNoteID, notes[0].LogicalNoteID)
	assert.Equal(t, first.LogicalNoteID, notes[1].LogicalNoteID)
	assert.Equal(t, "first v2", notes[1].Title)
	for _, n := range notes {
		assert.True(t, n.IsCurrent)
	}

	empty, err := store.ListCurrentByOwner(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListAllRevisions_UnknownID(t *testing.T) {
	store, _ := newTestStore(t)

	history, err := store.ListAllRevisions(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestRetireAllByOwner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, 1, "a", "a")
	require.NoError(t, err)
	_, err = store.Update(ctx, a.LogicalNoteID, 1, "a2", "")
	require.NoError(t, err)
	_, err = store.Create(ctx, 1, "b", "b")
	require.NoError(t, err)
	other, err := store.Create(ctx, 2, "c", "c")
	require.NoError(t, err)

	n, err := store.RetireAllByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	notes, err := store.ListCurrentByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = store.Update(ctx, a.LogicalNoteID, 1, "a3", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetCurrent(ctx, other.LogicalNoteID)
	assert.NoError(t, err)

	n, err = store.RetireAllByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUniqueCurrentIndex(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	dup := Revision{
		LogicalNoteID: created.LogicalNoteID,
		OwnerID:       1,
		Title:         "dup",
		Content:       "dup",
		IsCurrent:     true,
		CreatedAt:     created.CreatedAt,
		RevisedAt:     created.RevisedAt,
	}
	err = db.Create(&dup).Error
	require.Error(t, err)
	assert.ErrorIs(t, translate(err, "insert"), ErrConflict)
}

func TestRetire_AlreadyRetiredRowIsConflict(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)
	_, err = store.Update(ctx, created.LogicalNoteID, 1, "T2", "")
	require.NoError(t, err)

	assert.ErrorIs(t, retire(db, created.RowID), ErrConflict)
}

// A row retired by another writer between the lock and the flip fails the
// update and leaves no trace of it.
func TestUpdate_RowRetiredAfterLockIsConflict(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:retire_first", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "note_revisions" {
			return
		}
		fired = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE note_revisions SET is_current = ? WHERE row_id = ?", false, created.RowID)
	}))

	_, err = store.Update(ctx, created.LogicalNoteID, 1, "T2", "")
	require.True(t, fired)
	assert.ErrorIs(t, err, ErrConflict)

	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsCurrent)
	assert.Equal(t, "T1", history[0].Title)
}

// A writer whose lookup misses because the winner just retired the row picks
// up the winner's revision on the second lookup and applies on top of it.
func TestUpdate_AppliesOnTopOfWinnerAfterRelookup(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, "T1", "C1")
	require.NoError(t, err)

	lookups := 0
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:winner_commits", func(tx *gorm.DB) {
		if tx.Statement.Table != "note_revisions" {
			return
		}
		lookups++
		session := tx.Session(&gorm.Session{NewDB: true})
		switch lookups {
		case 1:
			session.Exec("UPDATE note_revisions SET is_current = ? WHERE row_id = ?", false, created.RowID)
		case 2:
			session.Create(&Revision{
				LogicalNoteID: created.LogicalNoteID,
				OwnerID:       1,
				Title:         "W",
				Content:       "winner",
				IsCurrent:     true,
				CreatedAt:     created.CreatedAt,
				RevisedAt:     created.RevisedAt.Add(time.Millisecond),
			})
		}
	}))

	rev, err := store.Update(ctx, created.LogicalNoteID, 1, "T3", "")
	require.NoError(t, err)
	assert.Equal(t, 2, lookups)
	assert.Equal(t, "T3", rev.Title)
	assert.Equal(t, "winner", rev.Content)
	assert.True(t, created.CreatedAt.Equal(rev.CreatedAt))

	assert.Equal(t, int64(1), countCurrent(t, db, created.LogicalNoteID))
	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

// A revision that becomes current while the retire pass runs is caught by the
// next pass.
func TestRetireAllByOwner_RepeatsUntilNoneLeft(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, 1, "a", "a")
	require.NoError(t, err)

	const lateID = "00000000-0000-4000-8000-00000000late"
	fired := false
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:late_revision", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "note_revisions" {
			return
		}
		fired = true
		now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		tx.Session(&gorm.Session{NewDB: true}).Create(&Revision{
			LogicalNoteID: lateID,
			OwnerID:       1,
			Title:         "late",
			Content:       "late",
			IsCurrent:     true,
			CreatedAt:     now,
			RevisedAt:     now,
		})
	}))

	n, err := store.RetireAllByOwner(ctx, 1)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, int64(2), n)
	assert.Zero(t, countCurrent(t, db, lateID))

	notes, err := store.ListCurrentByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

// Random sequences of updates and deletes against one logical note must keep
// the history append-only with one current row at most.
func TestRevisionInvariants(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	var owner uint64
	properties.Property("history stays append-only with a single current row", prop.ForAll(
		func(ops []int) bool {
			owner++
			created, err := store.Create(ctx, owner, "title", "content")
			if err != nil {
				return false
			}

			seen := map[uint64]Revision{created.RowID: *created}
			deleted := false

			for i, op := range ops {
				switch op {
				case 0:
					_, err = store.Update(ctx, created.LogicalNoteID, owner, fmt.Sprintf("title %d", i), "")
				case 1:
					_, err = store.Update(ctx, created.LogicalNoteID, owner, "", fmt.Sprintf("content %d", i))
				case 2:
					_, err = store.Update(ctx, created.LogicalNoteID, owner, fmt.Sprintf("t%d", i), fmt.Sprintf("c%d", i))
				default:
					err = store.Delete(ctx, created.LogicalNoteID, owner)
					deleted = true
				}

				if deleted && op < 3 {
					if !errors.Is(err, ErrNotFound) {
						return false
					}
				} else if err != nil {
					return false
				}

				if !checkHistory(ctx, store, created, seen, deleted) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

func checkHistory(ctx context.Context, store *GormStore, created *Revision, seen map[uint64]Revision, deleted bool) bool {
	history, err := store.ListAllRevisions(ctx, created.LogicalNoteID)
	if err != nil {
		return false
	}

	current := 0
	for _, rev := range history {
		if rev.IsCurrent {
			current++
		}
		if rev.OwnerID != created.OwnerID || !rev.CreatedAt.Equal(created.CreatedAt) {
			return false
		}
		if prev, ok := seen[rev.RowID]; ok {
			if prev.Title != rev.Title || prev.Content != rev.Content || !prev.CreatedAt.Equal(rev.CreatedAt) {
				return false
			}
		} else {
			seen[rev.RowID] = rev
		}
	}
	if len(history) != len(seen) {
		return false
	}

	if deleted {
		return current == 0
	}
	return current == 1
}
