package note

import "time"

// Revision is one physical row of a logical note's history. Only IsCurrent
// ever changes after insert.
type Revision struct {
	RowID         uint64    `gorm:"column:row_id;primaryKey;autoIncrement"`
	LogicalNoteID string    `gorm:"column:logical_note_id;type:varchar(36);not null;index:idx_note_revisions_logical_current,priority:1"`
	OwnerID       uint64    `gorm:"column:owner_id;not null;index:idx_note_revisions_owner_current,priority:1"`
	Title         string    `gorm:"column:title;size:255;not null"`
	Content       string    `gorm:"column:content;type:text;not null"`
	IsCurrent     bool      `gorm:"column:is_current;not null;index:idx_note_revisions_logical_current,priority:2;index:idx_note_revisions_owner_current,priority:2"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_note_revisions_owner_current,priority:3"`
	RevisedAt     time.Time `gorm:"column:revised_at;not null"`
}

func (Revision) TableName() string {
	return "note_revisions"
}
