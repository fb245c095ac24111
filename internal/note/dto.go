package note

import (
	"time"

	"github.com/jinzhu/copier"
)

// NoteResponse is the public shape of a current revision. Field names mirror
// Revision so copier can fill it.
type NoteResponse struct {
	LogicalNoteID string    `json:"id"`
	RowID         uint64    `json:"revision_id"`
	OwnerID       uint64    `json:"owner_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	RevisedAt     time.Time `json:"revised_at"`
}

// RevisionResponse is one entry of a note's history. Patch holds the content
// change against the previous revision in unified diff-match-patch text.
type RevisionResponse struct {
	RowID     uint64    `json:"revision_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
	RevisedAt time.Time `json:"revised_at"`
	Patch     string    `json:"patch"`
}

type NoteHistory struct {
	ID        string             `json:"id"`
	Revisions []RevisionResponse `json:"revisions"`
}

func toNoteResponse(rev *Revision) (*NoteResponse, error) {
	var resp NoteResponse
	if err := copier.Copy(&resp, rev); err != nil {
		return nil, err
	}
	return &resp, nil
}

func toNoteResponses(revs []Revision) ([]NoteResponse, error) {
	resp := make([]NoteResponse, 0, len(revs))
	if err := copier.Copy(&resp, &revs); err != nil {
		return nil, err
	}
	return resp, nil
}

func toRevisionResponses(revs []Revision) ([]RevisionResponse, error) {
	resp := make([]RevisionResponse, 0, len(revs))
	if err := copier.Copy(&resp, &revs); err != nil {
		return nil, err
	}
	return resp, nil
}
