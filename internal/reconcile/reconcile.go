package reconcile

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Tiliavir/diary-migrate/internal/model"
)

// Action is the write decision for one day.
type Action int

const (
	// Skip means the remote document already contains the candidate.
	Skip Action = iota
	// Append means the candidate is added to the end of an existing document.
	Append
	// Create means no document exists for the date yet.
	Create
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Append:
		return "append"
	case Create:
		return "create"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is the outcome of comparing a candidate with the remote state.
type Decision struct {
	Action Action
	// Content is what has to be written; empty for Skip.
	Content string
	// DocumentID is the id to update; empty for Create.
	DocumentID string
}

// Store is the slice of the remote service the reconciler needs.
type Store interface {
	// FindDocument returns the id of the document for date, or ok=false.
	FindDocument(ctx context.Context, date string) (id string, ok bool, err error)
	// FetchContent returns the full content of a document.
	FetchContent(ctx context.Context, id string) (string, error)
	// WriteDocument creates (id == "") or updates a document.
	WriteDocument(ctx context.Context, date, content, id string) error
}

// Candidate appends one image marker line per uploaded image to the rendered
// text. Without uploads the rendered text is returned unchanged. The service
// hands out a fresh id for every upload, so re-running a day with images
// yields a candidate that is not contained in the existing document and gets
// appended again rather than skipped.
func Candidate(rendered string, imageIDs []string) string {
	if len(imageIDs) == 0 {
		return rendered
	}
	var b strings.Builder
	b.WriteString(rendered)
	b.WriteString("\n\n")
	for _, id := range imageIDs {
		b.WriteString("[图")
		b.WriteString(id)
		b.WriteString("]\n")
	}
	return b.String()
}

// Decide compares candidate with the existing document for the date. A nil
// existing document means the date has none yet.
func Decide(candidate string, existing *model.RemoteDocument) Decision {
	if existing == nil {
		return Decision{Action: Create, Content: candidate}
	}
	if strings.Contains(existing.Content, candidate) {
		return Decision{Action: Skip, DocumentID: existing.ID}
	}
	return Decision{
		Action:     Append,
		Content:    strings.TrimRightFunc(existing.Content, unicode.IsSpace) + "\n\n" + candidate,
		DocumentID: existing.ID,
	}
}

// Lookup loads the existing document for date from store, or nil if there is
// none.
func Lookup(ctx context.Context, store Store, date string) (*model.RemoteDocument, error) {
	id, ok, err := store.FindDocument(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("looking up document for %s: %w", date, err)
	}
	if !ok {
		return nil, nil
	}
	content, err := store.FetchContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", id, err)
	}
	return &model.RemoteDocument{ID: id, Date: date, Content: content}, nil
}

// Apply reconciles candidate for date against store and performs the write
// the decision calls for. With dryRun the decision is returned but nothing is
// written. A nil store is treated as an empty remote.
func Apply(ctx context.Context, store Store, date, candidate string, dryRun bool) (Decision, error) {
	var existing *model.RemoteDocument
	if store != nil {
		var err error
		existing, err = Lookup(ctx, store, date)
		if err != nil {
			return Decision{}, err
		}
	}

	d := Decide(candidate, existing)
	if d.Action == Skip || dryRun || store == nil {
		return d, nil
	}
	if err := store.WriteDocument(ctx, date, d.Content, d.DocumentID); err != nil {
		return d, fmt.Errorf("writing %s (%s): %w", date, d.Action, err)
	}
	return d, nil
}
