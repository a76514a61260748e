// Package diary reads a user's own records and the public feed.
package diary

import (
	"context"
	"sort"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/session"
)

const (
	// WindowSize is how many records one read fetches.
	WindowSize = 50
	// PageSize is the default number of entries per page.
	PageSize = 10
)

// Source is the read side of the API.
type Source interface {
	ListMine(ctx context.Context, limit int) ([]*entity.BugRecord, error)
	ListFeed(ctx context.Context, limit int) ([]*entity.BugRecord, error)
}

type Reader struct {
	session *session.Context
	source  Source
}

func NewReader(sess *session.Context, source Source) *Reader {
	return &Reader{session: sess, source: source}
}

// MyRecords returns the signed-in user's records, newest first. Without a
// session it returns nothing and makes no call.
func (r *Reader) MyRecords(ctx context.Context) ([]*entity.BugRecord, error) {
	user := r.session.Current()
	if user == nil {
		return nil, nil
	}
	recs, err := r.source.ListMine(ctx, WindowSize)
	if err != nil {
		return nil, err
	}
	out := recs[:0:0]
	for _, rec := range recs {
		if rec.OwnerID == user.ID {
			out = append(out, rec)
		}
	}
	return newestFirst(out), nil
}

// PublicFeed returns shared, completed records of other users, newest first.
// Anonymous viewers see every shared, completed record.
func (r *Reader) PublicFeed(ctx context.Context) ([]*entity.BugRecord, error) {
	recs, err := r.source.ListFeed(ctx, WindowSize)
	if err != nil {
		return nil, err
	}
	var self string
	if user := r.session.Current(); user != nil {
		self = user.ID
	}
	out := recs[:0:0]
	for _, rec := range recs {
		if _, ok := rec.Roast(); !ok || !rec.Shared {
			continue
		}
		if self != "" && rec.OwnerID == self {
			continue
		}
		out = append(out, rec)
	}
	return newestFirst(out), nil
}

func newestFirst(recs []*entity.BugRecord) []*entity.BugRecord {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if len(recs) > WindowSize {
		recs = recs[:WindowSize]
	}
	return recs
}

// Page is one slice of an already fetched window.
type Page struct {
	Entries    []*entity.BugRecord
	Page       int
	TotalPages int
	Total      int
}

// Paginate slices entries into pages of perPage (PageSize when <= 0).
// page is clamped to [1, TotalPages]; an empty window has one empty page.
func Paginate(entries []*entity.BugRecord, page, perPage int) Page {
	if perPage <= 0 {
		perPage = PageSize
	}
	total := len(entries)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * perPage
	end := min(start+perPage, total)
	return Page{
		Entries:    entries[start:end],
		Page:       page,
		TotalPages: pages,
		Total:      total,
	}
}
