package models

import (
	"context"
	"sync"

	"igmirror/pkg/errors"
)

// ErrEndOfFeed is surfaced when a timeline extension runs past the last
// page the upstream will supply. Pages fetched before the end remain
// committed; the orchestrator decides whether the caller sees a failure.
var ErrEndOfFeed = errors.New(errors.KindNotFound, "end of feed")

// Page is one fetched slice of a timeline: an ordered list of posts plus
// the opaque continuation cursor the upstream issued for the next slice.
// The upstream does not guarantee stable offsets, so the cursor is the only
// way to reach the following page.
type Page struct {
	Posts     []*Post
	EndCursor string
	HasNext   bool
}

// Snapshot returns a serializable point-in-time copy of the page. The
// continuation cursor stays internal; it is meaningless outside the pager.
func (p *Page) Snapshot() *PageView {
	v := &PageView{HasNext: p.HasNext}
	for _, post := range p.Posts {
		v.Posts = append(v.Posts, post.Snapshot())
	}
	return v
}

// PageView is the immutable, JSON-ready projection of a Page.
type PageView struct {
	Posts   []*PostView `json:"posts"`
	HasNext bool        `json:"has_next"`
}

// PageFetcher fetches the page that follows the given continuation cursor
// (start of feed for the empty cursor), returning the page and the quota
// units the fetch cost.
type PageFetcher func(ctx context.Context, cursor string) (*Page, int, error)

// Timeline is a user's ordered, growable page list for one feed type.
// Pages are causally chained: page i can only be fetched once page i-1
// exists and supplied its cursor. Extension is serialized per timeline;
// unrelated timelines proceed independently.
type Timeline struct {
	mu    sync.Mutex
	pages []*Page
	fetch PageFetcher
}

// NewTimeline creates an empty timeline backed by the given fetcher.
func NewTimeline(fetch PageFetcher) *Timeline {
	return &Timeline{fetch: fetch}
}

// FetchUpToPage extends the timeline until the page at pageIndex exists,
// returning the units spent. Already-satisfied indexes cost zero. On a
// mid-sequence failure the pages fetched so far stay committed and the
// upstream's failure is surfaced together with the units already spent.
func (t *Timeline) FetchUpToPage(ctx context.Context, pageIndex int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	units := 0
	for len(t.pages) <= pageIndex {
		cursor := ""
		if n := len(t.pages); n > 0 {
			last := t.pages[n-1]
			if !last.HasNext {
				return units, ErrEndOfFeed
			}
			cursor = last.EndCursor
		}

		page, spent, err := t.fetch(ctx, cursor)
		units += spent
		if err != nil {
			return units, err
		}
		t.pages = append(t.pages, page)
	}
	return units, nil
}

// PageCount returns the number of committed pages.
func (t *Timeline) PageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pages)
}

// Page returns the committed page at index i.
func (t *Timeline) Page(i int) (*Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.pages) {
		return nil, false
	}
	return t.pages[i], true
}

// Pages returns a snapshot of the committed page list.
func (t *Timeline) Pages() []*Page {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Page, len(t.pages))
	copy(out, t.pages)
	return out
}
