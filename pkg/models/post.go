package models

import (
	"strings"
	"sync"
	"time"
)

// Hydration is how much of a post's separately-fetchable data has been
// resolved.
type Hydration int

const (
	// HydrationSummary covers what a timeline page supplies: enough to
	// render a list item.
	HydrationSummary Hydration = iota
	// HydrationFull adds children, the extended owner and, for videos,
	// the resolved video URL.
	HydrationFull
)

// Post is a single platform post. Summary posts from timeline pages are
// filled in place by later detail fetches; resolved fields are never
// replaced wholesale, so an expensive sub-fetch is done at most once per
// cache lifetime.
type Post struct {
	mu sync.Mutex

	ID        string
	Shortcode string

	OwnerID       string
	OwnerUsername string
	OwnerFullName string
	OwnerPicURL   string

	Caption      string
	DisplayURL   string
	IsVideo      bool
	VideoURL     string
	TakenAt      time.Time
	LikeCount    int
	CommentCount int

	Children []*Post

	hydration Hydration
}

// Hydration returns the post's current hydration level.
func (p *Post) Hydration() Hydration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hydration
}

// MergeDetail fills the post in place from a full detail fetch. Fields
// already resolved keep their values, except the like and comment
// counters, which always follow the fresher detail payload.
func (p *Post) MergeDetail(detail *Post) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ID == "" {
		p.ID = detail.ID
	}
	if p.OwnerID == "" {
		p.OwnerID = detail.OwnerID
	}
	if p.OwnerUsername == "" {
		p.OwnerUsername = detail.OwnerUsername
	}
	if p.OwnerFullName == "" {
		p.OwnerFullName = detail.OwnerFullName
	}
	if p.OwnerPicURL == "" {
		p.OwnerPicURL = detail.OwnerPicURL
	}
	if p.Caption == "" {
		p.Caption = detail.Caption
	}
	if p.DisplayURL == "" {
		p.DisplayURL = detail.DisplayURL
	}
	if p.VideoURL == "" {
		p.VideoURL = detail.VideoURL
	}
	if p.TakenAt.IsZero() {
		p.TakenAt = detail.TakenAt
	}
	// Counters are volatile and zero is a legitimate value, so the detail
	// payload is authoritative rather than fill-if-empty.
	p.LikeCount = detail.LikeCount
	p.CommentCount = detail.CommentCount
	if len(p.Children) == 0 {
		p.Children = detail.Children
	}
	p.IsVideo = p.IsVideo || detail.IsVideo

	p.hydration = HydrationFull
}

// NeedsVideoURL reports whether a video URL fetch is still outstanding.
func (p *Post) NeedsVideoURL() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.IsVideo && p.VideoURL == ""
}

// SetVideoURL records the resolved video URL in place.
func (p *Post) SetVideoURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.VideoURL == "" {
		p.VideoURL = url
	}
}

// CaptionIntroduction returns the first line of the caption, truncated for
// use as a page title.
func (p *Post) CaptionIntroduction() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := p.Caption
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 100 {
		line = strings.TrimSpace(line[:97]) + "..."
	}
	return line
}

// Snapshot returns a serializable point-in-time copy of the post.
func (p *Post) Snapshot() *PostView {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := &PostView{
		ID:            p.ID,
		Shortcode:     p.Shortcode,
		OwnerID:       p.OwnerID,
		OwnerUsername: p.OwnerUsername,
		OwnerFullName: p.OwnerFullName,
		OwnerPicURL:   p.OwnerPicURL,
		Caption:       p.Caption,
		DisplayURL:    p.DisplayURL,
		IsVideo:       p.IsVideo,
		VideoURL:      p.VideoURL,
		TakenAt:       p.TakenAt,
		LikeCount:     p.LikeCount,
		CommentCount:  p.CommentCount,
	}
	for _, child := range p.Children {
		v.Children = append(v.Children, child.Snapshot())
	}
	return v
}

// PostView is the immutable, JSON-ready projection of a Post.
type PostView struct {
	ID            string      `json:"id"`
	Shortcode     string      `json:"shortcode"`
	OwnerID       string      `json:"owner_id,omitempty"`
	OwnerUsername string      `json:"owner_username,omitempty"`
	OwnerFullName string      `json:"owner_full_name,omitempty"`
	OwnerPicURL   string      `json:"owner_pic_url,omitempty"`
	Caption       string      `json:"caption,omitempty"`
	DisplayURL    string      `json:"display_url,omitempty"`
	IsVideo       bool        `json:"is_video"`
	VideoURL      string      `json:"video_url,omitempty"`
	TakenAt       time.Time   `json:"taken_at,omitempty"`
	LikeCount     int         `json:"like_count"`
	CommentCount  int         `json:"comment_count"`
	Children      []*PostView `json:"children,omitempty"`
}
