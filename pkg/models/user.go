package models

import "sync"

// FeedType selects which of a user's timelines a request addresses.
type FeedType string

const (
	// FeedPosts is the chronological post timeline.
	FeedPosts FeedType = "posts"
	// FeedVideos is the video-only channel timeline.
	FeedVideos FeedType = "videos"
)

// ParseFeedType maps a request parameter onto a feed type, defaulting to
// the chronological timeline.
func ParseFeedType(s string) FeedType {
	if s == string(FeedVideos) {
		return FeedVideos
	}
	return FeedPosts
}

// User is a platform user profile. It owns one timeline per feed type;
// timelines are attached once, right after the summary fetch, and grow
// lazily as pages are requested.
type User struct {
	ID            string
	Username      string
	FullName      string
	Biography     string
	ProfilePicURL string

	FollowerCount  int
	FollowingCount int
	PostCount      int

	IsPrivate  bool
	IsVerified bool

	mu        sync.Mutex
	timelines map[FeedType]*Timeline
}

// AttachTimeline installs the timeline for a feed type. Attaching twice for
// the same feed keeps the first timeline so already-fetched pages survive.
func (u *User) AttachTimeline(feed FeedType, tl *Timeline) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timelines == nil {
		u.timelines = make(map[FeedType]*Timeline)
	}
	if _, ok := u.timelines[feed]; !ok {
		u.timelines[feed] = tl
	}
}

// Timeline returns the timeline for a feed type, or nil if none attached.
func (u *User) Timeline(feed FeedType) *Timeline {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.timelines[feed]
}

// Snapshot returns a serializable copy of the profile summary.
func (u *User) Snapshot() *UserView {
	return &UserView{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		Biography:      u.Biography,
		ProfilePicURL:  u.ProfilePicURL,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		PostCount:      u.PostCount,
		IsPrivate:      u.IsPrivate,
		IsVerified:     u.IsVerified,
	}
}

// UserView is the immutable, JSON-ready projection of a User.
type UserView struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name,omitempty"`
	Biography      string `json:"biography,omitempty"`
	ProfilePicURL  string `json:"profile_pic_url,omitempty"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	PostCount      int    `json:"post_count"`
	IsPrivate      bool   `json:"is_private"`
	IsVerified     bool   `json:"is_verified"`
}
