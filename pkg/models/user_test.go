package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeedType(t *testing.T) {
	tests := []struct {
		input    string
		expected FeedType
	}{
		{"", FeedPosts},
		{"posts", FeedPosts},
		{"videos", FeedVideos},
		{"nonsense", FeedPosts},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseFeedType(tt.input), "input %q", tt.input)
	}
}

func TestAttachTimelineKeepsFirst(t *testing.T) {
	user := &User{ID: "1234", Username: "alice"}

	first := NewTimeline(nil)
	second := NewTimeline(nil)

	user.AttachTimeline(FeedPosts, first)
	user.AttachTimeline(FeedPosts, second)

	assert.Same(t, first, user.Timeline(FeedPosts))
	assert.Nil(t, user.Timeline(FeedVideos))
}

func TestTimelinesAreIndependentPerFeed(t *testing.T) {
	user := &User{ID: "1234", Username: "alice"}

	posts := NewTimeline(nil)
	videos := NewTimeline(nil)

	user.AttachTimeline(FeedPosts, posts)
	user.AttachTimeline(FeedVideos, videos)

	assert.Same(t, posts, user.Timeline(FeedPosts))
	assert.Same(t, videos, user.Timeline(FeedVideos))
}

func TestUserSnapshot(t *testing.T) {
	user := &User{
		ID:            "1234",
		Username:      "alice",
		FullName:      "Alice Example",
		FollowerCount: 10,
		IsVerified:    true,
	}
	user.AttachTimeline(FeedPosts, NewTimeline(nil))

	view := user.Snapshot()
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, 10, view.FollowerCount)
	assert.True(t, view.IsVerified)
}
