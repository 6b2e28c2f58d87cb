package upstream

import (
	"time"

	"igmirror/pkg/models"
)

// Wire shapes of the upstream payloads. Only the fields the normalizers
// consume are declared.

type profileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
	Data            struct {
		User *wireUser `json:"user"`
	} `json:"data"`
}

type wireUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	ProfilePicURL string `json:"profile_pic_url_hd"`
	IsPrivate     bool   `json:"is_private"`
	IsVerified    bool   `json:"is_verified"`

	EdgeFollowedBy struct {
		Count int `json:"count"`
	} `json:"edge_followed_by"`
	EdgeFollow struct {
		Count int `json:"count"`
	} `json:"edge_follow"`
	EdgeTimelineMedia struct {
		Count int `json:"count"`
	} `json:"edge_owner_to_timeline_media"`
}

type mediaResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
	Data            struct {
		User *struct {
			EdgeTimelineMedia *wireMediaConnection `json:"edge_owner_to_timeline_media"`
			EdgeVideoMedia    *wireMediaConnection `json:"edge_felix_video_timeline"`
		} `json:"user"`
	} `json:"data"`
}

type wireMediaConnection struct {
	Count    int `json:"count"`
	PageInfo struct {
		HasNextPage bool   `json:"has_next_page"`
		EndCursor   string `json:"end_cursor"`
	} `json:"page_info"`
	Edges []struct {
		Node wireMedia `json:"node"`
	} `json:"edges"`
}

type detailResponse struct {
	RequiresToLogin bool `json:"requires_to_login"`
	Graphql         struct {
		ShortcodeMedia *wireMedia `json:"shortcode_media"`
	} `json:"graphql"`
}

type wireMedia struct {
	ID         string `json:"id"`
	Shortcode  string `json:"shortcode"`
	DisplayURL string `json:"display_url"`
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
	TakenAt    int64  `json:"taken_at_timestamp"`

	GatingInfo *struct {
		Title string `json:"title"`
	} `json:"gating_info"`

	EdgeCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`

	EdgeLikedBy struct {
		Count int `json:"count"`
	} `json:"edge_media_preview_like"`
	EdgeComments struct {
		Count int `json:"count"`
	} `json:"edge_media_to_comment"`

	Owner *struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		FullName      string `json:"full_name"`
		ProfilePicURL string `json:"profile_pic_url"`
	} `json:"owner"`

	EdgeSidecar *struct {
		Edges []struct {
			Node wireMedia `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

// normalizeUser maps the wire user onto the domain entity.
func normalizeUser(w *wireUser) *models.User {
	return &models.User{
		ID:             w.ID,
		Username:       w.Username,
		FullName:       w.FullName,
		Biography:      w.Biography,
		ProfilePicURL:  w.ProfilePicURL,
		FollowerCount:  w.EdgeFollowedBy.Count,
		FollowingCount: w.EdgeFollow.Count,
		PostCount:      w.EdgeTimelineMedia.Count,
		IsPrivate:      w.IsPrivate,
		IsVerified:     w.IsVerified,
	}
}

// normalizePage maps a wire media connection onto a timeline page of
// summary-hydrated posts.
func normalizePage(conn *wireMediaConnection) *models.Page {
	page := &models.Page{
		EndCursor: conn.PageInfo.EndCursor,
		HasNext:   conn.PageInfo.HasNextPage,
	}
	for _, edge := range conn.Edges {
		page.Posts = append(page.Posts, normalizeMedia(&edge.Node))
	}
	return page
}

// normalizeMedia maps a wire media node onto a domain post.
func normalizeMedia(w *wireMedia) *models.Post {
	post := &models.Post{
		ID:           w.ID,
		Shortcode:    w.Shortcode,
		DisplayURL:   w.DisplayURL,
		IsVideo:      w.IsVideo,
		VideoURL:     w.VideoURL,
		LikeCount:    w.EdgeLikedBy.Count,
		CommentCount: w.EdgeComments.Count,
	}
	if w.TakenAt > 0 {
		post.TakenAt = time.Unix(w.TakenAt, 0).UTC()
	}
	if len(w.EdgeCaption.Edges) > 0 {
		post.Caption = w.EdgeCaption.Edges[0].Node.Text
	}
	if w.Owner != nil {
		post.OwnerID = w.Owner.ID
		post.OwnerUsername = w.Owner.Username
		post.OwnerFullName = w.Owner.FullName
		post.OwnerPicURL = w.Owner.ProfilePicURL
	}
	if w.EdgeSidecar != nil {
		for _, edge := range w.EdgeSidecar.Edges {
			post.Children = append(post.Children, normalizeMedia(&edge.Node))
		}
	}
	return post
}
