package upstream

import (
	"fmt"
	"net/url"
)

// Logical endpoint names, used for admin overrides and metrics labels.
const (
	EndpointUserSummary = "user_summary"
	EndpointPostPage    = "post_page"
	EndpointPostDetail  = "post_detail"
	EndpointVideoURL    = "video_url"
)

const (
	// profilePath serves the user summary payload
	profilePath = "/api/v1/users/web_profile_info/"

	// graphqlPath serves paginated media queries
	graphqlPath = "/graphql/query/"

	// mediaQueryHash selects the timeline-media GraphQL query
	mediaQueryHash = "e769aa130647d2354c40ea6a439bfc08"

	// videoQueryHash selects the video-only channel GraphQL query
	videoQueryHash = "bc78b344a68ed16dd5d7f264681c4c76"

	// pageSize is the number of posts requested per page
	pageSize = 12
)

// profileURL constructs the URL for fetching a user's summary.
func profileURL(baseURL, username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", baseURL, profilePath, params.Encode())
}

// mediaPageURL constructs the URL for one page of a user's media, resumed
// from the given continuation cursor (empty for the start of the feed).
func mediaPageURL(baseURL, userID, cursor string, videosOnly bool) string {
	hash := mediaQueryHash
	if videosOnly {
		hash = videoQueryHash
	}

	variables := fmt.Sprintf(`{"id":%q,"first":%d`, userID, pageSize)
	if cursor != "" {
		variables += fmt.Sprintf(`,"after":%q`, cursor)
	}
	variables += "}"

	params := url.Values{}
	params.Set("query_hash", hash)
	params.Set("variables", variables)
	return fmt.Sprintf("%s%s?%s", baseURL, graphqlPath, params.Encode())
}

// postDetailURL constructs the URL for a single post's full payload.
func postDetailURL(baseURL, shortcode string) string {
	return fmt.Sprintf("%s/p/%s/?__a=1&__d=dis", baseURL, url.PathEscape(shortcode))
}

// ValidShortcode reports whether a shortcode has the upstream's shape.
func ValidShortcode(shortcode string) bool {
	if shortcode == "" || len(shortcode) > 15 {
		return false
	}
	for _, ch := range shortcode {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '_') {
			return false
		}
	}
	return true
}

// ValidUsername reports whether a username has the upstream's shape.
func ValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}
	for _, ch := range username {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '.' || ch == '_') {
			return false
		}
	}
	return true
}
