package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmirror/pkg/config"
	"igmirror/pkg/egress"
	"igmirror/pkg/errors"
	"igmirror/pkg/mirror"
	"igmirror/pkg/models"
)

// stubUpstream serves a small fixed world: user "alice" with a three-page
// feed, post "AAA111", everything else not found.
type stubUpstream struct {
	summaryErr error
}

func (s *stubUpstream) FetchUserSummary(ctx context.Context, username string) (*models.User, int, error) {
	if s.summaryErr != nil {
		return nil, 3, s.summaryErr
	}
	if username != "alice" {
		return nil, 3, errors.Newf(errors.KindNotFound, "user %q does not exist", username)
	}
	return &models.User{ID: "1234", Username: "alice", FullName: "Alice Example"}, 3, nil
}

func (s *stubUpstream) FetchPostPage(ctx context.Context, userID, cursor string, feed models.FeedType) (*models.Page, int, error) {
	index := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "cursor-%d", &index)
	}
	return &models.Page{
		Posts:     []*models.Post{{Shortcode: fmt.Sprintf("SC%d", index)}},
		EndCursor: fmt.Sprintf("cursor-%d", index+1),
		HasNext:   index+1 < 3,
	}, 2, nil
}

func (s *stubUpstream) FetchPostDetail(ctx context.Context, shortcode string) (*models.Post, int, error) {
	if shortcode != "AAA111" {
		return nil, 2, errors.Newf(errors.KindNotFound, "post %q does not exist", shortcode)
	}
	return &models.Post{ID: "m1", Shortcode: shortcode, OwnerUsername: "alice", Caption: "hello world"}, 2, nil
}

func (s *stubUpstream) ResolveVideoURL(ctx context.Context, shortcode string) (string, int, error) {
	return "https://cdn.example.net/" + shortcode + ".mp4", 1, nil
}

func newTestServer(t *testing.T, budget int, up mirror.UpstreamClient) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Quota.Budget = budget
	cfg.Server.MetricsEnabled = true

	sw, err := egress.NewSwitchboard(&cfg.Egress, time.Second)
	require.NoError(t, err)

	svc := mirror.New(cfg, up, sw, nil)
	return New(svc, &cfg.Server, nil)
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:4711"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserPageRoute(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/users/alice?page=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body userPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.User.Username)
	assert.Equal(t, 2, body.Page)
	assert.Len(t, body.Pages, 2)
	assert.Equal(t, 50-3-4, body.Remaining)
}

func TestUserPageNormalizesUsername(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/users/@Alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var body userPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.User.Username)
}

func TestUserPageBadUsername(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/api/users/not%20a%20user")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserNotFound(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/api/users/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserPageFragment(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/users/alice/page/2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body pageFragmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	require.Len(t, body.Content.Posts, 1)
	assert.Equal(t, "SC1", body.Content.Posts[0].Shortcode)
}

func TestUserPageFragmentBeyondFeed(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/api/users/alice/page/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserPageFragmentBadNumber(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/api/users/alice/page/zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostRoute(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/posts/AAA111")
	require.Equal(t, http.StatusOK, rec.Code)

	var body postResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello world", body.Title)
	assert.Equal(t, "AAA111", body.Post.Shortcode)
}

func TestPostNotFound(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodGet, "/api/posts/ZZZ999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotaExceededMapsTo429(t *testing.T) {
	s := newTestServer(t, 5, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/users/alice")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/users/alice?page=3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(errors.KindQuotaExceeded), body.Error)
}

func TestLoginRequiredMapsTo503WithRetryAfter(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{
		summaryErr: errors.New(errors.KindLoginRequired, "wall"),
	})

	rec := do(t, s, http.MethodGet, "/api/users/alice")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestStatusRoute(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})

	rec := do(t, s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body mirror.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.AnyPathAvailable)
}

func TestAdminEgressReset(t *testing.T) {
	s := newTestServer(t, 50, &stubUpstream{})
	rec := do(t, s, http.MethodPost, "/api/admin/egress/direct/reset")
	assert.Equal(t, http.StatusOK, rec.Code)
}
