package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"igmirror/pkg/config"
	"igmirror/pkg/egress"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/metrics"
	"igmirror/pkg/models"
)

// Client performs single logical calls against the third-party platform
// and returns normalized domain data or a classified failure.
//
// Each call selects an egress path from the switchboard and reports the
// outcome back so future calls avoid a path the upstream just blocked. A
// blocked call is not retried on another path inside the same logical call;
// that decision belongs to the orchestrator, which keeps the cost
// accounting accurate.
type Client struct {
	switchboard     *egress.Switchboard
	baseURL         string
	headers         map[string]string
	weights         config.WeightsConfig
	overridden      map[string]bool
	forceAnonymized bool
	logger          logger.Logger
}

// NewClient creates an upstream client routed through the switchboard.
func NewClient(cfg *config.UpstreamConfig, weights config.WeightsConfig, forceAnonymized bool, sw *egress.Switchboard, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	overridden := make(map[string]bool, len(cfg.BlockedEndpoints))
	for _, name := range cfg.BlockedEndpoints {
		overridden[name] = true
	}

	return &Client{
		switchboard: sw,
		baseURL:     cfg.BaseURL,
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
		},
		weights:         weights,
		overridden:      overridden,
		forceAnonymized: forceAnonymized,
		logger:          log,
	}
}

// FetchUserSummary fetches a user's profile summary.
func (c *Client) FetchUserSummary(ctx context.Context, username string) (*models.User, int, error) {
	if err := c.checkOverride(EndpointUserSummary); err != nil {
		return nil, 0, err
	}

	var wire profileResponse
	units, err := c.call(ctx, EndpointUserSummary, profileURL(c.baseURL, username), c.weights.UserSummary, &wire)
	if err != nil {
		return nil, units, err
	}

	if wire.RequiresToLogin {
		return nil, units, errors.Newf(errors.KindLoginRequired, "upstream demands login for user %q", username)
	}
	if wire.Data.User == nil {
		return nil, units, errors.Newf(errors.KindNotFound, "user %q does not exist", username)
	}

	return normalizeUser(wire.Data.User), units, nil
}

// FetchPostPage fetches one page of a user's feed, resumed from the given
// continuation cursor (empty for the start of the feed).
func (c *Client) FetchPostPage(ctx context.Context, userID, cursor string, feed models.FeedType) (*models.Page, int, error) {
	if err := c.checkOverride(EndpointPostPage); err != nil {
		return nil, 0, err
	}

	videosOnly := feed == models.FeedVideos
	var wire mediaResponse
	units, err := c.call(ctx, EndpointPostPage, mediaPageURL(c.baseURL, userID, cursor, videosOnly), c.weights.PostPage, &wire)
	if err != nil {
		return nil, units, err
	}

	if wire.RequiresToLogin {
		return nil, units, errors.New(errors.KindLoginRequired, "upstream demands login for media query")
	}
	if wire.Data.User == nil {
		return nil, units, errors.Newf(errors.KindNotFound, "no media for user id %q", userID)
	}

	conn := wire.Data.User.EdgeTimelineMedia
	if videosOnly {
		conn = wire.Data.User.EdgeVideoMedia
	}
	if conn == nil {
		return nil, units, errors.Newf(errors.KindNotFound, "feed %q unavailable for user id %q", feed, userID)
	}

	return normalizePage(conn), units, nil
}

// FetchPostDetail fetches a single post with children, extended owner and
// caption resolved.
func (c *Client) FetchPostDetail(ctx context.Context, shortcode string) (*models.Post, int, error) {
	if err := c.checkOverride(EndpointPostDetail); err != nil {
		return nil, 0, err
	}

	media, units, err := c.fetchDetail(ctx, EndpointPostDetail, c.weights.PostDetail, shortcode)
	if err != nil {
		return nil, units, err
	}
	return normalizeMedia(media), units, nil
}

// ResolveVideoURL resolves the direct video URL for a video post.
func (c *Client) ResolveVideoURL(ctx context.Context, shortcode string) (string, int, error) {
	if err := c.checkOverride(EndpointVideoURL); err != nil {
		return "", 0, err
	}

	media, units, err := c.fetchDetail(ctx, EndpointVideoURL, c.weights.VideoURL, shortcode)
	if err != nil {
		return "", units, err
	}
	if media.VideoURL == "" {
		return "", units, errors.Newf(errors.KindUpstream, "post %q has no video url", shortcode)
	}
	return media.VideoURL, units, nil
}

func (c *Client) fetchDetail(ctx context.Context, endpoint string, weight int, shortcode string) (*wireMedia, int, error) {
	var wire detailResponse
	units, err := c.call(ctx, endpoint, postDetailURL(c.baseURL, shortcode), weight, &wire)
	if err != nil {
		return nil, units, err
	}

	if wire.RequiresToLogin {
		return nil, units, errors.Newf(errors.KindLoginRequired, "upstream demands login for post %q", shortcode)
	}
	media := wire.Graphql.ShortcodeMedia
	if media == nil {
		return nil, units, errors.Newf(errors.KindNotFound, "post %q does not exist", shortcode)
	}
	if media.GatingInfo != nil {
		return nil, units, errors.Newf(errors.KindAgeRestricted, "post %q is age restricted", shortcode)
	}
	return media, units, nil
}

func (c *Client) checkOverride(endpoint string) error {
	if c.overridden[endpoint] {
		return errors.Newf(errors.KindEndpointOverridden, "endpoint %s is disabled on this instance", endpoint)
	}
	return nil
}

// call performs one upstream request through a freshly selected egress
// path, decodes the JSON payload and reports the outcome to the
// switchboard. The returned units reflect whether the upstream was
// actually contacted: a call that never left the switchboard costs zero.
func (c *Client) call(ctx context.Context, endpoint, url string, weight int, target interface{}) (int, error) {
	path, err := c.switchboard.Select(c.forceAnonymized)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, string(errors.KindNoPathAvailable)).Inc()
		return 0, err
	}

	start := time.Now()
	err = c.getJSON(ctx, path, url, target)
	duration := time.Since(start)

	kind := errors.Kind("ok")
	if err != nil {
		kind = errors.KindOf(err)
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, string(kind)).Inc()

	if err != nil {
		blocked := errors.IsBlocking(errors.KindOf(err))
		c.switchboard.ReportOutcome(path, blocked)
		if blocked {
			metrics.EgressBlocks.WithLabelValues(path.Name).Inc()
		}
		c.logger.WarnWithFields("upstream call failed", map[string]interface{}{
			"endpoint": endpoint,
			"path":     path.Name,
			"kind":     string(errors.KindOf(err)),
			"duration": duration,
		})
		return weight, err
	}

	c.switchboard.ReportOutcome(path, false)
	c.logger.DebugWithFields("upstream call completed", map[string]interface{}{
		"endpoint": endpoint,
		"path":     path.Name,
		"duration": duration,
	})
	return weight, nil
}

// getJSON performs the HTTP GET through the given path and classifies the
// response. Timeouts and transport failures classify as upstream errors.
func (c *Client) getJSON(ctx context.Context, path *egress.Path, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(errors.KindUpstream, "building request", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := path.Client.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindUpstream, "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.KindUpstream, "reading response body", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		// The anti-bot wall serves an HTML login page with status 200
		return errors.Wrap(errors.KindLoginRequired, "non-JSON response from upstream", err)
	}
	return nil
}

// classifyStatus maps an HTTP status onto the failure taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return errors.New(errors.KindNotFound, "resource not found")
	case status == http.StatusTooManyRequests:
		return errors.New(errors.KindRateLimited, "upstream rate limited this path")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.KindLoginRequired, "upstream demands login")
	default:
		return errors.New(errors.KindUpstream, fmt.Sprintf("unexpected status %d", status))
	}
}
