package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/mirror"
	"igmirror/pkg/models"
	"igmirror/pkg/upstream"
)

// Handler holds the route implementations.
type Handler struct {
	svc    *mirror.Service
	logger logger.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type userPageResponse struct {
	User      *models.UserView   `json:"user"`
	Feed      string             `json:"feed"`
	Page      int                `json:"page"`
	Pages     []*models.PageView `json:"pages"`
	Remaining int                `json:"remaining"`
}

type pageFragmentResponse struct {
	Feed      string           `json:"feed"`
	Page      int              `json:"page"`
	Content   *models.PageView `json:"content"`
	Remaining int              `json:"remaining"`
}

type postResponse struct {
	Title     string           `json:"title"`
	Post      *models.PostView `json:"post"`
	Remaining int              `json:"remaining"`
}

// Health answers liveness probes.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the instance's egress health.
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Status())
}

// UserPage serves a user's profile plus feed pages up to the requested
// 1-based page number.
func (h *Handler) UserPage(c echo.Context) error {
	username, ok := normalizeUsername(c.Param("username"))
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "expected a username"})
	}

	feed := models.ParseFeedType(c.QueryParam("feed"))
	pageNumber := parsePageNumber(c.QueryParam("page"))

	res, err := h.svc.UserPage(c.Request().Context(), requesterKey(c), username, feed, pageNumber-1)
	if err != nil {
		return h.failure(c, err, username)
	}

	pages := make([]*models.PageView, 0, len(res.Pages))
	for _, p := range res.Pages {
		pages = append(pages, p.Snapshot())
	}

	return c.JSON(http.StatusOK, userPageResponse{
		User:      res.User.Snapshot(),
		Feed:      string(res.Feed),
		Page:      res.PageIndex + 1,
		Pages:     pages,
		Remaining: res.Remaining,
	})
}

// UserPageFragment serves exactly one feed page, for incremental loading.
func (h *Handler) UserPageFragment(c echo.Context) error {
	username, ok := normalizeUsername(c.Param("username"))
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "expected a username"})
	}

	pageNumber, err := strconv.Atoi(c.Param("n"))
	if err != nil || pageNumber < 1 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "bad page number"})
	}

	feed := models.ParseFeedType(c.QueryParam("feed"))

	res, err := h.svc.UserPage(c.Request().Context(), requesterKey(c), username, feed, pageNumber-1)
	if err != nil {
		return h.failure(c, err, username)
	}

	if len(res.Pages) < pageNumber {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "that page does not exist"})
	}

	return c.JSON(http.StatusOK, pageFragmentResponse{
		Feed:      string(res.Feed),
		Page:      pageNumber,
		Content:   res.Pages[pageNumber-1].Snapshot(),
		Remaining: res.Remaining,
	})
}

// Post serves a single fully hydrated post.
func (h *Handler) Post(c echo.Context) error {
	shortcode := strings.TrimSuffix(c.Param("shortcode"), "/")
	if !upstream.ValidShortcode(shortcode) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "expected a shortcode"})
	}

	res, err := h.svc.Post(c.Request().Context(), requesterKey(c), shortcode)
	if err != nil {
		return h.failure(c, err, "")
	}

	view := res.Post.Snapshot()
	return c.JSON(http.StatusOK, postResponse{
		Title:     postTitle(res.Post),
		Post:      view,
		Remaining: res.Remaining,
	})
}

// ResetEgressPath clears the block state of an egress path.
func (h *Handler) ResetEgressPath(c echo.Context) error {
	h.svc.ResetEgressPath(c.Param("name"))
	return c.JSON(http.StatusOK, h.svc.Status())
}

// failure maps a classified failure onto a status code. LoginRequired
// carries a Retry-After hint derived from the cached sentinel's TTL.
func (h *Handler) failure(c echo.Context, err error, username string) error {
	kind := errors.KindOf(err)
	body := errorResponse{Error: string(kind)}

	switch kind {
	case errors.KindNotFound, errors.KindEndpointOverridden:
		body.Message = "this entity does not exist"
		return c.JSON(http.StatusNotFound, body)
	case errors.KindLoginRequired:
		if username != "" {
			if ttl := h.svc.UserCacheTTL(username); ttl > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(ttl))
			}
		}
		body.Message = "the upstream is blocking this instance"
		return c.JSON(http.StatusServiceUnavailable, body)
	case errors.KindRateLimited, errors.KindNoPathAvailable:
		body.Message = "the upstream is blocking this instance"
		return c.JSON(http.StatusServiceUnavailable, body)
	case errors.KindAgeRestricted:
		body.Message = "this post is age restricted"
		return c.JSON(http.StatusForbidden, body)
	case errors.KindQuotaExceeded:
		body.Message = "you have reached your request quota, wait for your counter to reset"
		return c.JSON(http.StatusTooManyRequests, body)
	default:
		h.logger.WithError(err).Error("unclassified upstream failure")
		body.Message = "the upstream request failed"
		return c.JSON(http.StatusBadGateway, body)
	}
}

// requesterKey derives the opaque quota key from the caller's connection.
func requesterKey(c echo.Context) string {
	return c.RealIP()
}

// normalizeUsername strips the decorations people paste along with a
// username and lowercases it, mirroring the upstream's case rules.
func normalizeUsername(raw string) (string, bool) {
	username := strings.TrimPrefix(raw, "@")
	username = strings.TrimSuffix(username, "/")
	username = strings.ToLower(username)
	if !upstream.ValidUsername(username) {
		return "", false
	}
	return username, true
}

// parsePageNumber interprets the 1-based page query parameter, defaulting
// to the first page on anything unparseable.
func parsePageNumber(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func postTitle(post *models.Post) string {
	if intro := post.CaptionIntroduction(); intro != "" {
		return intro
	}
	return "Post from @" + post.OwnerUsername
}
