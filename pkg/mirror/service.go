package mirror

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/singleflight"

	"igmirror/pkg/cache"
	"igmirror/pkg/config"
	"igmirror/pkg/egress"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/metrics"
	"igmirror/pkg/models"
	"igmirror/pkg/quota"
)

// UpstreamClient is the set of logical platform calls the orchestrator
// consumes. Each returns normalized data plus the quota units the call
// cost, or a classified failure.
type UpstreamClient interface {
	FetchUserSummary(ctx context.Context, username string) (*models.User, int, error)
	FetchPostPage(ctx context.Context, userID, cursor string, feed models.FeedType) (*models.Page, int, error)
	FetchPostDetail(ctx context.Context, shortcode string) (*models.Post, int, error)
	ResolveVideoURL(ctx context.Context, shortcode string) (string, int, error)
}

// Service is the request orchestrator: the single entry point the
// presentation layer calls. It composes the quota ledger, the entity
// caches, the timeline pagers and the upstream client, and enforces quota
// before and after each upstream cost is known.
type Service struct {
	weights     config.WeightsConfig
	ledger      *quota.Ledger
	users       *cache.Cache[*models.User]
	posts       *cache.Cache[*models.Post]
	upstream    UpstreamClient
	switchboard *egress.Switchboard
	logger      logger.Logger

	// flights serializes the partial-hydration sub-fetches (post detail,
	// video URL) per entity, the same way the cache serializes root
	// fetches. Joiners share the executor's result at zero cost.
	flights singleflight.Group
}

// New creates the orchestrator and its owned state (ledger and caches).
func New(cfg *config.Config, up UpstreamClient, sw *egress.Switchboard, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Service{
		weights:     cfg.Quota.Weights,
		ledger:      quota.NewLedger(cfg.Quota.Budget, cfg.Quota.Window),
		users:       cache.New[*models.User](cfg.Cache.LongTTL, cfg.Cache.ShortTTL),
		posts:       cache.New[*models.Post](cfg.Cache.LongTTL, cfg.Cache.ShortTTL),
		upstream:    up,
		switchboard: sw,
		logger:      log,
	}
}

// UserPageResult is the resolved answer to a "user X, page N" request.
type UserPageResult struct {
	User      *models.User
	Feed      models.FeedType
	PageIndex int
	// Pages holds the committed pages 0..PageIndex, or fewer when the
	// feed ended before the requested index.
	Pages     []*models.Page
	Remaining int
}

// UserPage answers "give me user X's page N of feed F" for a requester.
//
// The sequence is: quota pre-check, root entity via cache, charge the
// actual summary cost, estimate the additional pages needed, quota
// short-circuit before fetching them, extend the timeline, charge its
// actual cost. Partial progress is never rolled back: pages fetched before
// a mid-sequence failure stay cached for the next attempt, and no units are
// refunded.
func (s *Service) UserPage(ctx context.Context, requester, username string, feed models.FeedType, pageIndex int) (*UserPageResult, error) {
	if pageIndex < 0 {
		pageIndex = 0
	}

	if s.ledger.Remaining(requester) <= 0 {
		metrics.QuotaRejections.Inc()
		return nil, errors.New(errors.KindQuotaExceeded, "requester exhausted its quota window")
	}

	// The charge lands whether or not the fetch succeeded: a failed call
	// still consumed upstream work (the client reports zero when no HTTP
	// request went out). A cached sentinel answers at zero cost.
	user, units, err := s.fetchUser(ctx, username)
	remaining := s.ledger.Charge(requester, units)
	if err != nil {
		return nil, err
	}

	tl := user.Timeline(feed)

	if needed := pageIndex + 1 - tl.PageCount(); needed > 0 {
		if needed*s.weights.PostPage > remaining {
			metrics.QuotaRejections.Inc()
			return nil, errors.Newf(errors.KindQuotaExceeded, "fetching %d more pages exceeds remaining quota", needed)
		}

		pageUnits, err := tl.FetchUpToPage(ctx, pageIndex)
		remaining = s.ledger.Charge(requester, pageUnits)
		if err != nil && !stderrors.Is(err, models.ErrEndOfFeed) {
			return nil, err
		}
		// End of feed is not terminal here: the committed pages are
		// served and the caller sees how far the feed goes.
	}

	pages := tl.Pages()
	if len(pages) > pageIndex+1 {
		pages = pages[:pageIndex+1]
	}

	return &UserPageResult{
		User:      user,
		Feed:      feed,
		PageIndex: pageIndex,
		Pages:     pages,
		Remaining: remaining,
	}, nil
}

// PostResult is the resolved answer to a "post Y" request.
type PostResult struct {
	Post      *models.Post
	Remaining int
}

// Post answers "give me post Y, fully hydrated" for a requester. A post
// seeded from a timeline page is upgraded in place by a detail fetch; its
// cache entry and TTL are untouched. Video URLs are resolved last, each
// step re-checking quota before spending.
func (s *Service) Post(ctx context.Context, requester, shortcode string) (*PostResult, error) {
	if s.ledger.Remaining(requester) <= 0 {
		metrics.QuotaRejections.Inc()
		return nil, errors.New(errors.KindQuotaExceeded, "requester exhausted its quota window")
	}

	key := "post/" + shortcode
	hit := s.posts.Has(key)
	post, units, err := s.posts.GetOrFetch(ctx, key, func(ctx context.Context) (*models.Post, int, error) {
		detail, units, err := s.upstream.FetchPostDetail(ctx, shortcode)
		if err != nil {
			return nil, units, err
		}
		full := &models.Post{Shortcode: shortcode}
		full.MergeDetail(detail)
		return full, units, nil
	})
	s.countLookup("posts", hit)
	remaining := s.ledger.Charge(requester, units)
	if err != nil {
		return nil, err
	}

	// A summary entry seeded from a timeline page still needs its
	// children and extended owner resolved. The sub-fetches run through
	// their own flight groups: concurrent requests for the same post
	// share one detail fetch and only the executor is charged.
	if post.Hydration() != models.HydrationFull {
		if remaining <= 0 {
			metrics.QuotaRejections.Inc()
			return nil, errors.New(errors.KindQuotaExceeded, "requester exhausted its quota window")
		}
		var detailUnits int
		_, err, _ = s.flights.Do("detail/"+shortcode, func() (interface{}, error) {
			if post.Hydration() == models.HydrationFull {
				return nil, nil
			}
			detail, units, err := s.upstream.FetchPostDetail(ctx, shortcode)
			detailUnits = units
			if err != nil {
				return nil, err
			}
			post.MergeDetail(detail)
			return nil, nil
		})
		remaining = s.ledger.Charge(requester, detailUnits)
		if err != nil {
			return nil, err
		}
	}

	if post.NeedsVideoURL() {
		if remaining <= 0 {
			metrics.QuotaRejections.Inc()
			return nil, errors.New(errors.KindQuotaExceeded, "requester exhausted its quota window")
		}
		var videoUnits int
		_, err, _ = s.flights.Do("video/"+shortcode, func() (interface{}, error) {
			if !post.NeedsVideoURL() {
				return nil, nil
			}
			videoURL, units, err := s.upstream.ResolveVideoURL(ctx, shortcode)
			videoUnits = units
			if err != nil {
				return nil, err
			}
			post.SetVideoURL(videoURL)
			return nil, nil
		})
		remaining = s.ledger.Charge(requester, videoUnits)
		if err != nil {
			return nil, err
		}
	}

	return &PostResult{Post: post, Remaining: remaining}, nil
}

// Remaining reports the requester's remaining quota without charging.
func (s *Service) Remaining(requester string) int {
	return s.ledger.Remaining(requester)
}

// UserCacheTTL returns how long a user's cache entry (including a blocked
// sentinel) remains live. The server derives Retry-After hints from it.
func (s *Service) UserCacheTTL(username string) int {
	ttl := s.users.TTLRemaining("user/" + username)
	return int(ttl.Seconds())
}

// Status is a point-in-time view of the instance's egress health.
type Status struct {
	AnyPathAvailable    bool                `json:"any_path_available"`
	AnonymizedAvailable bool                `json:"anonymized_available"`
	Paths               []egress.PathStatus `json:"paths"`
}

// Status reports whether the instance can currently reach the upstream and
// through which paths.
func (s *Service) Status() *Status {
	return &Status{
		AnyPathAvailable:    s.switchboard.AnyAvailable(),
		AnonymizedAvailable: s.switchboard.AnonymizedAvailable(),
		Paths:               s.switchboard.Status(),
	}
}

// ResetEgressPath clears the block state of an egress path
// (administrative intervention).
func (s *Service) ResetEgressPath(name string) {
	s.switchboard.Reset(name)
}

// fetchUser resolves a user through the cache, attaching the per-feed
// timeline pagers on first hydration.
func (s *Service) fetchUser(ctx context.Context, username string) (*models.User, int, error) {
	key := "user/" + username
	hit := s.users.Has(key)
	user, units, err := s.users.GetOrFetch(ctx, key, func(ctx context.Context) (*models.User, int, error) {
		u, units, err := s.upstream.FetchUserSummary(ctx, username)
		if err != nil {
			return nil, units, err
		}
		for _, feed := range []models.FeedType{models.FeedPosts, models.FeedVideos} {
			u.AttachTimeline(feed, models.NewTimeline(s.pageFetcher(u.ID, feed)))
		}
		return u, units, nil
	})
	s.countLookup("users", hit)
	return user, units, err
}

// pageFetcher builds the fetch closure a timeline uses to extend itself.
// Every post on a fetched page is seeded into the post cache so a later
// post request starts from the summary instead of a cold miss.
func (s *Service) pageFetcher(userID string, feed models.FeedType) models.PageFetcher {
	return func(ctx context.Context, cursor string) (*models.Page, int, error) {
		page, units, err := s.upstream.FetchPostPage(ctx, userID, cursor, feed)
		if err != nil {
			return nil, units, err
		}
		for _, post := range page.Posts {
			s.posts.Seed("post/"+post.Shortcode, post)
		}
		return page, units, nil
	}
}

func (s *Service) countLookup(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(name, result).Inc()
}
