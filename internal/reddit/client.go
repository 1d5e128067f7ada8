package reddit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// Client reads public user history from the Reddit JSON API
type Client struct {
	http     Fetcher
	baseURL  string
	comments StreamOptions
	posts    StreamOptions
	maxAge   time.Duration
	logger   *zap.Logger
	verbose  atomic.Bool
	now      func() time.Time
}

// New creates a new Reddit client
func New(cfg *config.RedditConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("reddit_base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid reddit_base_url: %w", err)
	}

	logger := logging.WithComponent("reddit-client")

	client := NewWithFetcher(cfg, NewHTTPClient(cfg, logger))

	logger.Info("Reddit client initialized", zap.String("url", cfg.BaseURL))

	return client, nil
}

// NewWithFetcher creates a client that issues its requests through f
func NewWithFetcher(cfg *config.RedditConfig, f Fetcher) *Client {
	c := &Client{
		http:    f,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		comments: StreamOptions{
			MaxItems:    cfg.CommentsMaxItems,
			MaxRequests: cfg.CommentsMaxRequests,
			PageDelay:   cfg.PageDelay,
		},
		posts: StreamOptions{
			MaxItems:    cfg.PostsMaxItems,
			MaxRequests: cfg.PostsMaxRequests,
			PageDelay:   cfg.PageDelay,
		},
		maxAge: time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		logger: logging.WithComponent("reddit-client"),
		now:    time.Now,
	}
	c.verbose.Store(cfg.Verbose)
	return c
}

// SetVerbose toggles page-level logging at info level for this client and its HTTP layer
func (c *Client) SetVerbose(v bool) {
	c.verbose.Store(v)
	if h, ok := c.http.(*HTTPClient); ok {
		h.SetVerbose(v)
	}
}

// Comments returns a stream over the user's comments, newest first
func (c *Client) Comments(username string) *Stream[models.Comment] {
	return newStream(c.http, c.userURL(username, "comments.json"), "comments", decodeComment, commentKey, c.withCutoff(c.comments), c.logger.With(zap.String("username", username)), c.verbose.Load())
}

// Posts returns a stream over the user's submissions, newest first
func (c *Client) Posts(username string) *Stream[models.Post] {
	return newStream(c.http, c.userURL(username, "submitted.json"), "posts", decodePost, postKey, c.withCutoff(c.posts), c.logger.With(zap.String("username", username)), c.verbose.Load())
}

// FetchUserData fetches the profile and drains both history streams
func (c *Client) FetchUserData(ctx context.Context, username string) (*models.UserData, error) {
	ctx, span := telemetry.StartSpan(ctx, "reddit.fetch_user_data")
	defer span.End()
	span.SetAttributes(attribute.String("reddit.username", username))

	profile, err := c.GetUserInfo(ctx, username)
	if err != nil {
		return nil, err
	}

	comments := c.Comments(username).Collect(ctx)
	posts := c.Posts(username).Collect(ctx)

	// A cancelled run must not be mistaken for a user with no history
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", username, err)
	}

	c.logger.Info("Fetched user history",
		zap.String("username", username),
		zap.Int("comments", len(comments)),
		zap.Int("posts", len(posts)))

	return &models.UserData{
		Profile:  profile,
		Comments: comments,
		Posts:    posts,
	}, nil
}

func (c *Client) withCutoff(opts StreamOptions) StreamOptions {
	if c.maxAge > 0 {
		opts.Cutoff = c.now().Add(-c.maxAge)
	}
	return opts
}

func (c *Client) userURL(username, resource string) string {
	return fmt.Sprintf("%s/user/%s/%s", c.baseURL, url.PathEscape(username), resource)
}
