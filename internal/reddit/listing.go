package reddit

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// PageSize is the number of records requested per listing page
const PageSize = 100

// Fetcher retrieves and decodes one JSON document
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, v interface{}) error
}

// StreamOptions bounds one ingestion stream
type StreamOptions struct {
	// MaxItems caps the number of records yielded in total
	MaxItems int
	// MaxRequests caps page fetches even when the listing never ends
	MaxRequests int
	// PageDelay is the pause between consecutive page fetches
	PageDelay time.Duration
	// Cutoff drops records created before it; the zero value keeps everything
	Cutoff time.Time
}

type listingResponse struct {
	Data struct {
		After    string         `json:"after"`
		Before   string         `json:"before"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// decodeFunc maps one listing child to a record, reporting false when it must be skipped
type decodeFunc[T any] func(raw json.RawMessage, cutoff int64) (T, bool)

// keyFunc returns the identity used to drop records a listing serves twice
type keyFunc[T any] func(T) string

// direction is the cursor a stream follows once it has left the first page
type direction int

const (
	directionNone direction = iota
	directionAfter
	directionBefore
)

// Stream is a pull iterator over validated batches of a cursor-paginated listing.
// It fetches one page per Next call and cannot be restarted once exhausted.
// The stream keeps the cursor direction of its first step, so a last page that only
// carries a before cursor ends the listing instead of walking back over seen pages.
type Stream[T any] struct {
	fetcher  Fetcher
	endpoint string
	kind     string
	decode   decodeFunc[T]
	key      keyFunc[T]
	opts     StreamOptions
	logger   *zap.Logger
	verbose  bool

	after    string
	before   string
	dir      direction
	seen     map[string]struct{}
	requests int
	total    int
	batch    []T
	done     bool
	err      error
}

func newStream[T any](f Fetcher, endpoint, kind string, decode decodeFunc[T], key keyFunc[T], opts StreamOptions, logger *zap.Logger, verbose bool) *Stream[T] {
	return &Stream[T]{
		fetcher:  f,
		endpoint: endpoint,
		kind:     kind,
		decode:   decode,
		key:      key,
		seen:     make(map[string]struct{}),
		opts:     opts,
		logger:   logger.With(zap.String("listing", kind)),
		verbose:  verbose,
	}
}

// Next fetches pages until one yields at least one valid record, returning false once the
// stream is exhausted, a stop condition fired, ctx was cancelled or a fetch failed.
func (s *Stream[T]) Next(ctx context.Context) bool {
	verbose := s.verbose || logging.IsVerbose(ctx)

	for !s.done {
		if s.requests > 0 {
			if err := sleep(ctx, s.opts.PageDelay); err != nil {
				s.finish(err)
				break
			}
		}

		page, err := s.fetchPage(ctx)
		if err != nil {
			s.finish(err)
			break
		}

		batch := s.filter(page)
		if remaining := s.opts.MaxItems - s.total; s.opts.MaxItems > 0 && len(batch) > remaining {
			batch = batch[:remaining]
		}
		s.total += len(batch)
		s.advance(page)

		logging.Detail(s.logger, verbose, "Fetched listing page",
			zap.Int("request", s.requests),
			zap.Int("received", len(page.Data.Children)),
			zap.Int("kept", len(batch)),
			zap.Int("total", s.total))

		switch {
		case s.opts.MaxItems > 0 && s.total >= s.opts.MaxItems:
			s.stop(verbose, "max items reached")
		case s.opts.MaxRequests > 0 && s.requests >= s.opts.MaxRequests:
			s.stop(verbose, "max requests reached")
		case s.after == "" && s.before == "":
			s.stop(verbose, "end of listing")
		case s.dir == directionAfter && s.after == "":
			s.stop(verbose, "end of listing")
		case s.dir == directionBefore && s.before == "":
			s.stop(verbose, "start of listing")
		}

		if len(batch) > 0 {
			s.batch = batch
			return true
		}
	}

	s.batch = nil
	return false
}

// Batch returns the records produced by the last successful Next call
func (s *Stream[T]) Batch() []T {
	return s.batch
}

// Err returns the failure that ended the stream early, if any. It is informational:
// a failed page never surfaces from Next, the stream simply ends.
func (s *Stream[T]) Err() error {
	return s.err
}

// Requests returns the number of page fetches issued so far
func (s *Stream[T]) Requests() int {
	return s.requests
}

// Total returns the number of records yielded so far
func (s *Stream[T]) Total() int {
	return s.total
}

// Close stops the stream; later Next calls return false
func (s *Stream[T]) Close() {
	s.done = true
	s.batch = nil
}

// All adapts the stream to a range-over-func sequence of batches
func (s *Stream[T]) All(ctx context.Context) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		for s.Next(ctx) {
			if !yield(s.Batch()) {
				s.Close()
				return
			}
		}
	}
}

// Collect drains the stream and concatenates every batch
func (s *Stream[T]) Collect(ctx context.Context) []T {
	var out []T
	for batch := range s.All(ctx) {
		out = append(out, batch...)
	}
	return out
}

func (s *Stream[T]) fetchPage(ctx context.Context) (*listingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "reddit.listing_page")
	defer span.End()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(PageSize))
	q.Set("sort", "new")
	switch {
	case s.dir != directionBefore && s.after != "":
		q.Set("after", s.after)
		s.dir = directionAfter
	case s.dir != directionAfter && s.before != "":
		q.Set("before", s.before)
		s.dir = directionBefore
	}

	s.requests++

	var page listingResponse
	if err := s.fetcher.FetchJSON(ctx, s.endpoint+"?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Stream[T]) filter(page *listingResponse) []T {
	var cutoff int64
	if !s.opts.Cutoff.IsZero() {
		cutoff = s.opts.Cutoff.Unix()
	}

	batch := make([]T, 0, len(page.Data.Children))
	for _, child := range page.Data.Children {
		record, ok := s.decode(child.Data, cutoff)
		if !ok {
			continue
		}
		if id := s.key(record); id != "" {
			if _, dup := s.seen[id]; dup {
				continue
			}
			s.seen[id] = struct{}{}
		}
		batch = append(batch, record)
	}
	return batch
}

// advance records the cursors of page for the next request
func (s *Stream[T]) advance(page *listingResponse) {
	s.after = page.Data.After
	s.before = page.Data.Before
}

func (s *Stream[T]) stop(verbose bool, reason string) {
	s.done = true
	logging.Detail(s.logger, verbose, "Listing finished",
		zap.String("reason", reason),
		zap.Int("requests", s.requests),
		zap.Int("total", s.total))
}

func (s *Stream[T]) finish(err error) {
	s.done = true
	s.err = err
	s.logger.Warn("Listing ended early",
		zap.Error(err),
		zap.Int("requests", s.requests),
		zap.Int("total", s.total))
}

type commentData struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	Author     string  `json:"author"`
	LinkTitle  string  `json:"link_title"`
}

func commentKey(c models.Comment) string { return c.ID }

func postKey(p models.Post) string { return p.ID }

func decodeComment(raw json.RawMessage, cutoff int64) (models.Comment, bool) {
	var d commentData
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.Comment{}, false
	}
	created := int64(d.CreatedUTC)
	if !models.ValidBody(d.Body) || created < cutoff {
		return models.Comment{}, false
	}
	return models.Comment{
		ID:         d.ID,
		Body:       d.Body,
		CreatedUTC: created,
		Subreddit:  d.Subreddit,
		Score:      d.Score,
		Permalink:  d.Permalink,
		Author:     d.Author,
		LinkTitle:  d.LinkTitle,
	}, true
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	CreatedUTC  float64 `json:"created_utc"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	NumComments int     `json:"num_comments"`
}

func decodePost(raw json.RawMessage, cutoff int64) (models.Post, bool) {
	var d postData
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.Post{}, false
	}
	created := int64(d.CreatedUTC)
	if !models.ValidBody(d.Selftext) || created < cutoff {
		return models.Post{}, false
	}
	return models.Post{
		ID:          d.ID,
		Title:       d.Title,
		Body:        d.Selftext,
		CreatedUTC:  created,
		Subreddit:   d.Subreddit,
		Score:       d.Score,
		Permalink:   d.Permalink,
		Author:      d.Author,
		NumComments: d.NumComments,
	}, true
}
