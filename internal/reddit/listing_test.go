package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/config"
)

// pageFetcher serves canned listing pages keyed by request number (0-based)
type pageFetcher struct {
	page func(n int) (string, error)
	urls []string
}

func (f *pageFetcher) FetchJSON(_ context.Context, rawURL string, v interface{}) error {
	n := len(f.urls)
	f.urls = append(f.urls, rawURL)
	body, err := f.page(n)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), v)
}

func listingJSON(t *testing.T, after, before string, children ...map[string]interface{}) string {
	t.Helper()
	wrapped := make([]map[string]interface{}, 0, len(children))
	for _, c := range children {
		wrapped = append(wrapped, map[string]interface{}{"kind": "t1", "data": c})
	}
	data := map[string]interface{}{"children": wrapped, "after": nil, "before": nil}
	if after != "" {
		data["after"] = after
	}
	if before != "" {
		data["before"] = before
	}
	raw, err := json.Marshal(map[string]interface{}{"kind": "Listing", "data": data})
	if err != nil {
		t.Fatalf("marshal listing: %v", err)
	}
	return string(raw)
}

func comment(id, body string, created time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"body":        body,
		"created_utc": float64(created.Unix()),
		"subreddit":   "golang",
		"score":       3,
		"permalink":   "/r/golang/comments/x/" + id,
		"author":      "alice",
		"link_title":  "Generics in practice",
	}
}

func validComments(prefix string, n int, created time.Time) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = comment(fmt.Sprintf("%s%d", prefix, i), "a perfectly reasonable opinion about Go", created)
	}
	return out
}

func commentStream(f Fetcher, opts StreamOptions) *Stream[models.Comment] {
	return newStream(f, "https://reddit.test/user/alice/comments.json", "comments", decodeComment, commentKey, opts, zap.NewNop(), false)
}

func TestStream_FiltersInvalidRecords(t *testing.T) {
	now := time.Now()
	cutoff := now.Add(-365 * 24 * time.Hour)

	f := &pageFetcher{page: func(int) (string, error) {
		return listingJSON(t, "", "",
			comment("ok1", "this comment is long enough to keep", now),
			comment("removed", "[removed]", now),
			comment("deleted", "[deleted]", now),
			comment("empty", "", now),
			comment("blank", "                          ", now),
			comment("short", "too short", now),
			comment("twenty", strings.Repeat("x", 20), now),
			comment("old", "this comment is long but far too old", cutoff.Add(-time.Hour)),
			comment("ok2", strings.Repeat("y", 21), cutoff.Add(time.Hour)),
		), nil
	}}

	got := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10, Cutoff: cutoff}).Collect(context.Background())

	if len(got) != 2 {
		t.Fatalf("Collect() returned %d records, want 2: %+v", len(got), got)
	}
	for _, c := range got {
		if !models.ValidBody(c.Body) || c.CreatedUTC < cutoff.Unix() {
			t.Errorf("invalid record yielded: %+v", c)
		}
	}
	if got[0].ID != "ok1" || got[1].ID != "ok2" {
		t.Errorf("unexpected ids %q, %q", got[0].ID, got[1].ID)
	}
	if got[0].LinkTitle != "Generics in practice" {
		t.Errorf("LinkTitle not mapped: %q", got[0].LinkTitle)
	}
}

func TestStream_CircuitBreaker(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		// The listing never reports an end
		return listingJSON(t, fmt.Sprintf("t1_%d", n), "", validComments(fmt.Sprintf("p%d-", n), 10, now)...), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100000, MaxRequests: 5})
	got := s.Collect(context.Background())

	if s.Requests() != 5 || len(f.urls) != 5 {
		t.Fatalf("requests = %d (fetched %d), want 5", s.Requests(), len(f.urls))
	}
	if len(got) != 50 {
		t.Errorf("records = %d, want 50", len(got))
	}
	if s.Next(context.Background()) {
		t.Error("Next() after exhaustion should return false")
	}
	if len(f.urls) != 5 {
		t.Errorf("exhausted stream issued another request")
	}
}

func TestStream_EmptyPagesCountTowardsCeiling(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		if n < 2 {
			return listingJSON(t, "t1_next", "", comment("r", "[removed]", now)), nil
		}
		return listingJSON(t, "", "", validComments("v", 3, now)...), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10})
	ctx := context.Background()

	if !s.Next(ctx) {
		t.Fatal("Next() = false, want a batch from the third page")
	}
	if len(s.Batch()) != 3 {
		t.Errorf("batch size = %d, want 3", len(s.Batch()))
	}
	if s.Requests() != 3 {
		t.Errorf("requests = %d, want 3", s.Requests())
	}
	if s.Next(ctx) {
		t.Error("Next() = true after end of listing")
	}
}

func TestStream_EmptyPagesStillHitCeiling(t *testing.T) {
	f := &pageFetcher{page: func(int) (string, error) {
		return listingJSON(t, "t1_next", "", comment("r", "[deleted]", time.Now())), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 4})
	if s.Next(context.Background()) {
		t.Fatal("Next() = true for a stream of fully filtered pages")
	}
	if s.Requests() != 4 {
		t.Errorf("requests = %d, want 4", s.Requests())
	}
}

func TestStream_MaxItemsTruncates(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		return listingJSON(t, "t1_more", "", validComments(fmt.Sprintf("p%d-", n), PageSize, now)...), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 150, MaxRequests: 50})
	got := s.Collect(context.Background())

	if len(got) != 150 || s.Total() != 150 {
		t.Fatalf("records = %d (total %d), want 150", len(got), s.Total())
	}
	if s.Requests() != 2 {
		t.Errorf("requests = %d, want 2", s.Requests())
	}
}

func TestStream_ErrorEndsStreamKeepingPartialResults(t *testing.T) {
	now := time.Now()
	upstream := StatusError("https://reddit.test", 500)
	f := &pageFetcher{page: func(n int) (string, error) {
		if n == 0 {
			return listingJSON(t, "t1_more", "", validComments("a", 4, now)...), nil
		}
		return "", upstream
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10})
	got := s.Collect(context.Background())

	if len(got) != 4 {
		t.Errorf("records = %d, want 4 from the first page", len(got))
	}
	if !errors.Is(s.Err(), ErrServerError) {
		t.Errorf("Err() = %v, want ErrServerError", s.Err())
	}
}

func streamQueries(t *testing.T, urls []string) []url.Values {
	t.Helper()
	out := make([]url.Values, len(urls))
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		out[i] = u.Query()
	}
	return out
}

func TestStream_CursorParameters(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		pages      []string
		wantCursor []string // "", "after=<c>" or "before=<c>" per request
	}{
		{
			name: "follows after",
			pages: []string{
				listingJSON(t, "t1_abc", "", validComments("a", 1, now)...),
				listingJSON(t, "t1_def", "t1_a0", validComments("b", 1, now)...),
				listingJSON(t, "", "t1_b0", validComments("c", 1, now)...),
			},
			wantCursor: []string{"", "after=t1_abc", "after=t1_def"},
		},
		{
			name: "falls back to before on the first step",
			pages: []string{
				listingJSON(t, "", "t1_back", validComments("a", 1, now)...),
				listingJSON(t, "t1_a0", "t1_older", validComments("b", 1, now)...),
				listingJSON(t, "t1_b0", "", validComments("c", 1, now)...),
			},
			wantCursor: []string{"", "before=t1_back", "before=t1_older"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &pageFetcher{page: func(n int) (string, error) {
				if n < len(tt.pages) {
					return tt.pages[n], nil
				}
				return listingJSON(t, "", ""), nil
			}}

			commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10}).Collect(context.Background())

			queries := streamQueries(t, f.urls)
			if len(queries) != len(tt.wantCursor) {
				t.Fatalf("requests = %d, want %d: %v", len(queries), len(tt.wantCursor), f.urls)
			}
			for i, q := range queries {
				if q.Get("limit") != "100" || q.Get("sort") != "new" {
					t.Errorf("query %d = %v, want limit=100&sort=new", i, q)
				}
				var got string
				switch {
				case q.Has("after") && q.Has("before"):
					t.Errorf("query %d carries both cursors: %v", i, q)
				case q.Has("after"):
					got = "after=" + q.Get("after")
				case q.Has("before"):
					got = "before=" + q.Get("before")
				}
				if got != tt.wantCursor[i] {
					t.Errorf("query %d cursor = %q, want %q", i, got, tt.wantCursor[i])
				}
			}
		})
	}
}

// redditListing serves a newest-first history with Reddit's cursor rules: after names the
// last record of the page and is null on the last page; before names the first record and
// is null on the first page.
type redditListing struct {
	t       *testing.T
	records []map[string]interface{}
	urls    []string
}

func newRedditListing(t *testing.T, n int) *redditListing {
	now := time.Now()
	l := &redditListing{t: t}
	for i := 0; i < n; i++ {
		l.records = append(l.records, comment(strconv.Itoa(i), "an opinion that is long enough to keep", now.Add(-time.Duration(i)*time.Minute)))
	}
	return l
}

func (l *redditListing) index(fullname string) int {
	i, err := strconv.Atoi(strings.TrimPrefix(fullname, "t1_"))
	if err != nil {
		l.t.Fatalf("bad cursor %q", fullname)
	}
	return i
}

func (l *redditListing) FetchJSON(_ context.Context, rawURL string, v interface{}) error {
	l.urls = append(l.urls, rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	q := u.Query()

	start := 0
	switch {
	case q.Has("after"):
		start = l.index(q.Get("after")) + 1
	case q.Has("before"):
		start = max(l.index(q.Get("before"))-PageSize, 0)
	}
	end := min(start+PageSize, len(l.records))

	var after, before string
	if end < len(l.records) {
		after = fmt.Sprintf("t1_%d", end-1)
	}
	if start > 0 {
		before = fmt.Sprintf("t1_%d", start)
	}
	return json.Unmarshal([]byte(listingJSON(l.t, after, before, l.records[start:end]...)), v)
}

func TestStream_RedditCursorsYieldEachRecordOnce(t *testing.T) {
	l := newRedditListing(t, 250)

	s := commentStream(l, StreamOptions{MaxItems: 2000, MaxRequests: 50})
	got := s.Collect(context.Background())

	if len(got) != 250 {
		t.Fatalf("records = %d, want 250", len(got))
	}
	seen := make(map[string]bool, len(got))
	for _, c := range got {
		if seen[c.ID] {
			t.Fatalf("record %s yielded twice", c.ID)
		}
		seen[c.ID] = true
	}
	if s.Requests() != 3 {
		t.Errorf("requests = %d, want 3: %v", s.Requests(), l.urls)
	}
	for _, q := range streamQueries(t, l.urls) {
		if q.Has("before") {
			t.Errorf("stream paged backwards: %v", q)
		}
	}
}

func TestStream_DropsRepeatedRecords(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		switch n {
		case 0:
			return listingJSON(t, "t1_a2", "", validComments("a", 3, now)...), nil
		case 1:
			// The listing shifted under us and serves the first page again
			return listingJSON(t, "t1_a2", "", validComments("a", 3, now)...), nil
		default:
			return listingJSON(t, "", "", validComments("b", 2, now)...), nil
		}
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10})
	got := s.Collect(context.Background())

	if len(got) != 5 || s.Total() != 5 {
		t.Fatalf("records = %d (total %d), want 5", len(got), s.Total())
	}
	if s.Requests() != 3 {
		t.Errorf("requests = %d, want 3", s.Requests())
	}
}

func TestClient_SetVerboseRaisesDetailLogs(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		verbose  bool
		wantInfo bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			logger := zap.New(core)

			f := &pageFetcher{page: func(int) (string, error) {
				return listingJSON(t, "", "", validComments("a", 2, now)...), nil
			}}
			c := NewWithFetcher(&config.RedditConfig{BaseURL: "https://reddit.test", CommentsMaxItems: 10, CommentsMaxRequests: 2}, f)
			c.logger = logger
			c.SetVerbose(tt.verbose)

			if got := c.Comments("alice").Collect(context.Background()); len(got) != 2 {
				t.Fatalf("records = %d, want 2", len(got))
			}

			pages := logs.FilterMessage("Fetched listing page").Len()
			if tt.wantInfo && pages != 1 {
				t.Errorf("info page logs = %d, want 1", pages)
			}
			if !tt.wantInfo && pages != 0 {
				t.Errorf("page log reached info level without verbose")
			}
		})
	}
}

func TestStream_CancelDuringPageDelay(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		return listingJSON(t, "t1_more", "", validComments(fmt.Sprintf("p%d-", n), 2, now)...), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10, PageDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	if !s.Next(ctx) {
		t.Fatal("first Next() should not wait")
	}
	cancel()

	done := make(chan bool)
	go func() { done <- s.Next(ctx) }()

	select {
	case more := <-done:
		if more {
			t.Error("Next() = true after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() did not honour cancellation during the page delay")
	}
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", s.Err())
	}
}

func TestStream_AllStopsWhenConsumerBreaks(t *testing.T) {
	now := time.Now()
	f := &pageFetcher{page: func(n int) (string, error) {
		return listingJSON(t, "t1_more", "", validComments(fmt.Sprintf("p%d-", n), 2, now)...), nil
	}}

	s := commentStream(f, StreamOptions{MaxItems: 100, MaxRequests: 10})
	for range s.All(context.Background()) {
		break
	}

	if s.Next(context.Background()) {
		t.Error("Next() after the consumer stopped should return false")
	}
	if len(f.urls) != 1 {
		t.Errorf("requests = %d, want 1", len(f.urls))
	}
}

func TestDecodePost(t *testing.T) {
	raw := json.RawMessage(`{"id":"p1","title":"Why I switched","selftext":"I used to love tabs but now prefer spaces","created_utc":1700000000.0,"subreddit":"programming","score":12,"permalink":"/r/programming/p1","author":"alice","num_comments":7}`)

	post, ok := decodePost(raw, 0)
	if !ok {
		t.Fatal("decodePost() rejected a valid post")
	}
	if post.Body != "I used to love tabs but now prefer spaces" || post.NumComments != 7 || post.CreatedUTC != 1700000000 {
		t.Errorf("decodePost() = %+v", post)
	}

	if _, ok := decodePost(json.RawMessage(`{"id":"link","title":"A link post","selftext":""}`), 0); ok {
		t.Error("decodePost() kept a post without a body")
	}
}
