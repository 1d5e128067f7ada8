package scoring

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/internal/reddit"
)

// topSubredditCount is the number of communities listed in report stats
const topSubredditCount = 5

var (
	// ErrEmptyResponse is returned when the model produced no usable text
	ErrEmptyResponse = errors.New("scoring model returned an empty response")
	// ErrMalformedResponse is returned when the model output is not a valid report
	ErrMalformedResponse = errors.New("scoring model returned a malformed report")
)

// Input is the normalized history handed to a pipeline
type Input struct {
	Comments []models.Comment
	Posts    []models.Post
	Username string
}

// Empty reports whether there is nothing to score
func (in Input) Empty() bool {
	return len(in.Comments) == 0 && len(in.Posts) == 0
}

// Pipeline turns a user's history into a contradiction report
type Pipeline interface {
	Analyze(ctx context.Context, in Input) (*models.Report, error)
}

// ComputeStats derives the aggregate history statistics that do not need a model
func ComputeStats(in Input) models.Stats {
	stats := models.Stats{
		TotalComments: len(in.Comments),
		TotalPosts:    len(in.Posts),
		TopSubreddits: []string{},
	}
	if in.Empty() {
		return stats
	}

	counts := make(map[string]int)
	var oldest, newest int64
	observe := func(subreddit string, created int64) {
		if subreddit != "" {
			counts[subreddit]++
		}
		if oldest == 0 || created < oldest {
			oldest = created
		}
		if created > newest {
			newest = created
		}
	}
	for _, c := range in.Comments {
		observe(c.Subreddit, c.CreatedUTC)
	}
	for _, p := range in.Posts {
		observe(p.Subreddit, p.CreatedUTC)
	}

	subreddits := make([]string, 0, len(counts))
	for name := range counts {
		subreddits = append(subreddits, name)
	}
	slices.SortFunc(subreddits, func(a, b string) int {
		if n := cmp.Compare(counts[b], counts[a]); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	if len(subreddits) > topSubredditCount {
		subreddits = subreddits[:topSubredditCount]
	}
	stats.TopSubreddits = subreddits
	stats.Timespan = reddit.AgeBucket(int((newest - oldest) / 86400))

	return stats
}
