package scoring

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You review the public Reddit history of a single user and look for contradictions:
pairs of statements by the same author that cannot both be sincerely true, or positions that were
reversed without acknowledgement. Ignore jokes, quotes of other people and obvious sarcasm.

Answer with JSON only, using this shape:
{
  "summary": "two or three sentences about the user's consistency",
  "sentimentTrend": "improving | stable | declining | mixed",
  "contradictions": [
    {
      "topic": "short topic",
      "summary": "what changed between the statements",
      "confidenceScore": 0-100,
      "verified": true when both statements are quoted verbatim from the history,
      "statements": [
        {"text": "...", "permalink": "...", "subreddit": "...", "created_utc": 0},
        {"text": "...", "permalink": "...", "subreddit": "...", "created_utc": 0}
      ]
    }
  ],
  "timeline": [
    {"date": 0, "description": "...", "subreddit": "...", "permalink": "..."}
  ]
}
Timestamps are epoch seconds copied from the history entries.`

// buildPrompt renders the history as one entry per line, newest first, stopping before maxChars
func buildPrompt(in Input, maxChars int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "History of u/%s (%d comments, %d posts).\n\n", in.Username, len(in.Comments), len(in.Posts))

	included := 0
	add := func(line string) bool {
		if maxChars > 0 && b.Len()+len(line) > maxChars {
			return false
		}
		b.WriteString(line)
		included++
		return true
	}

	for _, p := range in.Posts {
		line := fmt.Sprintf("[post %s] created_utc=%d %s r/%s %s\nTitle: %s\n%s\n\n",
			p.ID, p.CreatedUTC, day(p.CreatedUTC), p.Subreddit, p.Permalink, p.Title, p.Body)
		if !add(line) {
			return b.String(), included
		}
	}
	for _, c := range in.Comments {
		line := fmt.Sprintf("[comment %s] created_utc=%d %s r/%s %s\n%s\n\n",
			c.ID, c.CreatedUTC, day(c.CreatedUTC), c.Subreddit, c.Permalink, c.Body)
		if !add(line) {
			break
		}
	}
	return b.String(), included
}

func day(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.DateOnly)
}

// cleanJSON strips the markdown fence models like to wrap JSON answers in
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
