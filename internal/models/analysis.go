package models

import (
	"fmt"
	"time"
)

// AnalysisStatus is the terminal state of one analysis run
type AnalysisStatus string

const (
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// DefaultConfidence is used for findings the scoring pipeline returned without a score
const DefaultConfidence = 50.0

// Analysis is the immutable outcome of analysing one user
type Analysis struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	RequesterID        string         `json:"requesterId"`
	ContradictionCount int            `json:"contradictionCount"`
	ConfidenceScore    int            `json:"confidenceScore"`
	AnalyzedAt         time.Time      `json:"analyzedAt"`
	Report             Report         `json:"reportData"`
	Status             AnalysisStatus `json:"status"`
}

// AnalysisID derives the analysis identifier from its timestamp and target
func AnalysisID(at time.Time, username string) string {
	return fmt.Sprintf("%d-%s", at.UnixMilli(), username)
}

// Report is the payload produced by the scoring pipeline
type Report struct {
	Summary        string    `json:"summary"`
	Contradictions []Finding `json:"contradictions"`
	Timeline       []Event   `json:"timeline"`
	Stats          Stats     `json:"stats"`
	Usage          Usage     `json:"usage"`
}

// Stats aggregates the ingested history
type Stats struct {
	TotalComments  int      `json:"totalComments"`
	TotalPosts     int      `json:"totalPosts"`
	Timespan       string   `json:"timespan"`
	TopSubreddits  []string `json:"topSubreddits"`
	SentimentTrend string   `json:"sentimentTrend"`
}

// Usage is the model consumption of one pipeline run
type Usage struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// Event is one dated point on the report timeline
type Event struct {
	Date        int64  `json:"date"`
	Description string `json:"description"`
	Subreddit   string `json:"subreddit,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
}

// Statement is one side of a contradiction
type Statement struct {
	Text       string `json:"text"`
	Permalink  string `json:"permalink,omitempty"`
	Subreddit  string `json:"subreddit,omitempty"`
	CreatedUTC int64  `json:"created_utc,omitempty"`
}

// DatePair holds the epoch seconds of the two contradicting statements
type DatePair struct {
	First  int64 `json:"first"`
	Second int64 `json:"second"`
}

// Midpoint returns the instant halfway between both statements
func (d DatePair) Midpoint() time.Time {
	return time.Unix((d.First+d.Second)/2, 0).UTC()
}

// Finding is a contradiction detected by the scoring pipeline
type Finding struct {
	ID              string      `json:"id,omitempty"`
	Topic           string      `json:"topic,omitempty"`
	Summary         string      `json:"summary,omitempty"`
	Statements      []Statement `json:"statements,omitempty"`
	ConfidenceScore *float64    `json:"confidenceScore,omitempty"`
	Verified        bool        `json:"verified,omitempty"`
	Dates           *DatePair   `json:"dates,omitempty"`
}

// Confidence returns the finding's score in [0, 100], DefaultConfidence when absent
func (f Finding) Confidence() float64 {
	if f.ConfidenceScore == nil {
		return DefaultConfidence
	}
	score := *f.ConfidenceScore
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
