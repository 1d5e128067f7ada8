package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gingfrederik/docx"

	"github.com/flipcheck/flipcheck/internal/models"
)

const separator = "--------------------------------------------------"

// Filename is the export file name for a, unique per user and analysis time
func Filename(a *models.Analysis) string {
	return fmt.Sprintf("flipcheck-%s-%s.docx", strings.ToLower(a.Username), a.AnalyzedAt.UTC().Format("20060102-150405"))
}

// WriteDocx renders a as a Word document at path
func WriteDocx(path string, a *models.Analysis) error {
	if a == nil {
		return fmt.Errorf("no analysis to export")
	}

	f := docx.NewFile()

	run := f.AddParagraph().AddText(fmt.Sprintf("Contradiction Report: u/%s", a.Username))
	run.Size(20)

	run = f.AddParagraph().AddText(fmt.Sprintf("Analysed %s | Status: %s | Requested by: %s",
		a.AnalyzedAt.UTC().Format(time.RFC1123), a.Status, a.RequesterID))
	run.Size(10)
	run.Color("808080")

	run = f.AddParagraph().AddText(fmt.Sprintf("Confidence: %d/100 | Contradictions: %d", a.ConfidenceScore, a.ContradictionCount))
	run.Color(confidenceColor(a.ConfidenceScore))
	f.AddParagraph()

	f.AddParagraph().AddText("Summary").Size(16)
	f.AddParagraph().AddText(a.Report.Summary)
	f.AddParagraph()

	stats := a.Report.Stats
	f.AddParagraph().AddText("History").Size(16)
	f.AddParagraph().AddText(fmt.Sprintf("%d comments and %d posts over %s", stats.TotalComments, stats.TotalPosts, orNone(stats.Timespan)))
	if len(stats.TopSubreddits) > 0 {
		f.AddParagraph().AddText("Most active in: r/" + strings.Join(stats.TopSubreddits, ", r/"))
	}
	if stats.SentimentTrend != "" {
		f.AddParagraph().AddText("Sentiment trend: " + stats.SentimentTrend)
	}
	f.AddParagraph()

	if len(a.Report.Contradictions) > 0 {
		f.AddParagraph().AddText("Contradictions").Size(16)
		for i, c := range a.Report.Contradictions {
			writeFinding(f, i+1, c)
		}
	}

	if len(a.Report.Timeline) > 0 {
		f.AddParagraph().AddText("Timeline").Size(16)
		for _, e := range a.Report.Timeline {
			f.AddParagraph().AddText(fmt.Sprintf("- %s: %s", day(e.Date), e.Description))
		}
	}

	return f.Save(path)
}

func writeFinding(f *docx.File, n int, c models.Finding) {
	title := c.Topic
	if title == "" {
		title = fmt.Sprintf("Finding %d", n)
	}
	f.AddParagraph().AddText(fmt.Sprintf("%d. %s", n, title)).Size(13)

	meta := fmt.Sprintf("Confidence: %.0f", c.Confidence())
	if c.Verified {
		meta += " | verified"
	}
	run := f.AddParagraph().AddText(meta)
	run.Size(10)
	run.Color("808080")

	if c.Summary != "" {
		f.AddParagraph().AddText(c.Summary)
	}
	for _, s := range c.Statements {
		line := fmt.Sprintf("\"%s\"", s.Text)
		if s.CreatedUTC > 0 {
			line += fmt.Sprintf(" (%s", day(s.CreatedUTC))
			if s.Subreddit != "" {
				line += ", r/" + s.Subreddit
			}
			line += ")"
		}
		f.AddParagraph().AddText(line)
		if s.Permalink != "" {
			run := f.AddParagraph().AddText("https://www.reddit.com" + s.Permalink)
			run.Size(9)
			run.Color("0000FF")
		}
	}
	f.AddParagraph().AddText(separator)
}

// ExportAll writes one document per analysis into dir and returns the written paths
func ExportAll(dir string, analyses []*models.Analysis) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	paths := make([]string, 0, len(analyses))
	for _, a := range analyses {
		path := filepath.Join(dir, Filename(a))
		if err := WriteDocx(path, a); err != nil {
			return paths, fmt.Errorf("failed to export %s: %w", a.Username, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func confidenceColor(score int) string {
	switch {
	case score >= 70:
		return "C00000"
	case score >= 40:
		return "C07000"
	default:
		return "008000"
	}
}

func day(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.DateOnly)
}

func orNone(s string) string {
	if s == "" {
		return "no recorded period"
	}
	return s
}
