package reddit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/models"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

// Bounds of the estimated content volume shown in previews
const (
	minEstimatedVolume = 100
	maxEstimatedVolume = 8000
)

type aboutResponse struct {
	Data struct {
		Name         string  `json:"name"`
		CreatedUTC   float64 `json:"created_utc"`
		CommentKarma int     `json:"comment_karma"`
		LinkKarma    int     `json:"link_karma"`
		TotalKarma   int     `json:"total_karma"`
		Verified     bool    `json:"verified"`
		IsMod        bool    `json:"is_mod"`
		IsGold       bool    `json:"is_gold"`
	} `json:"data"`
}

// GetUserInfo fetches account metadata. A missing account yields an error matching ErrNotFound.
func (c *Client) GetUserInfo(ctx context.Context, username string) (*models.UserProfile, error) {
	ctx, span := telemetry.StartSpan(ctx, "reddit.get_user_info")
	defer span.End()

	var about aboutResponse
	if err := c.http.FetchJSON(ctx, c.userURL(username, "about.json"), &about); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}

	total := about.Data.TotalKarma
	if total == 0 {
		total = about.Data.CommentKarma + about.Data.LinkKarma
	}

	return &models.UserProfile{
		Name:         about.Data.Name,
		CreatedUTC:   int64(about.Data.CreatedUTC),
		CommentKarma: about.Data.CommentKarma,
		LinkKarma:    about.Data.LinkKarma,
		TotalKarma:   total,
		Verified:     about.Data.Verified,
		IsMod:        about.Data.IsMod,
		IsPremium:    about.Data.IsGold,
	}, nil
}

// GetUserPreview summarises an account without fetching its history. It never fails:
// any error yields a preview with Exists set to false.
func (c *Client) GetUserPreview(ctx context.Context, username string) models.Preview {
	profile, err := c.GetUserInfo(ctx, username)
	if err != nil {
		c.logger.Debug("Preview unavailable", zap.String("username", username), zap.Error(err))
		return models.Preview{Exists: false}
	}

	ageDays := profile.AgeDays(c.now())

	return models.Preview{
		Exists:            true,
		Karma:             profile.TotalKarma,
		AccountAge:        AgeBucket(ageDays),
		HasRecentActivity: profile.TotalKarma > 0,
		EstimatedVolume:   EstimateVolume(profile.CommentKarma, ageDays),
	}
}

// AgeBucket renders an account age in days as days, months or years
func AgeBucket(days int) string {
	switch {
	case days < 30:
		return plural(days, "day")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

// EstimateVolume guesses how much content an account has from its comment karma rate
func EstimateVolume(commentKarma, ageDays int) int {
	dailyKarma := float64(commentKarma) / float64(max(ageDays, 1))
	estimate := int(dailyKarma * 2)
	return min(max(estimate, minEstimatedVolume), maxEstimatedVolume)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
