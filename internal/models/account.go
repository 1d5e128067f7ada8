package models

import (
	"time"
)

// UserProfile represents the public account metadata of a Reddit user
type UserProfile struct {
	Name         string `json:"name"`
	CreatedUTC   int64  `json:"created_utc"`
	CommentKarma int    `json:"comment_karma"`
	LinkKarma    int    `json:"link_karma"`
	TotalKarma   int    `json:"total_karma"`
	Verified     bool   `json:"verified"`
	IsMod        bool   `json:"is_mod"`
	IsPremium    bool   `json:"is_gold"`
}

// CreatedAt returns the account creation time in UTC
func (u *UserProfile) CreatedAt() time.Time {
	return time.Unix(u.CreatedUTC, 0).UTC()
}

// AgeDays returns the whole number of days between account creation and now
func (u *UserProfile) AgeDays(now time.Time) int {
	days := int(now.Sub(u.CreatedAt()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Preview is a cheap summary of an account computed without ingesting its history
type Preview struct {
	Exists            bool   `json:"exists"`
	Karma             int    `json:"karma"`
	AccountAge        string `json:"accountAge"`
	HasRecentActivity bool   `json:"hasRecentActivity"`
	EstimatedVolume   int    `json:"estimatedVolume"`
}
