package store

import (
	"encoding/json"

	"tabwarden/internal/domain"
)

// GoalRow is one goal↔profile pairing in the backend's Extensions table.
// The domain-list columns arrive in whatever shape the backend stored them
// (json array, text[] literal, comma list), so they stay raw until parsed.
type GoalRow struct {
	ID               string          `json:"id"`
	GoalID           string          `json:"goal_id"`
	AllowedDomains   json.RawMessage `json:"allowed_domains"`
	RejectedDomains  json.RawMessage `json:"rejected_domains"`
	FocusedTime      int64           `json:"focused_time"`
	DistractedTime   int64           `json:"distracted_time"`
	DeviationWarning int64           `json:"deviation_warning"`
	Date             string          `json:"date"`
}

// Allowed returns the row's allowed-domain list, normalized.
func (r *GoalRow) Allowed() []string {
	return domain.ParseList(r.AllowedDomains)
}

// Rejected returns the row's rejected-domain list, normalized.
func (r *GoalRow) Rejected() []string {
	return domain.ParseList(r.RejectedDomains)
}

// Day returns the YYYY-MM-DD prefix of the stored date, or "" if unset.
func (r *GoalRow) Day() string {
	if len(r.Date) < 10 {
		return r.Date
	}
	return r.Date[:10]
}

// Settings is the per-profile enforcement configuration.
type Settings struct {
	HardBlock      bool `json:"hard_block"`
	SoftBlock      bool `json:"soft_block"`
	TimeoutMinutes int  `json:"timeout"`
	Overlay        bool `json:"overlay"`
}

// Timeout returns the configured soft-block timeout in minutes, falling
// back to the given default when unset.
func (s *Settings) Timeout(def int) int {
	if s.TimeoutMinutes > 0 {
		return s.TimeoutMinutes
	}
	return def
}
