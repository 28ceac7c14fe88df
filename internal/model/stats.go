package model

import "time"

// Stats counts agreements over fixed windows. Windows are anchored at local
// midnight of the current day.
type Stats struct {
	Total int `json:"total"`
	Today int `json:"today"`
	Week  int `json:"week"`
	Month int `json:"month"`
}

// StatsWindows returns the start of the today, week (7 days) and month
// (30 days) windows for now, in now's location.
func StatsWindows(now time.Time) (today, week, month time.Time) {
	y, m, d := now.Date()
	today = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today, today.AddDate(0, 0, -7), today.AddDate(0, 0, -30)
}
