package domain

import "time"

// SettingAnnouncement holds the banner message shown on every page.
const SettingAnnouncement = "announcement"

// Setting is a dynamic key/value configuration entry.
type Setting struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	ModifiedAt time.Time `json:"modified_at"`
}
