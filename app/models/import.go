package models

import "time"

// ImportEntry records which local post an external feed record was imported as.
type ImportEntry struct {
	Source      string    `json:"source"`
	ExternalID  int       `json:"externalId"`
	PostID      string    `json:"postId"`
	Fingerprint string    `json:"fingerprint"`
	ImportedAt  time.Time `json:"importedAt"`
}
