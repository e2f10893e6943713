package models

import "time"

// DocumentVersion is a content snapshot of a document. Version 1 is created
// together with the draft and mutated in place by draft edits; submission
// freezes the live content into a new immutable version, so VersionNo grows
// by one per submission or reopen and is never reused.
type DocumentVersion struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	VersionNo  int       `json:"version_no"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
