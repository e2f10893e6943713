package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    DocumentStatus
		to      DocumentStatus
		allowed bool
	}{
		{"draft to submitted", DocumentStatusDraft, DocumentStatusSubmitted, true},
		{"submitted to in review", DocumentStatusSubmitted, DocumentStatusInReview, true},
		{"in review to approved", DocumentStatusInReview, DocumentStatusApproved, true},
		{"in review to rejected", DocumentStatusInReview, DocumentStatusRejected, true},
		{"rejected to draft", DocumentStatusRejected, DocumentStatusDraft, true},
		{"approved to archived", DocumentStatusApproved, DocumentStatusArchived, true},
		{"draft to in review", DocumentStatusDraft, DocumentStatusInReview, false},
		{"draft to approved", DocumentStatusDraft, DocumentStatusApproved, false},
		{"approved to draft", DocumentStatusApproved, DocumentStatusDraft, false},
		{"rejected to archived", DocumentStatusRejected, DocumentStatusArchived, false},
		{"archived anywhere", DocumentStatusArchived, DocumentStatusDraft, false},
		{"in review to archived", DocumentStatusInReview, DocumentStatusArchived, false},
		{"submitted to approved", DocumentStatusSubmitted, DocumentStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDocumentIsTerminal(t *testing.T) {
	assert.False(t, (&Document{Status: DocumentStatusDraft}).IsTerminal())
	assert.False(t, (&Document{Status: DocumentStatusInReview}).IsTerminal())
	assert.True(t, (&Document{Status: DocumentStatusApproved}).IsTerminal())
	assert.True(t, (&Document{Status: DocumentStatusRejected}).IsTerminal())
	assert.True(t, (&Document{Status: DocumentStatusArchived}).IsTerminal())
}

func TestReviewTaskIsTerminal(t *testing.T) {
	assert.False(t, (&ReviewTask{Status: ReviewTaskStatusPending}).IsTerminal())
	assert.True(t, (&ReviewTask{Status: ReviewTaskStatusApproved}).IsTerminal())
	assert.True(t, (&ReviewTask{Status: ReviewTaskStatusRejected}).IsTerminal())
	assert.True(t, (&ReviewTask{Status: ReviewTaskStatusCancelled}).IsTerminal())
}
