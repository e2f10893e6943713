package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrDocumentNotFound indicates a document was not found by the given identifier.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrVersionNotFound indicates a document version was not found.
	ErrVersionNotFound = errors.New("document version not found")

	// ErrTemplateNotFound indicates a flow template was not found.
	ErrTemplateNotFound = errors.New("flow template not found")

	// ErrTaskNotFound indicates a review task was not found.
	ErrTaskNotFound = errors.New("review task not found")
)

// IsDocumentNotFound checks if an error indicates a document was not found.
func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsTaskNotFound checks if an error indicates a review task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}
