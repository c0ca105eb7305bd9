package github

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENTS DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ContentsDTO is a file entry as returned by GET /repos/{owner}/{repo}/contents/{path}.
type ContentsDTO struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`

	// Content is base64, wrapped at 60 columns by GitHub.
	Content string `json:"content"`

	// SHA is the blob revision used as the optimistic-concurrency token.
	SHA string `json:"sha"`
}

// Decode returns the raw file bytes.
func (c *ContentsDTO) Decode() ([]byte, error) {
	if c.Encoding != "" && c.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q", c.Encoding)
	}
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(c.Content)
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode base64 content: %w", err)
	}
	return raw, nil
}

// PutContentsRequest is the body of PUT /repos/{owner}/{repo}/contents/{path}.
// SHA must be set when replacing an existing file.
type PutContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// NewPutContentsRequest encodes raw as base64.
func NewPutContentsRequest(message string, raw []byte, branch, sha string) PutContentsRequest {
	return PutContentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(raw),
		Branch:  branch,
		SHA:     sha,
	}
}

// CommitDTO is the commit created by a contents write.
type CommitDTO struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	HTMLURL string `json:"html_url,omitempty"`
}

// PutContentsResponse is returned by a successful contents write.
type PutContentsResponse struct {
	Content *ContentsDTO `json:"content"`
	Commit  CommitDTO    `json:"commit"`
}

// Revision returns the new blob sha.
func (r *PutContentsResponse) Revision() string {
	if r.Content != nil {
		return r.Content.SHA
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIError is an error response from the GitHub API.
type APIError struct {
	StatusCode       int    `json:"-"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("github api: status %d: %s", e.StatusCode, e.Message)
}

// Is maps the HTTP status onto the shared error kinds.
func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrStaleWrite:
		return e.IsConflict()
	case shared.ErrTransport:
		return e.StatusCode != http.StatusNotFound && !e.IsConflict()
	}
	return false
}

// IsConflict reports a rejected write because the supplied sha is stale.
// GitHub answers 409 for a sha mismatch and 422 when the sha is missing or
// does not match ("sha wasn't supplied", "does not match").
func (e *APIError) IsConflict() bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	if e.StatusCode == http.StatusUnprocessableEntity {
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "sha")
	}
	return false
}

// IsServerError reports 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// RateLimitError is returned for 429 and for 403 with an exhausted quota.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit: %s (retry after %s)", e.Message, e.RetryAfter)
}

// Is matches the shared rate-limit and transport kinds.
func (e *RateLimitError) Is(target error) bool {
	return target == shared.ErrRateLimited || target == shared.ErrTransport
}
