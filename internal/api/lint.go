package api

import (
	"context"
	"net/http"

	"github.com/richhaase/autose/internal/domain"
)

// LintRequest asks the backend to review a piece of code.
type LintRequest struct {
	Code  string `json:"code"`
	Topic string `json:"topic"`
	Model string `json:"model,omitempty"`
}

// Lint submits code for review and returns the risks found.
func (c *Client) Lint(ctx context.Context, req LintRequest) (*domain.Risks, error) {
	if req.Code == "" {
		return nil, InvalidParameters("code is empty")
	}
	var risks domain.Risks
	if _, err := c.doJSON(ctx, http.MethodPost, "/lint", req, &risks); err != nil {
		return nil, err
	}
	return &risks, nil
}

// SupportedTopics lists the topics the lint backend knows about.
func (c *Client) SupportedTopics(ctx context.Context) ([]string, error) {
	var result struct {
		Topics []string `json:"topics"`
	}
	if _, err := c.doJSON(ctx, http.MethodGet, "/supported_topics", nil, &result); err != nil {
		return nil, err
	}
	return result.Topics, nil
}
