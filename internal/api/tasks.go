package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/richhaase/autose/internal/domain"
)

// DevRequest submits a change-generation task.
type DevRequest struct {
	Repo   string `json:"repo"`
	Token  string `json:"token"`
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// CoverRequest submits a test-generation task for one source file.
type CoverRequest struct {
	Repo       string `json:"repo"`
	Token      string `json:"token"`
	SourceFile string `json:"source_file"`
	TestFile   string `json:"test_file"`
}

// SubmitDev posts a dev task.
func (c *Client) SubmitDev(ctx context.Context, req DevRequest) (*domain.Task, error) {
	if strings.TrimSpace(req.Repo) == "" {
		return nil, InvalidParameters("repo is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, InvalidParameters("description is required")
	}
	return c.submit(ctx, Dev, req)
}

// SubmitCover posts a cover task.
func (c *Client) SubmitCover(ctx context.Context, req CoverRequest) (*domain.Task, error) {
	if strings.TrimSpace(req.Repo) == "" {
		return nil, InvalidParameters("repo is required")
	}
	if req.SourceFile == "" || req.TestFile == "" {
		return nil, InvalidParameters("source_file and test_file are both required")
	}
	return c.submit(ctx, Cover, req)
}

func (c *Client) submit(ctx context.Context, lineage Lineage, body any) (*domain.Task, error) {
	var task domain.Task
	if _, err := c.doJSON(ctx, http.MethodPost, lineage.SubmitPath(), body, &task); err != nil {
		return nil, err
	}
	if err := ValidateTaskID(task.TaskID); err != nil {
		return nil, HTTPError(http.StatusOK, "", err)
	}
	return &task, nil
}

// Status fetches the state of task id in lineage. The raw body is kept on the
// returned Status.
func (c *Client) Status(ctx context.Context, lineage Lineage, id string) (*domain.Status, error) {
	if !lineage.Valid() {
		return nil, InvalidParameters("unknown lineage %q", lineage)
	}
	if err := ValidateTaskID(id); err != nil {
		return nil, err
	}

	var st domain.Status
	raw, err := c.doJSON(ctx, http.MethodGet, lineage.StatusPath(id), nil, &st)
	if err != nil {
		return nil, err
	}
	st.Raw = string(raw)
	return &st, nil
}
