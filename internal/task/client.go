// Package task submits tasks, follows their history and saves their patches.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/history"
	"github.com/richhaase/autose/internal/logger"
	"github.com/richhaase/autose/internal/terminal"
)

const (
	preparingMessage  = "AI is preparing"
	reconnectMessage  = "waiting to reconnect"
	generatingMessage = "Generating"
)

const giveUpGuidance = `Lost the history of task %s after repeated network errors.
The task keeps running on the backend. Wait a while, then run
'autose follow %s' or 'autose download-patch %s'.`

// Backend is the subset of the API the task client uses.
type Backend interface {
	api.Fetcher
	Status(ctx context.Context, lineage api.Lineage, id string) (*domain.Status, error)
	SubmitDev(ctx context.Context, req api.DevRequest) (*domain.Task, error)
	SubmitCover(ctx context.Context, req api.CoverRequest) (*domain.Task, error)
	Lint(ctx context.Context, req api.LintRequest) (*domain.Risks, error)
	SupportedTopics(ctx context.Context) ([]string, error)
}

// Indicator is a progress display that yields the terminal line on Pause and
// Stop. *terminal.Spinner implements it.
type Indicator interface {
	Start(message string) error
	Continue(message string)
	Pause()
	Stop()
}

// Options configures a Client. Only Backend is required.
type Options struct {
	Backend Backend
	// Out receives streamed history, reports and the spinner.
	Out io.Writer
	// Logger prints status lines.
	Logger *terminal.Logger
	// Renderer styles streamed text and free-form lint results.
	Renderer terminal.Renderer
	// Fs is where patches are written.
	Fs        afero.Fs
	OutputDir string
	// History tunes stream retries. OnRetry is owned by the client.
	History history.Options
	// NewIndicator creates the progress display for one operation.
	NewIndicator func() Indicator
	// Width is the report width for lint results.
	Width int
}

// Client runs task operations for the CLI.
type Client struct {
	backend      Backend
	out          io.Writer
	log          *terminal.Logger
	render       terminal.Renderer
	fs           afero.Fs
	outputDir    string
	history      history.Options
	newIndicator func() Indicator
	width        int
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		backend:      opts.Backend,
		out:          opts.Out,
		log:          opts.Logger,
		render:       opts.Renderer,
		fs:           opts.Fs,
		outputDir:    opts.OutputDir,
		history:      opts.History,
		newIndicator: opts.NewIndicator,
		width:        opts.Width,
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.log == nil {
		c.log = terminal.NewLogger()
	}
	if c.render == nil {
		c.render = terminal.PlainRenderer{}
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.outputDir == "" {
		c.outputDir = "."
	}
	if c.newIndicator == nil {
		out := c.out
		c.newIndicator = func() Indicator { return terminal.NewSpinner(out) }
	}
	if c.width <= 0 {
		c.width = terminal.ReportWidth()
	}
	return c
}

// Follow prints the history of task id in lineage as it streams in.
//
// The indicator runs until the first text arrives and again while a cut
// stream is being re-requested. It is paused, with the line cleared, before
// any text or retry notice is printed, and stopped on every return path.
//
// Each piece of text the transport delivers is printed on its own line, so a
// history line split across two reads shows as two lines. When retries run
// out, guidance to follow the task again later is logged before the error is
// returned.
func (c *Client) Follow(ctx context.Context, lineage api.Lineage, id string) error {
	ind := c.newIndicator()
	if err := ind.Start(preparingMessage); err != nil {
		return err
	}
	defer ind.Stop()

	printing := false
	opts := c.history
	opts.OnRetry = func(attempt int, err error) {
		ind.Pause()
		logger.FromContext(ctx).Debug("history retry", "task", id, "attempt", attempt, "error", err)
		c.log.Logf(terminal.StyleWarning, "The network may be lagging, retrying (%d)...", attempt)
		printing = false
		ind.Continue(reconnectMessage)
	}

	reader := history.NewReader(c.backend, opts)
	err := reader.ReadHistory(ctx, lineage, id, func(text string) error {
		if !printing {
			ind.Pause()
			printing = true
		}
		return c.printText(text)
	})
	if errors.Is(err, history.ErrTooManyErrors) {
		ind.Stop()
		c.log.Lines(fmt.Sprintf(giveUpGuidance, id, id, id), terminal.StyleWarning)
	}
	return err
}

func (c *Client) printText(text string) error {
	out := c.render.Render(text)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(c.out, out)
	return err
}

// FollowAny follows task id in the dev lineage, falling back to cover.
func (c *Client) FollowAny(ctx context.Context, id string) error {
	_, err := api.TryBoth(ctx, api.Dev, api.Cover, func(ctx context.Context, l api.Lineage) (struct{}, error) {
		return struct{}{}, c.Follow(ctx, l, id)
	})
	return err
}

// DownloadPatch saves the patch of a finished task to <output-dir>/<id>.diff.
// A task that is not done yet is reported with its raw status and is not an
// error.
func (c *Client) DownloadPatch(ctx context.Context, lineage api.Lineage, id string) error {
	st, err := c.backend.Status(ctx, lineage, id)
	if err != nil {
		return err
	}

	if !st.IsDone() {
		fmt.Fprintln(c.out, "TASK NOT DONE")
		fmt.Fprintf(c.out, "current task %s's status is %s\n", id, strings.TrimSpace(st.Raw))
		return nil
	}

	if err := c.fs.MkdirAll(c.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file := filepath.Join(c.outputDir, id+".diff")
	if err := afero.WriteFile(c.fs, file, []byte(*st.Patch), 0o644); err != nil {
		return fmt.Errorf("failed to save patch: %w", err)
	}
	c.log.Logf(terminal.StyleSuccess, "task %s done. saved patch into %s", id, file)
	return nil
}

// DownloadPatchAny downloads the patch of task id from dev, falling back to
// cover.
func (c *Client) DownloadPatchAny(ctx context.Context, id string) error {
	_, err := api.TryBoth(ctx, api.Dev, api.Cover, func(ctx context.Context, l api.Lineage) (struct{}, error) {
		return struct{}{}, c.DownloadPatch(ctx, l, id)
	})
	return err
}

// SubmitAndWait submits desc, follows the new task's history and then saves
// its patch. model only applies to dev tasks.
func (c *Client) SubmitAndWait(ctx context.Context, desc *Description, model string) error {
	if desc == nil {
		return api.InvalidParameters("no task description")
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	lineage := desc.Lineage()
	var (
		task *domain.Task
		err  error
	)
	switch lineage {
	case api.Dev:
		task, err = c.backend.SubmitDev(ctx, api.DevRequest{
			Repo:   desc.Repo,
			Token:  desc.Token,
			Prompt: desc.Description,
			Model:  model,
		})
	default:
		task, err = c.backend.SubmitCover(ctx, api.CoverRequest{
			Repo:       desc.Repo,
			Token:      desc.Token,
			SourceFile: desc.SourceFile,
			TestFile:   desc.TestFile,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to submit %s task: %w", lineage, err)
	}

	c.log.Logf(terminal.StyleSuccess, "TASK %s is accepted", task.TaskID)
	c.log.Log("Displaying the log of AI thoughts...", terminal.StyleDim)

	start := time.Now()
	if err := c.Follow(ctx, lineage, task.TaskID); err != nil {
		return err
	}
	c.log.Logf(terminal.StyleDim, "history of %s ended after %s", task.TaskID, terminal.FormatDuration(time.Since(start)))

	return c.DownloadPatch(ctx, lineage, task.TaskID)
}

// Lint asks the backend to review code and prints the risks it found.
func (c *Client) Lint(ctx context.Context, req api.LintRequest) error {
	ind := c.newIndicator()
	if err := ind.Start(generatingMessage); err != nil {
		return err
	}
	risks, err := c.backend.Lint(ctx, req)
	ind.Stop()
	if err != nil {
		return fmt.Errorf("lint request failed: %w", err)
	}

	_, err = fmt.Fprintln(c.out, terminal.FormatRisks(risks, c.width, c.render))
	return err
}

// Topics prints the lint topics the backend supports.
func (c *Client) Topics(ctx context.Context) error {
	topics, err := c.backend.SupportedTopics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}
	if len(topics) == 0 {
		c.log.Log("The backend reported no topics.", terminal.StyleWarning)
		return nil
	}
	for _, t := range topics {
		fmt.Fprintln(c.out, t)
	}
	return nil
}
