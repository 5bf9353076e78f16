package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/history"
	"github.com/richhaase/autose/internal/terminal"
)

// recordingIndicator logs every call and tracks the state a real spinner
// would be in.
type recordingIndicator struct {
	mu    sync.Mutex
	calls *[]string
	state terminal.SpinnerState
}

func (r *recordingIndicator) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.calls = append(*r.calls, s)
}

func (r *recordingIndicator) Start(msg string) error {
	r.record("start:" + msg)
	r.state = terminal.SpinnerRunning
	return nil
}

func (r *recordingIndicator) Continue(msg string) {
	if r.state == terminal.SpinnerPaused {
		r.record("continue:" + msg)
		r.state = terminal.SpinnerRunning
	}
}

func (r *recordingIndicator) Pause() {
	if r.state == terminal.SpinnerRunning {
		r.record("pause")
		r.state = terminal.SpinnerPaused
	}
}

func (r *recordingIndicator) Stop() {
	if r.state != terminal.SpinnerStopped {
		r.record("stop")
		r.state = terminal.SpinnerStopped
	}
}

type harness struct {
	client *Client
	out    *bytes.Buffer
	logs   *bytes.Buffer
	fs     afero.Fs
	calls  []string
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	terminal.DisableColors()
	t.Cleanup(terminal.EnableColors)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend, err := api.NewClient(api.Options{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	h := &harness{
		out:  &bytes.Buffer{},
		logs: &bytes.Buffer{},
		fs:   afero.NewMemMapFs(),
	}
	h.client = NewClient(Options{
		Backend:   backend,
		Out:       h.out,
		Logger:    terminal.NewLoggerTo(h.logs),
		Renderer:  terminal.PlainRenderer{},
		Fs:        h.fs,
		OutputDir: ".",
		History:   history.Options{Delay: time.Millisecond},
		NewIndicator: func() Indicator {
			return &recordingIndicator{calls: &h.calls}
		},
		Width: 80,
	})
	return h
}

// streamText writes parts as separately flushed chunks.
func streamText(w http.ResponseWriter, parts ...string) {
	flusher := w.(http.Flusher)
	for _, p := range parts {
		_, _ = io.WriteString(w, p)
		flusher.Flush()
	}
}

// cutStream answers 200, sends text as one chunk and then drops the
// connection mid-body.
func cutStream(t *testing.T, w http.ResponseWriter, text string) {
	conn, buf, err := w.(http.Hijacker).Hijack()
	if err != nil {
		t.Errorf("Hijack: %v", err)
		return
	}
	defer conn.Close()
	_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n")
	_, _ = fmt.Fprintf(buf, "%x\r\n%s\r\n", len(text), text)
	_ = buf.Flush()
}

func TestSubmitAndWait_EndToEnd(t *testing.T) {
	const patch = "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new\n"
	var submitted api.DevRequest

	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/dev":
			_ = json.NewDecoder(r.Body).Decode(&submitted)
			_, _ = io.WriteString(w, `{"task_id":"abc"}`)
		case r.URL.Path == "/dev/histories/abc":
			streamText(w, "Looking at repo...")
		case r.URL.Path == "/dev/tasks/abc":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "DONE", "patch": patch})
		default:
			http.NotFound(w, r)
		}
	}))

	desc := &Description{Repo: "r", Description: "add null check"}
	if err := h.client.SubmitAndWait(context.Background(), desc, domain.DefaultDevModel); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}

	if submitted.Repo != "r" || submitted.Prompt != "add null check" || submitted.Model != domain.DefaultDevModel {
		t.Errorf("submitted = %+v", submitted)
	}
	if got := strings.Count(h.out.String(), "Looking at repo..."); got != 1 {
		t.Errorf("history printed %d times, want once:\n%s", got, h.out.String())
	}

	data, err := afero.ReadFile(h.fs, "abc.diff")
	if err != nil {
		t.Fatalf("patch not written: %v", err)
	}
	if string(data) != patch {
		t.Errorf("patch = %q, want %q", data, patch)
	}

	logs := h.logs.String()
	if !strings.Contains(logs, "TASK abc is accepted") {
		t.Errorf("missing acceptance line in logs:\n%s", logs)
	}
	if !strings.Contains(logs, "task abc done. saved patch into abc.diff") {
		t.Errorf("missing completion line in logs:\n%s", logs)
	}

	want := []string{"start:AI is preparing", "pause", "stop"}
	if strings.Join(h.calls, ",") != strings.Join(want, ",") {
		t.Errorf("indicator calls = %v, want %v", h.calls, want)
	}
}

func TestDownloadPatch_NotDone(t *testing.T) {
	const status = `{"status":"RUNNING"}`
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, status)
	}))

	if err := h.client.DownloadPatch(context.Background(), api.Dev, "abc"); err != nil {
		t.Fatalf("DownloadPatch returned %v, a running task is not an error", err)
	}

	out := h.out.String()
	if !strings.Contains(out, "TASK NOT DONE") || !strings.Contains(out, status) {
		t.Errorf("output should contain the raw status:\n%s", out)
	}
	if exists, _ := afero.Exists(h.fs, "abc.diff"); exists {
		t.Error("no patch file may be written for an unfinished task")
	}
}

func TestDownloadPatch_OutputDir(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"DONE","patch":"p"}`)
	}))
	h.client.outputDir = "patches/out"

	if err := h.client.DownloadPatch(context.Background(), api.Cover, "abc"); err != nil {
		t.Fatalf("DownloadPatch: %v", err)
	}
	data, err := afero.ReadFile(h.fs, "patches/out/abc.diff")
	if err != nil || string(data) != "p" {
		t.Errorf("patch = %q, err = %v", data, err)
	}
}

func TestDownloadPatchAny_FallsBackToCover(t *testing.T) {
	var paths []string
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/cover/tasks/abc" {
			_, _ = io.WriteString(w, `{"status":"DONE","patch":"cover patch"}`)
			return
		}
		http.NotFound(w, r)
	}))

	if err := h.client.DownloadPatchAny(context.Background(), "abc"); err != nil {
		t.Fatalf("DownloadPatchAny: %v", err)
	}
	if strings.Join(paths, ",") != "/dev/tasks/abc,/cover/tasks/abc" {
		t.Errorf("paths = %v", paths)
	}
	data, _ := afero.ReadFile(h.fs, "abc.diff")
	if string(data) != "cover patch" {
		t.Errorf("patch = %q", data)
	}
}

func TestFollow_RetryPausesAndContinues(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			cutStream(t, w, "first try")
			return
		}
		streamText(w, "second try")
	}))

	if err := h.client.Follow(context.Background(), api.Dev, "abc"); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	if !strings.Contains(h.logs.String(), "The network may be lagging, retrying (1)...") {
		t.Errorf("missing retry notice:\n%s", h.logs.String())
	}
	if !strings.Contains(h.out.String(), "second try") {
		t.Errorf("output missing final attempt text:\n%s", h.out.String())
	}

	want := []string{
		"start:AI is preparing",
		"pause",
		"continue:waiting to reconnect",
		"pause",
		"stop",
	}
	if strings.Join(h.calls, ",") != strings.Join(want, ",") {
		t.Errorf("indicator calls = %v, want %v", h.calls, want)
	}
}

func TestFollow_FatalErrorStopsIndicator(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))

	err := h.client.Follow(context.Background(), api.Dev, "abc")
	if !api.IsKind(err, api.KindHTTP) {
		t.Fatalf("error = %v, want http error", err)
	}
	if last := h.calls[len(h.calls)-1]; last != "stop" {
		t.Errorf("indicator calls = %v, want it stopped", h.calls)
	}
}

func TestFollow_RetryExhaustion(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cutStream(t, w, "x")
	}))

	err := h.client.Follow(context.Background(), api.Dev, "abc")
	if !errors.Is(err, history.ErrTooManyErrors) {
		t.Fatalf("error = %v, want ErrTooManyErrors", err)
	}
	if got := strings.Count(h.logs.String(), "retrying"); got != history.DefaultMaxAttempts-1 {
		t.Errorf("retry notices = %d, want %d", got, history.DefaultMaxAttempts-1)
	}
	if last := h.calls[len(h.calls)-1]; last != "stop" {
		t.Errorf("indicator calls = %v, want it stopped", h.calls)
	}
}

func TestFollowAny_ExhaustedDevKeepsGuidance(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dev/histories/abc" {
			cutStream(t, w, "partial")
			return
		}
		http.NotFound(w, r)
	}))

	err := h.client.FollowAny(context.Background(), "abc")
	if !api.IsKind(err, api.KindHTTP) {
		t.Fatalf("error = %v, want the cover lineage's http error", err)
	}

	logs := h.logs.String()
	for _, want := range []string{"autose follow abc", "autose download-patch abc"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %q after retries ran out:\n%s", want, logs)
		}
	}
	if got := strings.Count(logs, "retrying"); got != history.DefaultMaxAttempts-1 {
		t.Errorf("retry notices = %d, want %d", got, history.DefaultMaxAttempts-1)
	}
}

func TestFollowAny_FallsBackToCover(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cover/histories/abc" {
			streamText(w, "cover history")
			return
		}
		http.NotFound(w, r)
	}))

	if err := h.client.FollowAny(context.Background(), "abc"); err != nil {
		t.Fatalf("FollowAny: %v", err)
	}
	if !strings.Contains(h.out.String(), "cover history") {
		t.Errorf("output = %q", h.out.String())
	}
	// One indicator per attempt, each stopped.
	if got := strings.Count(strings.Join(h.calls, ","), "stop"); got != 2 {
		t.Errorf("indicator calls = %v, want two stopped indicators", h.calls)
	}
}

func TestSubmitAndWait_InvalidDescription(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	}))

	err := h.client.SubmitAndWait(context.Background(), &Description{Repo: "r", SourceFile: "a.go"}, "")
	if !api.IsKind(err, api.KindInvalidParameters) {
		t.Errorf("error = %v, want invalid parameters", err)
	}
}

func TestSubmitAndWait_Cover(t *testing.T) {
	var submitted api.CoverRequest
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover":
			_ = json.NewDecoder(r.Body).Decode(&submitted)
			_, _ = io.WriteString(w, `{"task_id":"c1"}`)
		case "/cover/histories/c1":
			streamText(w, "writing tests")
		case "/cover/tasks/c1":
			_, _ = io.WriteString(w, `{"status":"RUNNING"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	desc := &Description{Repo: "r", SourceFile: "a.go", TestFile: "a_test.go"}
	if err := h.client.SubmitAndWait(context.Background(), desc, ""); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if submitted.SourceFile != "a.go" || submitted.TestFile != "a_test.go" {
		t.Errorf("submitted = %+v", submitted)
	}
	if !strings.Contains(h.out.String(), "TASK NOT DONE") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestLint_PrintsRisks(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"risks":[],"plain_risks":"- unchecked error","backend":"custom"}`)
	}))

	if err := h.client.Lint(context.Background(), api.LintRequest{Code: "x", Topic: "t"}); err != nil {
		t.Fatalf("Lint: %v", err)
	}
	if !strings.Contains(h.out.String(), "- unchecked error") {
		t.Errorf("output = %q", h.out.String())
	}
	want := []string{"start:Generating", "stop"}
	if strings.Join(h.calls, ",") != strings.Join(want, ",") {
		t.Errorf("indicator calls = %v, want %v", h.calls, want)
	}
}

func TestLint_ErrorStopsIndicator(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if err := h.client.Lint(context.Background(), api.LintRequest{Code: "x"}); err == nil {
		t.Fatal("expected an error")
	}
	if len(h.calls) != 2 || h.calls[1] != "stop" {
		t.Errorf("indicator calls = %v", h.calls)
	}
}

func TestTopics(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"topics":["jedi","autose"]}`)
	}))

	if err := h.client.Topics(context.Background()); err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if h.out.String() != "jedi\nautose\n" {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestPrintText_EachPieceOnItsOwnLine(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler())

	for _, piece := range []string{"Reading the rep", "ository\n", "done"} {
		if err := h.client.printText(piece); err != nil {
			t.Fatalf("printText(%q): %v", piece, err)
		}
	}

	want := "Reading the rep\nository\ndone\n"
	if got := h.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
