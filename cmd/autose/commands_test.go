package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richhaase/autose/internal/api"
)

// execute runs the CLI against server with isolated config and output.
func execute(t *testing.T, server *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	clearEnv(t)

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	base := []string{"--no-config", "--plain", "--api-url", server.URL}
	root.SetArgs(append(base, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestDownloadPatchCmd_WritesPatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dev/tasks/abc" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"status":"DONE","patch":"diff --git a/x b/x\n"}`)
	}))
	defer server.Close()

	outDir := t.TempDir()
	_, stderr, err := execute(t, server, "download-patch", "abc", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("download-patch: %v\n%s", err, stderr)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "abc.diff"))
	if err != nil {
		t.Fatalf("patch not written: %v", err)
	}
	if string(data) != "diff --git a/x b/x\n" {
		t.Errorf("patch = %q", data)
	}
	if !strings.Contains(stderr, "saved patch into") {
		t.Errorf("missing completion line:\n%s", stderr)
	}
}

func TestDownloadPatchCmd_NotDoneIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"RUNNING"}`)
	}))
	defer server.Close()

	outDir := t.TempDir()
	stdout, _, err := execute(t, server, "download-patch", "abc", "-o", outDir)
	if err != nil {
		t.Fatalf("download-patch: %v", err)
	}
	if !strings.Contains(stdout, "TASK NOT DONE") {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(outDir, "abc.diff")); !os.IsNotExist(err) {
		t.Error("no patch may be written for an unfinished task")
	}
}

func TestDevCmd_SubmitsDescription(t *testing.T) {
	var submitted api.DevRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/dev":
			_ = json.NewDecoder(r.Body).Decode(&submitted)
			_, _ = io.WriteString(w, `{"task_id":"abc"}`)
		case r.URL.Path == "/dev/histories/abc":
			_, _ = io.WriteString(w, "Looking at repo...")
		case r.URL.Path == "/dev/tasks/abc":
			_, _ = io.WriteString(w, `{"status":"DONE","patch":"p"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	descPath := filepath.Join(dir, "task.yaml")
	desc := "repo: git@example.com:team/svc.git\ntoken: t0k\ndescription: add null check\n"
	if err := os.WriteFile(descPath, []byte(desc), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, server, "dev", descPath, "-m", "openai:gpt4o", "-o", dir)
	if err != nil {
		t.Fatalf("dev: %v\n%s", err, stderr)
	}

	if submitted.Prompt != "add null check" || submitted.Model != "openai:gpt4o" || submitted.Token != "t0k" {
		t.Errorf("submitted = %+v", submitted)
	}
	if !strings.Contains(stdout, "Looking at repo...") {
		t.Errorf("history not printed:\n%s", stdout)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "abc.diff")); err != nil || string(data) != "p" {
		t.Errorf("patch = %q, err = %v", data, err)
	}
}

func TestDevCmd_NoArgsPrintsHelp(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	stdout, _, err := execute(t, server, "dev")
	if err != nil {
		t.Fatalf("dev: %v", err)
	}
	if !strings.Contains(stdout, "autose dev [description-file]") {
		t.Errorf("expected help output, got:\n%s", stdout)
	}
}

func TestDevCmd_RejectsUnknownModel(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := execute(t, server, "dev", "--follow", "abc", "--model", "gpt5")
	if err == nil || !strings.Contains(err.Error(), "dev model must be one of") {
		t.Fatalf("error = %v, want model validation error", err)
	}
}

func TestFollowCmd_BothLineagesFail(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, _, err := execute(t, server, "follow", "abc")
	if !api.IsKind(err, api.KindHTTP) {
		t.Fatalf("error = %v, want http error", err)
	}
	if strings.Join(paths, ",") != "/dev/histories/abc,/cover/histories/abc" {
		t.Errorf("paths = %v", paths)
	}
}

func TestFollowCmd_RequiresID(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if _, _, err := execute(t, server, "follow"); err == nil {
		t.Fatal("expected an error without a task id")
	}
}

func TestLintCmd_File(t *testing.T) {
	dir := chdirRepo(t)
	if err := os.WriteFile("main.go", []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var got api.LintRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lint" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"risks":[],"plain_risks":"","backend":"openai"}`)
	}))
	defer server.Close()

	stdout, stderr, err := execute(t, server, "lint", "main.go")
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, stderr)
	}
	if got.Code != "package main\n" || got.Model != "openai:gpt3" {
		t.Errorf("request = %+v", got)
	}
	if got.Topic != filepath.Base(dir) {
		t.Errorf("topic = %q, want %q", got.Topic, filepath.Base(dir))
	}
	if !strings.Contains(stdout, "No risks found.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestLintCmd_RequiresFileWithoutDiffMode(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := execute(t, server, "lint")
	if err == nil || !strings.Contains(err.Error(), "provide a file name") {
		t.Fatalf("error = %v", err)
	}
}

func TestTopicsCmd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"topics":["payments","search"]}`)
	}))
	defer server.Close()

	stdout, _, err := execute(t, server, "topics")
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if stdout != "payments\nsearch\n" {
		t.Errorf("stdout = %q", stdout)
	}
}
