package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/mdlinkcheck/checker"
)

func newLinkServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	command := newRootCommand()
	command.SetArgs(args)
	command.SetOut(&stdout)
	command.SetErr(&stderr)
	err := command.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestFileCommand(t *testing.T) {
	server := newLinkServer(t)
	root := t.TempDir()
	writeFile(t, root, "README.md", "Docs at "+server.URL+"/ok.")

	out, err := execute(t, "--root", root, "file", "README.md")
	if err != nil {
		t.Fatalf("file command error: %v", err)
	}

	for _, want := range []string{
		"Link Check Report for: README.md",
		"Total Links Found: 1",
		"Valid Links (1):",
		"- " + server.URL + "/ok",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFileCommand_Missing(t *testing.T) {
	out, err := execute(t, "--root", t.TempDir(), "file", "nope.md")
	if !errors.Is(err, ErrLinksFailed) {
		t.Errorf("expected ErrLinksFailed, got %v", err)
	}
	if !strings.Contains(out, "Error processing file: nope.md - Reason: File not found") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFilesCommand_BrokenLinkFails(t *testing.T) {
	server := newLinkServer(t)
	root := t.TempDir()
	writeFile(t, root, "a.md", "[ok]("+server.URL+"/ok)")
	writeFile(t, root, "b.md", "[gone]("+server.URL+"/gone)")

	out, err := execute(t, "--root", root, "files", "a.md", "b.md")
	if !errors.Is(err, ErrLinksFailed) {
		t.Errorf("expected ErrLinksFailed, got %v", err)
	}

	for _, want := range []string{
		"Consolidated Link Check Report",
		"Files Processed (2):",
		"  Broken Links: 1",
		"- " + server.URL + "/gone (Reason: 410 Gone)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDirCommand_JSON(t *testing.T) {
	server := newLinkServer(t)
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", server.URL+"/ok")
	writeFile(t, root, "docs/sub/b.md", "no links")

	out, err := execute(t, "--root", root, "--format", "json", "dir", "docs")
	if err != nil {
		t.Fatalf("dir command error: %v", err)
	}

	var decoded struct {
		RunID  string `json:"run_id"`
		Totals struct {
			Links int `json:"links"`
			Valid int `json:"valid"`
		} `json:"totals"`
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if decoded.RunID == "" {
		t.Error("expected run_id in JSON output")
	}
	if decoded.Totals.Links != 1 || decoded.Totals.Valid != 1 {
		t.Errorf("totals = %+v", decoded.Totals)
	}
	if len(decoded.Documents) != 2 || decoded.Documents[0].ID != "docs/a.md" || decoded.Documents[1].ID != "docs/sub/b.md" {
		t.Errorf("documents = %+v", decoded.Documents)
	}
}

func TestDirCommand_NoMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty/notes.txt", "text")

	out, err := execute(t, "--root", root, "dir", "empty")
	if err != nil {
		t.Fatalf("dir command error: %v", err)
	}
	if !strings.Contains(out, "No Markdown files found in directory: empty") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestDirCommand_MissingDirectory(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "dir", "missing")
	if !errors.Is(err, checker.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestProjectCommand_CSV(t *testing.T) {
	server := newLinkServer(t)
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "drafts/\n")
	writeFile(t, root, "README.md", server.URL+"/ok")
	writeFile(t, root, "drafts/wip.md", server.URL+"/gone")

	out, err := execute(t, "--root", root, "--format", "csv", "project")
	if err != nil {
		t.Fatalf("project command error: %v\n%s", err, out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got:\n%s", out)
	}
	if lines[0] != "document,url,status,reason" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "README.md,"+server.URL+"/ok,valid") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"--format", "xml", "file", "a.md"}},
		{"unknown log level", []string{"--log-level", "chatty", "file", "a.md"}},
		{"zero timeout", []string{"--timeout", "0s", "file", "a.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if !errors.Is(err, checker.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mdlinkcheck.yaml")
	if err := os.WriteFile(configPath, []byte("format: json\nretries: 2\nconcurrency: 3\nrate_limit: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MDLINKCHECK_RETRIES", "4")
	t.Setenv("MDLINKCHECK_CONCURRENCY", "6")

	a := newApp()
	command := a.rootCommand()
	command.SetArgs([]string{"--config", configPath, "--concurrency", "7", "file", "x.md"})
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})

	// Only configuration is exercised; the check itself is skipped.
	fileCommand, _, err := command.Find([]string{"file"})
	if err != nil {
		t.Fatalf("find file command: %v", err)
	}
	fileCommand.RunE = func(*cobra.Command, []string) error { return nil }

	if err := command.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if a.cfg.Format != "json" {
		t.Errorf("Format = %q, want json from config file", a.cfg.Format)
	}
	if a.cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %d, want 5 from config file", a.cfg.RateLimit)
	}
	if a.cfg.Retries != 4 {
		t.Errorf("Retries = %d, want 4 from environment", a.cfg.Retries)
	}
	if a.cfg.Concurrency != 7 {
		t.Errorf("Concurrency = %d, want 7 from flag", a.cfg.Concurrency)
	}
	if a.logger == nil {
		t.Error("expected logger to be configured")
	}
}
