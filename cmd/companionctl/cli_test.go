package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/api"
	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/pipeline"
	"github.com/chrislearn/mofa-studio/internal/services"
	"github.com/chrislearn/mofa-studio/internal/shardqueue"
	"github.com/chrislearn/mofa-studio/internal/store/sqlite"
)

func startService(t *testing.T) string {
	t.Helper()
	st, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	log := zerolog.Nop()
	sched := services.NewSchedulerService(st, services.DefaultSchedulerPolicy(), log)
	rec := services.NewRecorderService(st, sched, log)
	disp := pipeline.New(turngate.New(log), rec, nil, shardqueue.Config{Shards: 1}, log)
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Scheduler:  sched,
		Items:      services.NewItemService(st, log),
		Sessions:   services.NewSessionService(st, log),
		Recorder:   rec,
		Dispatcher: disp,
		Clock:      time.Now,
		Log:        log,
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = disp.Close()
		_ = st.Close()
	})
	return srv.URL
}

func runCLI(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--service-url", url}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_ImportSelectOutcome(t *testing.T) {
	url := startService(t)

	seed := filepath.Join(t.TempDir(), "seed.yaml")
	yml := `items:
  - text: library
    category: pronunciation
    description:
      text: a place to borrow books
      translation: 图书馆
  - text: go to school
    category: usage
    difficulty: 2
`
	if err := os.WriteFile(seed, []byte(yml), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	out, err := runCLI(t, url, "items", "import", seed)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 2 items (0 skipped)") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, err = runCLI(t, url, "items", "add", "--text", "weekend", "--category", "unfamiliar")
	if err != nil || !strings.Contains(out, "Item created: 3 - weekend") {
		t.Fatalf("add: %v %q", err, out)
	}

	out, err = runCLI(t, url, "items", "list", "--due")
	if err != nil || !strings.Contains(out, "3 items") {
		t.Fatalf("list: %v %q", err, out)
	}

	out, err = runCLI(t, url, "select", "--min", "1", "--max", "2")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.Contains(out, "(2 words)") {
		t.Fatalf("unexpected select output: %q", out)
	}
	sessionID := strings.Fields(out)[1]

	out, err = runCLI(t, url, "outcome", "--item", "1", "--session", sessionID, "--outcome", "success")
	if err != nil || !strings.Contains(out, "library: interval=2d") {
		t.Fatalf("outcome: %v %q", err, out)
	}

	out, err = runCLI(t, url, "items", "history", "1")
	if err != nil || !strings.Contains(out, "success") {
		t.Fatalf("history: %v %q", err, out)
	}

	out, err = runCLI(t, url, "sessions", "topic", sessionID, "books")
	if err != nil || !strings.Contains(out, "Topic set") {
		t.Fatalf("topic: %v %q", err, out)
	}
	out, err = runCLI(t, url, "sessions", "close", sessionID)
	if err != nil || !strings.Contains(out, "closed after 0 exchanges") {
		t.Fatalf("close: %v %q", err, out)
	}
	out, err = runCLI(t, url, "sessions", "list")
	if err != nil || !strings.Contains(out, "closed") || !strings.Contains(out, "books") {
		t.Fatalf("sessions list: %v %q", err, out)
	}
}

func TestCLI_AnalyzeAndErrors(t *testing.T) {
	url := startService(t)

	out, err := runCLI(t, url, "select")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	sessionID := strings.Fields(out)[1]

	file := filepath.Join(t.TempDir(), "analysis.json")
	body := `{"sessionId":"` + sessionID + `","userText":"He go home","issues":[{"type":"grammar","original":"He go","suggested":"He goes"}]}`
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write analysis: %v", err)
	}
	out, err = runCLI(t, url, "analyze", file)
	if err != nil || !strings.Contains(out, `"annotationsStored": 1`) {
		t.Fatalf("analyze: %v %q", err, out)
	}

	out, err = runCLI(t, url, "sessions", "stats", sessionID)
	if err != nil || !strings.Contains(out, `"userTurns": 1`) {
		t.Fatalf("stats: %v %q", err, out)
	}

	if _, err := runCLI(t, url, "outcome", "--item", "1", "--session", sessionID, "--outcome", "maybe"); err == nil {
		t.Fatalf("expected invalid outcome error")
	}
	if _, err := runCLI(t, url, "items", "get", "999"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := runCLI(t, url, "items", "get", "abc"); err == nil {
		t.Fatalf("expected invalid id error")
	}
}
