package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
	"github.com/scttfrdmn/agenkit/huddle-go/config"
	"github.com/scttfrdmn/agenkit/huddle-go/credentials"
	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
)

const sampleDataset = `{
  "diners": [
    {
      "name": "Ada Lovelace",
      "reviews": [],
      "emails": [],
      "reservations": [
        {"date": "2025-03-01", "number_of_people": 2, "orders": [
          {"item": "Boeuf Bourguignon", "dietary_tags": [], "price": 48.0}
        ]},
        {"date": "2025-03-08", "number_of_people": 4, "orders": [
          {"item": "Escargots", "dietary_tags": ["gluten-free"], "price": 18.0}
        ]}
      ]
    },
    {
      "name": "Grace Hopper",
      "reviews": [],
      "emails": [],
      "reservations": [
        {"date": "2025-03-02", "number_of_people": 3, "time": "20:00", "orders": []}
      ]
    }
  ]
}`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestItemsCommand(t *testing.T) {
	in := writeDataset(t)

	out, err := runRootCommand(t, "items", "--input", in, "--json")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	var counts []dataset.ItemCount
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("unmarshal json output: %v\nout=%s", err, out)
	}
	if len(counts) != 2 || counts[0].Item != "Boeuf Bourguignon" || counts[1].Item != "Escargots" {
		t.Fatalf("unexpected counts %+v", counts)
	}

	plain, err := runRootCommand(t, "items", "--input", in)
	if err != nil {
		t.Fatalf("items text: %v", err)
	}
	if !strings.Contains(plain, "2 distinct items") {
		t.Fatalf("unexpected text output: %s", plain)
	}
}

func TestPrepareCommand(t *testing.T) {
	in := writeDataset(t)
	outPath := filepath.Join(t.TempDir(), "prepared.json")

	out, err := runRootCommand(t, "prepare", "--input", in, "--output", outPath, "--seed", "7")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !strings.Contains(out, "Renamed items: 1") || !strings.Contains(out, "Main courses added: 1") {
		t.Fatalf("unexpected output: %s", out)
	}

	ds, err := dataset.Load(outPath)
	if err != nil {
		t.Fatalf("load prepared dataset: %v", err)
	}
	if got := ds.Diners[0].Reservations[0].Orders[0].Item; got != "Beef Bourguignon" {
		t.Errorf("expected normalized item, got %q", got)
	}
	if got := len(ds.Diners[0].Reservations[1].Orders); got != 2 {
		t.Errorf("expected a main course to be added, got %d orders", got)
	}
}

func TestAugmentRequiresCredentials(t *testing.T) {
	t.Setenv(credentials.EnvKey, "")
	t.Setenv(credentials.EnvKeys, "")

	_, err := runRootCommand(t, "augment", "--input", filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, credentials.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials before loading input, got %v", err)
	}
}

func TestAugmentRejectsInvalidFlags(t *testing.T) {
	t.Setenv(credentials.EnvKey, "sk-test")

	_, err := runRootCommand(t, "augment", "--workers", "0")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config.ErrInvalid, got %v", err)
	}
}

func fakeOpenAI(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"summary\": \"ok\"}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`))
	}))
}

func TestAugmentCommand(t *testing.T) {
	var calls atomic.Int64
	server := fakeOpenAI(t, &calls)
	defer server.Close()

	t.Setenv(credentials.EnvKey, "sk-test")
	t.Setenv("HUDDLE_OPENAI_BASE_URL", server.URL+"/v1")

	in := writeDataset(t)
	outPath := filepath.Join(t.TempDir(), "augmented.json")

	out, err := runRootCommand(t, "augment", "--input", in, "--output", outPath, "--workers", "2", "--cache-size", "16", "--rate-limit", "1000")
	if err != nil {
		t.Fatalf("augment: %v", err)
	}
	if !strings.Contains(out, "Reservations processed: 3") {
		t.Errorf("summary missing reservation count:\n%s", out)
	}

	ds, err := dataset.Load(outPath)
	if err != nil {
		t.Fatalf("load augmented dataset: %v", err)
	}
	for _, d := range ds.Diners {
		for _, r := range d.Reservations {
			if r.AgentAnalysis == nil {
				t.Fatalf("%s %s has no analysis", d.Name, r.Date)
			}
			for _, name := range agents.Names() {
				if _, ok := r.AgentAnalysis.AgentAnalysis[name]; !ok {
					t.Errorf("%s %s missing %s", d.Name, r.Date, name)
				}
			}
			if r.AgentAnalysis.CoordinatorSummary["summary"] != "ok" {
				t.Errorf("unexpected coordinator summary %v", r.AgentAnalysis.CoordinatorSummary)
			}
		}
	}

	// Each reservation makes four specialist calls and one coordinator call.
	// Identical prompts may be served from the cache, so the service sees at
	// most fifteen requests.
	if n := calls.Load(); n < 1 || n > 15 {
		t.Errorf("unexpected service calls %d", n)
	}
}
