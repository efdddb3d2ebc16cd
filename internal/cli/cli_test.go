package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/bpdoc/pkg/config"
	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/export"
)

const doorSnapshot = `{
  "name": "BP_Door",
  "class": "Blueprint",
  "parent_class": "/Script/Engine.Actor",
  "event_graphs": [
    {
      "name": "EventGraph",
      "nodes": [
        {"id": "BeginPlay", "class": "K2Node_Event", "title": "Event BeginPlay", "pins": [0]},
        {"id": "Open", "class": "K2Node_CallFunction", "function_name": "Open", "function_owner": "/Game/Lib/BP_DoorLib", "pins": [1]}
      ],
      "pins": [
        {"owner": 0, "name": "then", "direction": "output", "type": {"category": "exec"}, "links": [1]},
        {"owner": 1, "name": "execute", "direction": "input", "type": {"category": "exec"}, "links": [0]}
      ]
    }
  ]
}`

// execute runs the CLI with args and returns what commands wrote to their
// output stream.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BPDOC_CACHE", "none")
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSnapshot(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExportCommand(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeSnapshot(t, src, "Props/BP_Door.json", doorSnapshot)

	if _, err := execute(t, "export", "--source", src, "--out", out, "--no-cache"); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "Props", "BP_Door.json"))
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	doc, err := document.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Path != "/Game/Props/BP_Door" || len(doc.Graphs) != 1 {
		t.Errorf("document = %+v", doc)
	}
	if got := doc.Graphs[0].Nodes[0].Connections; len(got) != 1 || got[0] != "Open" {
		t.Errorf("BeginPlay connections = %v, want [Open]", got)
	}
	if len(doc.Dependencies) != 1 || doc.Dependencies[0] != "/Game/Lib/BP_DoorLib" {
		t.Errorf("dependencies = %v", doc.Dependencies)
	}

	raw, err := execute(t, "index", "--out", out, "--json")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	var idx document.Index
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		t.Fatalf("index output is not JSON: %v\n%s", err, raw)
	}
	if idx.Count != 1 || idx.Artifacts[0].Nodes != 2 {
		t.Errorf("index = %+v", idx)
	}
}

func TestExportCommandSkipsUndecodableSnapshots(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeSnapshot(t, src, "BP_Door.json", doorSnapshot)
	writeSnapshot(t, src, "BP_Broken.json", `{"name": `)

	if _, err := execute(t, "export", "--source", src, "--out", out, "--no-cache"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "BP_Door.json")); err != nil {
		t.Errorf("healthy artifact not exported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "BP_Broken.json")); !os.IsNotExist(err) {
		t.Errorf("undecodable snapshot produced a document (stat error %v)", err)
	}
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Setenv("BPDOC_S3_SECRET_KEY", "hunter2")
	out, err := execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "[sink]") {
		t.Errorf("config output:\n%s", out)
	}
}

func TestInvalidSinkFlag(t *testing.T) {
	_, err := execute(t, "export", "--sink", "ftp")
	if err == nil || !strings.Contains(err.Error(), "unknown sink type") {
		t.Errorf("export --sink ftp error = %v", err)
	}
}

func TestExportOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Export.ChunkSize = 8
	cfg.Export.Retries = 5

	opts := exportOptions(cfg)
	if opts.ChunkSize != 8 || opts.Backoff.Attempts != 5 || opts.Backoff.Delay == 0 {
		t.Errorf("exportOptions = %+v", opts)
	}
	if opts := exportOptions(config.Default()); opts.Backoff.Attempts != 0 {
		t.Errorf("default retries should leave backoff to the coordinator, got %+v", opts.Backoff)
	}
}

func TestRenderIndex(t *testing.T) {
	idx := document.NewIndex([]document.IndexEntry{
		{Name: "BP_Door", Path: "/Game/BP_Door", Graphs: 2, Nodes: 14, Dependencies: 3},
	})
	got := renderIndex(idx)
	for _, want := range []string{"Path", "/Game/BP_Door", "14"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderIndex output missing %q:\n%s", want, got)
		}
	}
}

// exportOnce runs one full export of src into out through openEnv, the way
// the export command does.
func exportOnce(t *testing.T, c *CLI, cfg *config.Config) (*export.Result, *exportEnv) {
	t.Helper()
	env, err := c.openEnv(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("openEnv: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	res, err := env.coord.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	return res, env
}

func fileConfig(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source = src
	cfg.Sink.Dir = t.TempDir()
	cfg.Cache.Type = config.CacheFile
	cfg.Cache.Dir = t.TempDir()
	return cfg
}

func TestUnchangedRerunCounts(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"BP_A", "BP_B", "BP_C"} {
		writeSnapshot(t, src, name+".json", strings.Replace(doorSnapshot, `"BP_Door"`, `"`+name+`"`, 1))
	}
	cfg := fileConfig(t, src)
	c := New(io.Discard, LogInfo)

	exportOnce(t, c, cfg)
	res, env := exportOnce(t, c, cfg)
	if env.out.cached == nil {
		t.Fatal("output is not cached")
	}
	skipped := env.out.cached.Skipped()
	if res.Exported != 3 || skipped != 3 {
		t.Fatalf("second run exported %d, skipped %d, want 3 and 3", res.Exported, skipped)
	}
	if env.out.cached.SkippedIndex() != 1 {
		t.Errorf("SkippedIndex = %d, want 1", env.out.cached.SkippedIndex())
	}
	line := formatCounts(res.Exported, res.Removed, skipped)
	if !strings.Contains(line, "0 written") || !strings.Contains(line, "3 unchanged") {
		t.Errorf("counts = %q, want 0 written and 3 unchanged", line)
	}
}

func TestFormatCounts(t *testing.T) {
	tests := []struct {
		exported, removed, skipped int
		want                       []string
	}{
		{2, 0, 0, []string{"2 written"}},
		{3, 1, 1, []string{"2 written", "1 removed", "1 unchanged"}},
		{1, 0, 4, []string{"0 written", "4 unchanged"}},
	}
	for _, tt := range tests {
		line := formatCounts(tt.exported, tt.removed, tt.skipped)
		for _, want := range tt.want {
			if !strings.Contains(line, want) {
				t.Errorf("formatCounts(%d, %d, %d) = %q, missing %q", tt.exported, tt.removed, tt.skipped, line, want)
			}
		}
	}
}

func TestOpenEnvReportsLoadedIndex(t *testing.T) {
	src := t.TempDir()
	writeSnapshot(t, src, "BP_Door.json", doorSnapshot)
	cfg := fileConfig(t, src)
	cfg.Cache.Type = config.CacheNone

	exportOnce(t, New(io.Discard, LogInfo), cfg)

	var logs bytes.Buffer
	exportOnce(t, New(&logs, LogInfo), cfg)
	if !strings.Contains(logs.String(), "Loaded index with 1 entries") {
		t.Errorf("log output = %q, want the loaded index size", logs.String())
	}
}
