package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (output string, err error) {
	t.Helper()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), err
}

// isolateConfig points config lookups at an empty temporary directory
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "bufferlab" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "bufferlab")
	}

	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, name := range []string{"race", "pipeline", "compare", "config", "logs"} {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"config", "log-level", "log-dir", "format", "metrics-addr"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestRaceCommand(t *testing.T) {
	isolateConfig(t)

	out, err := executeCommand(t, rootCmd, "race", "-n", "2000", "--incrementers", "2", "--decrementers", "2",
		"--trials", "0", "--format", "json")
	if err != nil {
		t.Fatalf("race: %v\n%s", err, out)
	}

	var got struct {
		Locked struct {
			FinalValue  int64 `json:"final_value"`
			LostUpdates int64 `json:"lost_updates"`
		} `json:"locked"`
		Incrementers int `json:"incrementers"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Locked.FinalValue != 0 || got.Locked.LostUpdates != 0 {
		t.Errorf("locked phase = %+v, want exact zero", got.Locked)
	}
	if got.Incrementers != 2 {
		t.Errorf("incrementers = %d, want 2", got.Incrementers)
	}
}

func TestRaceTrialsCommand(t *testing.T) {
	isolateConfig(t)

	out, err := executeCommand(t, rootCmd, "race", "-n", "500", "--incrementers", "1", "--decrementers", "1",
		"--race-window", "--trials", "3", "--format", "yaml")
	if err != nil {
		t.Fatalf("race --trials: %v\n%s", err, out)
	}

	var got map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if got["trials"] != 3 {
		t.Errorf("trials = %v, want 3", got["trials"])
	}

	// Reset flags shared with other tests.
	_, _ = executeCommand(t, rootCmd, "race", "-n", "1", "--race-window=true", "--trials", "0", "--format", "text")
}

func TestPipelineCommand(t *testing.T) {
	isolateConfig(t)

	out, err := executeCommand(t, rootCmd, "pipeline", "--capacity", "2", "-p", "3", "-w", "2", "-n", "20",
		"--max-value", "9", "--format", "json")
	if err != nil {
		t.Fatalf("pipeline: %v\n%s", err, out)
	}

	var got struct {
		Produced    int64            `json:"produced"`
		Consumed    int64            `json:"consumed"`
		Balanced    bool             `json:"balanced"`
		PerConsumer map[string]int64 `json:"per_consumer"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Produced != 60 || got.Consumed != 60 || !got.Balanced {
		t.Errorf("summary = %+v", got)
	}
	if len(got.PerConsumer) != 2 {
		t.Errorf("per_consumer = %v, want 2 entries", got.PerConsumer)
	}
}

func TestPipelineWatchWithoutTerminal(t *testing.T) {
	isolateConfig(t)

	// Output is a buffer, so the live view is skipped and text is printed.
	out, err := executeCommand(t, rootCmd, "pipeline", "--capacity", "1", "-p", "1", "-w", "1", "-n", "5",
		"--watch", "--format", "text")
	if err != nil {
		t.Fatalf("pipeline --watch: %v\n%s", err, out)
	}
	if !strings.Contains(out, "exactly once") {
		t.Errorf("unexpected output:\n%s", out)
	}
	_, _ = executeCommand(t, rootCmd, "pipeline", "-n", "1", "--watch=false", "--format", "text")
}

func TestCompareCommand(t *testing.T) {
	isolateConfig(t)

	out, err := executeCommand(t, rootCmd, "compare", "-n", "300", "--max-workers", "2", "--format", "yaml")
	if err != nil {
		t.Fatalf("compare: %v\n%s", err, out)
	}
	var got struct {
		Number       int64 `yaml:"number"`
		Measurements []struct {
			Workers int `yaml:"workers"`
		} `yaml:"measurements"`
	}
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if got.Number != 300 || len(got.Measurements) != 2 {
		t.Errorf("report = %+v", got)
	}
}

func TestInvalidFormat(t *testing.T) {
	isolateConfig(t)

	_, err := executeCommand(t, rootCmd, "compare", "-n", "10", "--max-workers", "1", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "output.format") {
		t.Errorf("expected output.format validation error, got %v", err)
	}
	_, _ = executeCommand(t, rootCmd, "compare", "-n", "10", "--max-workers", "1", "--format", "text")
}

func TestConfigPath(t *testing.T) {
	dir := isolateConfig(t)

	out, err := executeCommand(t, rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	want := filepath.Join(dir, "bufferlab", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestConfigInitShowSet(t *testing.T) {
	dir := isolateConfig(t)
	path := filepath.Join(dir, "bufferlab", "config.yaml")

	if _, err := executeCommand(t, rootCmd, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if _, err := executeCommand(t, rootCmd, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}

	out, err := executeCommand(t, rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "capacity:") || !strings.Contains(out, path) {
		t.Errorf("config show output:\n%s", out)
	}

	if _, err := executeCommand(t, rootCmd, "config", "set", "buffer.capacity", "7"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "capacity: 7") {
		t.Errorf("config file not updated:\n%s", data)
	}

	if _, err := executeCommand(t, rootCmd, "config", "set", "no.such.key", "1"); err == nil {
		t.Error("unknown key should fail")
	}
	if _, err := executeCommand(t, rootCmd, "config", "set", "buffer.capacity", "lots"); err == nil {
		t.Error("non-numeric capacity should fail")
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name    string
		current any
		value   string
		want    any
		wantErr bool
	}{
		{"int", 10, "25", 25, false},
		{"int64", int64(1), "50000", int64(50000), false},
		{"uint64", uint64(1), "42", uint64(42), false},
		{"bool", false, "true", true, false},
		{"string", "text", "json", "json", false},
		{"bad int", 10, "ten", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.current, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("coerceValue() error = %v", err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("coerceValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func writeTestLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	lines := []string{
		`{"time":"2026-01-01T10:00:00Z","level":"DEBUG","msg":"worker started","component":"race","phase":"unlocked","pool":"incrementer","worker":"incrementer-0"}`,
		`{"time":"2026-01-01T10:00:01Z","level":"INFO","msg":"phase completed","component":"race","phase":"unlocked","final_value":-1204}`,
		`{"time":"2026-01-01T10:00:02Z","level":"WARN","msg":"worker failed","component":"pipeline","pool":"consumers","worker":"consumers-0"}`,
	}
	path := filepath.Join(dir, "bufferlab.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLogsCommand(t *testing.T) {
	isolateConfig(t)
	dir := writeTestLog(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all entries",
			args: []string{"--level=", "--phase=", "--pool=", "--grep="},
			want: []string{"worker started", "phase completed", "worker failed", "worker=incrementer-0"},
		},
		{
			name:    "min level",
			args:    []string{"--level=warn", "--phase=", "--pool=", "--grep="},
			want:    []string{"worker failed"},
			notWant: []string{"phase completed"},
		},
		{
			name:    "phase and pool",
			args:    []string{"--level=", "--phase=unlocked", "--pool=incrementer", "--grep="},
			want:    []string{"worker started"},
			notWant: []string{"phase completed", "worker failed"},
		},
		{
			name:    "grep attributes",
			args:    []string{"--level=", "--phase=", "--pool=", "--grep=-1204"},
			want:    []string{"phase completed"},
			notWant: []string{"worker started"},
		},
		{
			name: "no match",
			args: []string{"--level=", "--phase=locked", "--pool=", "--grep="},
			want: []string{"No matching log entries found."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"logs", "--dir", dir, "-n", "0", "--export="}, tt.args...)
			out, err := executeCommand(t, rootCmd, args...)
			if err != nil {
				t.Fatalf("logs: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestLogsExport(t *testing.T) {
	isolateConfig(t)
	dir := writeTestLog(t)
	export := filepath.Join(t.TempDir(), "race.json")

	out, err := executeCommand(t, rootCmd, "logs", "--dir", dir, "-n", "0", "--level=", "--phase=", "--pool=", "--grep=",
		"--component=race", "--export="+export, "--export-format=json")
	if err != nil {
		t.Fatalf("logs --export: %v", err)
	}
	_, _ = executeCommand(t, rootCmd, "logs", "--dir", dir, "--component=", "--export=")

	if !strings.Contains(out, "Exported 2 entries") {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatal(err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid export: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("exported %d entries, want 2", len(entries))
	}
}

func TestLogsErrors(t *testing.T) {
	isolateConfig(t)

	if _, err := executeCommand(t, rootCmd, "logs", "--dir", t.TempDir()); err == nil {
		t.Error("expected an error for a directory without logs")
	}
	if _, err := executeCommand(t, rootCmd, "logs", "--dir", writeTestLog(t), "--since=soon"); err == nil {
		t.Error("expected an error for an invalid --since")
	}
	_, _ = executeCommand(t, rootCmd, "logs", "--dir", writeTestLog(t), "--since=")
}
