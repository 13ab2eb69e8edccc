package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

// testOptions mirrors the shape of the main Options struct.
type testOptions struct {
	Config string `doc:"Config file path"`

	Device       string   `toml:"capture.device" env:"DEVICE"`
	Buffers      int      `toml:"capture.buffers" env:"BUFFERS"`
	DmaExport    bool     `toml:"capture.dma_export" env:"DMA_EXPORT"`
	Servers      []string `toml:"clock.servers" env:"CLOCK_SERVERS"`
	LoggingLevel string   `toml:"logging.level" env:"LOGGING_LEVEL"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "viewfinder.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromTOML(t *testing.T) {
	path := writeConfig(t, `
[capture]
device = "/dev/video3"
buffers = 6
dma_export = true

[clock]
servers = ["time.example.org", "pool.ntp.org"]

[logging]
level = "debug"
`)

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if opts.Device != "/dev/video3" {
		t.Errorf("Device = %q, want /dev/video3", opts.Device)
	}
	if opts.Buffers != 6 {
		t.Errorf("Buffers = %d, want 6", opts.Buffers)
	}
	if !opts.DmaExport {
		t.Error("DmaExport = false, want true")
	}
	if want := []string{"time.example.org", "pool.ntp.org"}; !reflect.DeepEqual(opts.Servers, want) {
		t.Errorf("Servers = %v, want %v", opts.Servers, want)
	}
	if opts.LoggingLevel != "debug" {
		t.Errorf("LoggingLevel = %q, want debug", opts.LoggingLevel)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VIEWFINDER_DEVICE", "/dev/video7")
	t.Setenv("VIEWFINDER_BUFFERS", "8")
	t.Setenv("VIEWFINDER_DMA_EXPORT", "true")
	t.Setenv("VIEWFINDER_CLOCK_SERVERS", " a.example , b.example ")

	opts := &testOptions{}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if opts.Device != "/dev/video7" {
		t.Errorf("Device = %q, want /dev/video7", opts.Device)
	}
	if opts.Buffers != 8 {
		t.Errorf("Buffers = %d, want 8", opts.Buffers)
	}
	if !opts.DmaExport {
		t.Error("DmaExport = false, want true")
	}
	if want := []string{"a.example", "b.example"}; !reflect.DeepEqual(opts.Servers, want) {
		t.Errorf("Servers = %v, want %v", opts.Servers, want)
	}
}

func TestLoadEnvironmentOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[capture]
device = "/dev/video3"
buffers = 6
`)
	t.Setenv("VIEWFINDER_DEVICE", "/dev/video9")

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if opts.Device != "/dev/video9" {
		t.Errorf("Device = %q, want env override /dev/video9", opts.Device)
	}
	if opts.Buffers != 6 {
		t.Errorf("Buffers = %d, want 6 from TOML", opts.Buffers)
	}
}

func TestLoadKeepsExplicitFlags(t *testing.T) {
	path := writeConfig(t, `
[capture]
device = "/dev/video3"
buffers = 6
`)
	t.Setenv("VIEWFINDER_DEVICE", "/dev/video9")

	cmd := &cobra.Command{}
	cmd.Flags().String("device", "/dev/video0", "")
	cmd.Flags().Int("buffers", 4, "")
	if err := cmd.Flags().Set("device", "/dev/video1"); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: path, Device: "/dev/video1", Buffers: 4}
	if err := Load(opts, cmd); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// The explicitly set flag beats both the file and the environment;
	// the untouched flag still loads from the file.
	if opts.Device != "/dev/video1" {
		t.Errorf("Device = %q, want CLI value /dev/video1", opts.Device)
	}
	if opts.Buffers != 6 {
		t.Errorf("Buffers = %d, want 6 from TOML", opts.Buffers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Buffers: 4}
	if err := Load(opts, nil); err != nil {
		t.Fatalf("Load() error for missing file: %v", err)
	}
	if opts.Buffers != 4 {
		t.Errorf("Buffers = %d, want untouched default 4", opts.Buffers)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[capture\nnot toml")

	opts := &testOptions{Config: path}
	if err := Load(opts, nil); err == nil {
		t.Error("Load() succeeded on malformed TOML, want error")
	}
}

func TestFlagName(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"Device", "device"},
		{"CaptureCount", "capture-count"},
		{"DMAExport", "dma-export"},
		{"NoAPI", "no-api"},
		{"FPS", "fps"},
		{"Port", "port"},
	}
	for _, tt := range tests {
		if got := flagName(tt.field); got != tt.want {
			t.Errorf("flagName(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"capture": map[string]any{
			"device": "/dev/video3",
			"deep":   map[string]any{"value": int64(7)},
		},
		"root": "top",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "top"},
		{"capture.device", "/dev/video3"},
		{"capture.deep.value", int64(7)},
		{"missing", nil},
		{"capture.missing", nil},
		{"root.not-a-table", nil},
	}
	for _, tt := range tests {
		if got := lookup(doc, tt.path); got != tt.want {
			t.Errorf("lookup(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAssignIgnoresMismatchedTypes(t *testing.T) {
	opts := &testOptions{Buffers: 4, Device: "/dev/video0"}
	v := reflect.ValueOf(opts).Elem()

	assign(v.FieldByName("Buffers"), "not a number")
	assign(v.FieldByName("Device"), int64(9))

	if opts.Buffers != 4 || opts.Device != "/dev/video0" {
		t.Errorf("mismatched assigns changed fields: %+v", opts)
	}
}

func TestLoggingDefaults(t *testing.T) {
	cfg := Logging("")
	if cfg.Level != "info" || cfg.Format != "auto" {
		t.Errorf("defaults = %s/%s, want info/auto", cfg.Level, cfg.Format)
	}
	if len(cfg.Modules) != 0 {
		t.Errorf("Modules = %v, want empty", cfg.Modules)
	}

	cfg = Logging(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Level != "info" || cfg.Format != "auto" {
		t.Errorf("missing file = %s/%s, want info/auto", cfg.Level, cfg.Format)
	}
}

func TestLoggingModuleLevels(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
capture = "debug"
display = "error"
`)

	cfg := Logging(path)
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	want := map[string]string{"capture": "debug", "display": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}
