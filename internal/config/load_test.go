package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeTOML(t *testing.T) {
	data := `
output_dir = "/srv/out"
strategy = "2pass"
target_size_mb = 8.0
codec = "hevc_nvenc"
preset = "slow"
encode_timeout = "30m"
`
	cfg, err := Decode(strings.NewReader(data), ".toml")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.OutputDir != "/srv/out" {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
	if cfg.Strategy != StrategyTwoPass {
		t.Errorf("Strategy = %s", cfg.Strategy)
	}
	if cfg.TargetSizeMB != 8 {
		t.Errorf("TargetSizeMB = %g", cfg.TargetSizeMB)
	}
	if cfg.Codec != CodecHEVCNVENC {
		t.Errorf("Codec = %s", cfg.Codec)
	}
	if cfg.Preset != PresetSlow {
		t.Errorf("Preset = %s", cfg.Preset)
	}
	if cfg.EncodeTimeout != 30*time.Minute {
		t.Errorf("EncodeTimeout = %v", cfg.EncodeTimeout)
	}
	// Untouched keys keep defaults.
	if cfg.CRF != DefaultCRF || cfg.FrameRate != DefaultFrameRate || !cfg.ValidateOutput {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestDecodeYAML(t *testing.T) {
	data := `
frame_rate: 30
crf: 28
validate_output: false
output_prefix: clip
`
	cfg, err := Decode(strings.NewReader(data), ".yml")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.FrameRate != 30 || cfg.CRF != 28 || cfg.ValidateOutput || cfg.OutputPrefix != "clip" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		ext      string
		sentinel error
	}{
		{"bad codec", `codec = "vp9"`, ".toml", ErrInvalidCodec},
		{"bad crf", "crf: 99\n", ".yaml", ErrInvalidCRF},
		{"bad timeout", `encode_timeout = "soon"`, ".toml", ErrInvalidTimeout},
		{"unknown extension", "", ".ini", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.data), tt.ext)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := Decode(strings.NewReader(`bitrate = 5`), ".toml"); err == nil {
		t.Error("expected unknown TOML key to be rejected")
	}
	if _, err := Decode(strings.NewReader("bitrate: 5\n"), ".yaml"); err == nil {
		t.Error("expected unknown YAML key to be rejected")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framepress.toml")
	if err := os.WriteFile(path, []byte(`crf = 30`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CRF != 30 {
		t.Errorf("CRF = %d, want 30", cfg.CRF)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/videos"); got != filepath.Join(home, "videos") {
		t.Errorf("ExpandPath(~/videos) = %s", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath should leave absolute paths alone, got %s", got)
	}
}
