package config_test

import (
	"errors"
	"testing"

	"github.com/ossyrian/vstarfw/internal/config"
	"github.com/ossyrian/vstarfw/internal/vstar"
)

func TestAction(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    config.Action
		wantErr bool
	}{
		{name: "extract", cfg: config.Config{ExtractFile: "fw.bin"}, want: config.ActionExtract},
		{name: "create", cfg: config.Config{BuildFile: "buildfile.txt"}, want: config.ActionCreate},
		{name: "list", cfg: config.Config{ListFile: "fw.bin"}, want: config.ActionList},
		{name: "none", cfg: config.Config{}, wantErr: true},
		{name: "extract and create", cfg: config.Config{ExtractFile: "a", BuildFile: "b"}, wantErr: true},
		{name: "all three", cfg: config.Config{ExtractFile: "a", BuildFile: "b", ListFile: "c"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Action()

			if tt.wantErr {
				if !errors.Is(err, config.ErrAction) {
					t.Fatalf("Action() error = %v, want ErrAction", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Action() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Action() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if cfg.OutputFile != "firmware.bin" || cfg.ManifestFile != "buildfile.txt" || cfg.PayloadDir != "." {
		t.Errorf("Default() outputs = %q, %q, %q", cfg.OutputFile, cfg.ManifestFile, cfg.PayloadDir)
	}

	want := vstar.Header{Version: 808791301, Factory: 0}
	if got := cfg.DefaultHeader(); got != want {
		t.Errorf("DefaultHeader() = %+v, want %+v", got, want)
	}
}
