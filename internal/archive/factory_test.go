package archive

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"siv-go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.ArchiveConfig
		wantNil  bool
		wantErr  bool
		wantName string
	}{
		{name: "none", cfg: config.ArchiveConfig{Type: "none"}, wantNil: true},
		{name: "empty type", cfg: config.ArchiveConfig{}, wantNil: true},
		{name: "memory", cfg: config.ArchiveConfig{Type: "memory", Name: "scratch"}, wantName: "scratch"},
		{name: "filesystem", cfg: config.ArchiveConfig{Type: "filesystem", Root: "/archive"}, wantName: "filesystem"},
		{name: "filesystem without root", cfg: config.ArchiveConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3 without bucket", cfg: config.ArchiveConfig{Type: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.ArchiveConfig{Type: "tape"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(ctx, tt.cfg, afero.NewMemMapFs())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr || tt.wantNil {
				if got != nil {
					t.Errorf("NewStoreFromConfig() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("NewStoreFromConfig() returned nil")
			}
			if got.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", got.Name(), tt.wantName)
			}
		})
	}
}
