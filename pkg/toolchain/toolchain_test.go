// pkg/toolchain/toolchain_test.go
package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestChannel(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr bool
	}{
		{
			name: "channel present",
			doc:  "[toolchain]\nchannel = \"nightly-2023-04-01\"\n",
			want: "nightly-2023-04-01",
		},
		{
			name: "channel with components",
			doc:  "[toolchain]\nchannel = \"1.74.0\"\ncomponents = [\"rustc-dev\"]\n",
			want: "1.74.0",
		},
		{
			name: "no toolchain table",
			doc:  "[profile]\nname = \"default\"\n",
			want: "",
		},
		{
			name: "toolchain table without channel",
			doc:  "[toolchain]\ncomponents = [\"clippy\"]\n",
			want: "",
		},
		{
			name: "channel is not a string",
			doc:  "[toolchain]\nchannel = 42\n",
			want: "",
		},
		{
			name: "empty document",
			doc:  "",
			want: "",
		},
		{
			name:    "invalid syntax",
			doc:     "[toolchain\nchannel = \"x\"",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Channel([]byte(tt.doc))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected ErrMalformed, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Channel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannelFromProjectTomlFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rust-toolchain.toml"), "[toolchain]\nchannel = \"stable\"\n")

	got, err := ChannelFromProject(dir)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != "stable" {
		t.Errorf("channel = %q, want %q", got, "stable")
	}
}

func TestChannelFromProjectLegacyBareChannel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rust-toolchain"), "nightly-2023-04-01\n")

	got, err := ChannelFromProject(dir)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != "nightly-2023-04-01" {
		t.Errorf("channel = %q, want %q", got, "nightly-2023-04-01")
	}
}

func TestChannelFromProjectLegacyTomlContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rust-toolchain"), "[toolchain]\nchannel = \"beta\"\n")

	got, err := ChannelFromProject(dir)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != "beta" {
		t.Errorf("channel = %q, want %q", got, "beta")
	}
}

func TestChannelFromProjectTomlFileTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rust-toolchain.toml"), "[toolchain]\nchannel = \"stable\"\n")
	writeFile(t, filepath.Join(dir, "rust-toolchain"), "nightly\n")

	got, err := ChannelFromProject(dir)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != "stable" {
		t.Errorf("channel = %q, want %q", got, "stable")
	}
}

func TestChannelFromProjectNoFiles(t *testing.T) {
	got, err := ChannelFromProject(t.TempDir())
	if err != nil {
		t.Fatalf("absence of toolchain files should not be an error, got: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty channel, got: %q", got)
	}
}

func TestChannelFromProjectMalformedTomlFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rust-toolchain.toml"), "[toolchain\n")

	if _, err := ChannelFromProject(dir); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
