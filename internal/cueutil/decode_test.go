// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Server: {
	host?: string
	port?: int & >0 & <65536
	tags?: [...string]
}
`

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    map[string]any
		wantErr string
	}{
		{
			name: "valid",
			data: `host: "localhost", port: 22`,
			want: map[string]any{"host": "localhost", "port": 22},
		},
		{
			name: "empty document",
			data: ``,
			want: map[string]any{},
		},
		{
			name:    "out of range",
			data:    `port: 70000`,
			wantErr: "70000",
		},
		{
			name:    "wrong type",
			data:    `host: 1`,
			wantErr: "host",
		},
		{
			name:    "unknown field",
			data:    `hots: "x"`,
			wantErr: "hots",
		},
		{
			name:    "syntax error",
			data:    `host: `,
			wantErr: "server.cue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]any
			err := Decode(testSchema, "#Server", []byte(tt.data), &got,
				WithFilename("server.cue"), WithConcrete(false))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Decode() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decode() = %v, want %v", got, tt.want)
			}
			if tt.want["host"] != nil && got["host"] != tt.want["host"] {
				t.Errorf("host = %v", got["host"])
			}
		})
	}
}

func TestDecode_SizeLimit(t *testing.T) {
	t.Parallel()

	var got map[string]any
	err := Decode(testSchema, "#Server", []byte(`host: "abcdef"`), &got, WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum 4 bytes") {
		t.Errorf("Decode() error = %v", err)
	}
}

func TestFormatError_NonCUE(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x") != nil {
		t.Error("FormatError(nil) should be nil")
	}
	base := errors.New("boom")
	err := FormatError(base, "f.cue")
	if !errors.Is(err, base) || err.Error() != "f.cue: boom" {
		t.Errorf("FormatError() = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"ssh"}, "ssh"},
		{[]string{"ssh", "port"}, "ssh.port"},
		{[]string{"plugins", "disabled", "1"}, "plugins.disabled[1]"},
		{[]string{"0", "x"}, "0.x"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
