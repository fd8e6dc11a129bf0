package agent

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	rterrors "github.com/Iron-Ham/roundtable/internal/errors"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantRoles []string
		wantErr   bool
	}{
		{
			name: "wrapped",
			yaml: `agents:
  - role: architect
    priority: 1
  - role: security
    name: Security Reviewer
    priority: 2
    instructions: Look for vulnerabilities.
`,
			wantRoles: []string{"architect", "security"},
		},
		{
			name: "bare list",
			yaml: `- role: qa
  priority: 1
- role: backend
  priority: 0
`,
			wantRoles: []string{"qa", "backend"},
		},
		{
			name:    "unknown field",
			yaml:    "agents:\n  - role: qa\n    prio: 1\n",
			wantErr: true,
		},
		{
			name:    "duplicate roles",
			yaml:    "agents:\n  - role: qa\n  - role: qa\n",
			wantErr: true,
		},
		{
			name:    "empty",
			yaml:    "agents: []\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster, err := ParseRoster([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRoster() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, rterrors.ErrInvalidConfig) {
					t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
				}
				return
			}
			if got := Roles(roster); !slices.Equal(got, tt.wantRoles) {
				t.Errorf("roles = %v, want %v", got, tt.wantRoles)
			}
		})
	}
}

func TestParseRoster_DefaultInstructions(t *testing.T) {
	roster, err := ParseRoster([]byte("- role: qa\n- role: custom\n"))
	if err != nil {
		t.Fatal(err)
	}
	if roster[0].Instructions != defaultInstructions[RoleQA] {
		t.Error("built-in role should get default instructions")
	}
	if roster[1].Instructions != "" {
		t.Error("custom role should keep empty instructions")
	}
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - role: solo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster() error = %v", err)
	}
	if len(roster) != 1 || roster[0].Role != "solo" {
		t.Errorf("roster = %+v", roster)
	}

	if _, err := LoadRoster(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
