package cli

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		number  string
		vars    map[string]any
		wantErr bool
	}{
		{
			name:   "bare number",
			line:   "+15557770001",
			number: "+15557770001",
		},
		{
			name:   "number with variables",
			line:   "+15557770001,name=Alice,city=Riga",
			number: "+15557770001",
			vars:   map[string]any{"name": "Alice", "city": "Riga"},
		},
		{
			name:   "spaces trimmed",
			line:   " +15557770001 , name=Bob ",
			number: "+15557770001",
			vars:   map[string]any{"name": "Bob"},
		},
		{
			name:    "empty number",
			line:    ",name=Alice",
			wantErr: true,
		},
		{
			name:    "malformed variable",
			line:    "+15557770001,name",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := parseTarget(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget: %v", err)
			}
			if target.Number != tt.number {
				t.Errorf("number = %q, want %q", target.Number, tt.number)
			}
			if len(target.Variables) != len(tt.vars) {
				t.Fatalf("variables = %v, want %v", target.Variables, tt.vars)
			}
			for k, v := range tt.vars {
				if target.Variables[k] != v {
					t.Errorf("variable %s = %v, want %v", k, target.Variables[k], v)
				}
			}
		})
	}
}
