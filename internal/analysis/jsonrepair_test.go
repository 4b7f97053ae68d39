package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unterminated string", `{"summary": "The presenter explains`},
		{"open array and object", `{"chapters": [{"title": "Intro", "start_time": "0:00"}, {"title": "Setup"`},
		{"dangling key", `{"chapters": [{"title": "Intro"}, {"title": "Setup", "start_`},
		{"trailing comma", `{"tags": ["a", "b",`},
		{"trailing colon", `{"summary": "x", "tone":`},
		{"invalid escape", `{"path": "C:\videos\new"}`},
		{"escape and truncation", `{"path": "C:\data", "note": "cut`},
		{"trailing backslash", `{"summary": "ends with \`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RepairJSON(tt.in)
			if !ok {
				t.Fatalf("RepairJSON(%q) failed", tt.in)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("RepairJSON(%q) = %q, not valid JSON", tt.in, got)
			}
		})
	}
}

func TestRepairJSON_KeepsContent(t *testing.T) {
	got, ok := RepairJSON(`{"summary": "The presenter explains`)
	if !ok {
		t.Fatal("repair failed")
	}
	var v struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatal(err)
	}
	if v.Summary != "The presenter explains" {
		t.Errorf("Summary = %q", v.Summary)
	}

	got, _ = RepairJSON(`{"path": "C:\videos"}`)
	var p struct {
		Path string `json:"path"`
	}
	json.Unmarshal([]byte(got), &p)
	if p.Path != `C:\videos` {
		t.Errorf("Path = %q", p.Path)
	}
}

func TestRepairJSON_Unrecoverable(t *testing.T) {
	if _, ok := RepairJSON(`not json at all`); ok {
		t.Error("expected failure for prose")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
	}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", `{"summary":"ok"}`, "ok", false},
		{"fenced", "```json\n{\"summary\":\"ok\"}\n```", "ok", false},
		{"leading prose", `Here is the JSON: {"summary":"ok"}`, "ok", false},
		{"trailing prose", `{"summary":"ok"} Let me know if you need more.`, "ok", false},
		{"truncated", `{"summary":"cut off`, "cut off", false},
		{"bracket in leading prose", `Note [1]: {"summary":"ok"}`, "ok", false},
		{"brackets around object", `See [1] {"summary":"ok"} and [2]`, "ok", false},
		{"empty", "", "", true},
		{"garbage", "I cannot help with that.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := DecodeJSON(tt.in, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrResponseParse) {
					t.Errorf("expected ErrResponseParse, got %v", err)
				}
				return
			}
			if p.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", p.Summary, tt.want)
			}
		})
	}
}

func TestDecodeJSON_ArrayTarget(t *testing.T) {
	var got []string
	if err := DecodeJSON(`Tags follow: ["a", "b"]`, &got); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("got %v", got)
	}
}
