package agent

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "bare object",
			text: `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "markdown fence",
			text: "Here you go:\n```json\n{\"a\": 1}\n```\ndone",
			want: `{"a": 1}`,
		},
		{
			name: "prose around object",
			text: `I think the answer is {"verdict":"approve"} based on my review.`,
			want: `{"verdict":"approve"}`,
		},
		{
			name: "nested objects",
			text: `{"outer":{"inner":{"x":2}}}`,
			want: `{"outer":{"inner":{"x":2}}}`,
		},
		{
			name: "braces inside strings",
			text: `{"msg":"use {curly} braces"}`,
			want: `{"msg":"use {curly} braces"}`,
		},
		{
			name: "escaped quote inside string",
			text: `{"msg":"she said \"hi\" {ok}"}`,
			want: `{"msg":"she said \"hi\" {ok}"}`,
		},
		{
			name: "no object",
			text: "just words",
			want: "",
		},
		{
			name: "unbalanced",
			text: `{"a": 1`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.text); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Score int    `json:"score"`
		Note  string `json:"note"`
	}

	t.Run("clean JSON", func(t *testing.T) {
		var p payload
		err := Decode(RoleAdvocate, `{"score": 7, "note": "solid"}`, &p)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if p.Score != 7 || p.Note != "solid" {
			t.Errorf("got %+v", p)
		}
	})

	t.Run("fenced with prose", func(t *testing.T) {
		var p payload
		text := "My assessment:\n```json\n{\"score\": 4, \"note\": \"weak\"}\n```"
		if err := Decode(RoleSkeptic, text, &p); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if p.Score != 4 {
			t.Errorf("Score = %d, want 4", p.Score)
		}
	})

	t.Run("repairable trailing comma", func(t *testing.T) {
		var p payload
		if err := Decode(RoleAdvocate, `{"score": 9, "note": "x",}`, &p); err != nil {
			t.Fatalf("Decode() should repair trailing comma: %v", err)
		}
		if p.Score != 9 {
			t.Errorf("Score = %d, want 9", p.Score)
		}
	})

	t.Run("repairable truncation", func(t *testing.T) {
		var p payload
		if err := Decode(RoleAdvocate, `{"score": 3, "note": "cut of`, &p); err != nil {
			t.Fatalf("Decode() should repair truncated JSON: %v", err)
		}
		if p.Score != 3 {
			t.Errorf("Score = %d, want 3", p.Score)
		}
	})

	t.Run("no JSON at all", func(t *testing.T) {
		var p payload
		err := Decode(RoleCritic, "I refuse to answer in JSON.", &p)
		if !IsParseError(err) {
			t.Errorf("expected parse error, got %v", err)
		}
	})
}
