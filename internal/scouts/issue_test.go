package scouts

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"autogov/internal/cabinet"
)

func sampleDecision() *cabinet.Decision {
	return &cabinet.Decision{
		ID:        cabinet.DeriveDecisionID("2026-03-15", "New VAT rate"),
		Title:     "New VAT rate",
		Summary:   "Standard VAT moves from 21% to 22%.",
		Date:      "2026-03-15",
		SourceURL: "https://example.gov/decisions/412",
		Category:  cabinet.CategoryFiscal,
		Tags:      []string{"tax", "vat"},
	}
}

func TestAnalysisIssueRoundTrip(t *testing.T) {
	d := sampleDecision()

	body, err := AnalysisIssueBody(d)
	if err != nil {
		t.Fatalf("AnalysisIssueBody: %v", err)
	}
	for _, want := range []string{"**Decision ID**: " + d.ID, "**Date**: 2026-03-15", "```json"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	got, err := DecisionFromBody(body)
	if err != nil {
		t.Fatalf("DecisionFromBody: %v", err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisIssueTitleClipped(t *testing.T) {
	d := sampleDecision()
	d.Title = strings.Repeat("x", 200)
	title := AnalysisIssueTitle(d)
	if len(title) != len("Analyze: ")+110 {
		t.Errorf("title length = %d", len(title))
	}
	if !strings.HasPrefix(title, "Analyze: ") {
		t.Errorf("title = %q", title)
	}
}

func TestDecisionFromBodyRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no json block", "Just some prose about a decision."},
		{"unparseable json", "```json\n{not json\n```"},
		{"invalid decision", "```json\n{\"id\": \"bogus\", \"title\": \"x\", \"date\": \"2026-03-15\", \"category\": \"fiscal\"}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecisionFromBody(tt.body); err == nil {
				t.Error("expected error")
			}
		})
	}
}
