package main

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"5", float64(5)},
		{"true", true},
		{"heading:2.1", "heading:2.1"},
		{"bookmark:_mcp_1", "bookmark:_mcp_1"},
		{`["a","b"]`, []any{"a", "b"}},
		{"Heading 2", "Heading 2"},
	}
	for _, tt := range tests {
		got := parseValue(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q): expected %#v, got %#v", tt.in, tt.want, got)
		}
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"read_paragraphs locator=heading:2 count=3", []string{"read_paragraphs", "locator=heading:2", "count=3"}},
		{`set_paragraph_text locator=4 text="two words"`, []string{"set_paragraph_text", "locator=4", "text=two words"}},
		{`insert_paragraph text="say \"hi\""`, []string{"insert_paragraph", `text=say "hi"`}},
		{"  list_documents  ", []string{"list_documents"}},
	}
	for _, tt := range tests {
		got, err := splitWords(tt.in)
		if err != nil {
			t.Fatalf("splitWords(%q): %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitWords(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
	if _, err := splitWords(`text="open`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}
