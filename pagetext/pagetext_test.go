package pagetext

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const page = `<!doctype html>
<html><head><title>  Acme
 Widgets </title><style>body{color:red}</style></head>
<body>
<script>alert("x")</script>
<h1>Welcome to Acme</h1>
<p>We sell <strong>widgets</strong>.</p>
<ul><li>Fast</li><li>Cheap</li></ul>
</body></html>`

func TestExtract(t *testing.T) {
	ex, err := New().Extract(page, "https://acme.test", 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ex.Title != "Acme Widgets" {
		t.Fatalf("Title = %q", ex.Title)
	}
	for _, want := range []string{"# Welcome to Acme", "**widgets**", "Fast", "Cheap"} {
		if !strings.Contains(ex.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, ex.Markdown)
		}
	}
	for _, bad := range []string{"alert", "color:red"} {
		if strings.Contains(ex.Markdown, bad) {
			t.Errorf("markdown should not contain %q:\n%s", bad, ex.Markdown)
		}
	}
	if ex.Truncated {
		t.Fatal("short page should not be truncated")
	}
}

func TestExtract_Truncates(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 200; i++ {
		b.WriteString("<p>Lorem ipsum dolor sit amet, consectetur adipiscing.</p>")
	}
	b.WriteString("</body></html>")

	ex, err := New().Extract(b.String(), "", 300)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !ex.Truncated {
		t.Fatal("expected truncation")
	}
	if n := utf8.RuneCountInString(ex.Markdown); n > 300 {
		t.Fatalf("excerpt has %d runes", n)
	}
}

func TestExtract_Empty(t *testing.T) {
	if _, err := New().Extract("  ", "", 0); err == nil {
		t.Fatal("expected error on empty document")
	}
}

func TestTruncate_MultiByte(t *testing.T) {
	s := strings.Repeat("é", 10)
	got, cut := truncate(s, 4)
	if !cut || got != "éééé" {
		t.Fatalf("truncate = %q, %v", got, cut)
	}
}
