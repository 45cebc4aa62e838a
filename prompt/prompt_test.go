package prompt

import (
	"strings"
	"testing"
)

func TestAnalysis_FiveParts(t *testing.T) {
	p := Analysis("https://example.com", PageContext{})
	for _, want := range []string{
		"https://example.com",
		"visual improvements",
		"Score out of 10",
		"Technical recommendations",
		"color palette",
		"Typography",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("analysis prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "Page context") {
		t.Fatalf("empty page context should add nothing:\n%s", p)
	}
}

func TestAnalysis_PageContext(t *testing.T) {
	p := Analysis("https://example.com", PageContext{Title: "Example", Excerpt: "# Hello", HasScreenshot: true})
	for _, want := range []string{"Title: Example", "# Hello", "screenshot"} {
		if !strings.Contains(p, want) {
			t.Errorf("missing %q:\n%s", want, p)
		}
	}
}

func TestCodeGen_StackAndCustom(t *testing.T) {
	p := CodeGen(CodeRequest{URL: "https://example.com", TechStack: "Vue", Custom: "use a dark theme"})
	for _, want := range []string{
		"Generate complete Vue code",
		"https://example.com",
		"Additional user suggestions: use a dark theme",
		"```vue",
		"```css",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("missing %q:\n%s", want, p)
		}
	}
}

func TestCodeGen_Defaults(t *testing.T) {
	p := CodeGen(CodeRequest{URL: "https://example.com", Custom: "   "})
	if !strings.Contains(p, "Generate complete React code") {
		t.Fatalf("default stack not applied:\n%s", p)
	}
	if strings.Contains(p, "Additional user suggestions") {
		t.Fatalf("blank custom instruction should be omitted:\n%s", p)
	}
	if !strings.Contains(p, "```jsx") {
		t.Fatalf("default fence should be jsx:\n%s", p)
	}
}

func TestFenceLanguage(t *testing.T) {
	cases := map[string]string{
		"React":       "jsx",
		"Next.js":     "jsx",
		"Vue":         "vue",
		"Svelte":      "svelte",
		"Angular":     "typescript",
		"HTML/CSS":    "html",
		"plain html5": "html",
	}
	for stack, want := range cases {
		if got := FenceLanguage(stack); got != want {
			t.Errorf("FenceLanguage(%q) = %q, want %q", stack, got, want)
		}
	}
}
