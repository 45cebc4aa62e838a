// Package prompt builds the critique and code-generation prompts sent to
// the AI adapter.
package prompt

import (
	"fmt"
	"strings"
)

// DefaultTechStack is used when a code-generation request names none.
const DefaultTechStack = "React"

// PageContext is optional material gathered about the target page.
type PageContext struct {
	Title   string
	Excerpt string
	// HasScreenshot is set when a screenshot is attached to the prompt as an
	// inline image.
	HasScreenshot bool
}

func (p PageContext) empty() bool {
	return p.Title == "" && p.Excerpt == "" && !p.HasScreenshot
}

// Analysis returns the five-part design critique prompt for url.
func Analysis(url string, page PageContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the design of this website: %s\n", url)
	b.WriteString("Provide:\n")
	b.WriteString("1. Specific visual improvements (bullet points)\n")
	b.WriteString("2. Score out of 10 with detailed reasoning\n")
	b.WriteString("3. Technical recommendations\n")
	b.WriteString("4. Suggested color palette\n")
	b.WriteString("5. Typography suggestions")
	writePage(&b, page)
	return b.String()
}

// CodeRequest is the input of CodeGen.
type CodeRequest struct {
	URL       string
	TechStack string
	Custom    string
	Page      PageContext
}

// CodeGen returns the code-generation prompt. An empty TechStack means
// DefaultTechStack; Custom is appended only when non-blank.
func CodeGen(req CodeRequest) string {
	stack := strings.TrimSpace(req.TechStack)
	if stack == "" {
		stack = DefaultTechStack
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate complete %s code for a website similar to: %s\n", stack, req.URL)
	b.WriteString("Include:\n")
	b.WriteString("1. All necessary components/files\n")
	b.WriteString("2. Modern styling (CSS-in-JS if applicable)\n")
	b.WriteString("3. Responsive layout\n")
	b.WriteString("4. Clean, production-ready code\n")
	b.WriteString("5. Proper component structure")

	if custom := strings.TrimSpace(req.Custom); custom != "" {
		fmt.Fprintf(&b, "\n\nAdditional user suggestions: %s", custom)
	}
	writePage(&b, req.Page)

	lang := FenceLanguage(stack)
	b.WriteString("\n\nOutput format should be:\n")
	fmt.Fprintf(&b, "```%s\n// Component code here\n```\n", lang)
	b.WriteString("```css\n/* Styles here */\n```")
	return b.String()
}

// FenceLanguage returns the code fence tag for the main block of stack.
func FenceLanguage(stack string) string {
	s := strings.ToLower(stack)
	switch {
	case strings.Contains(s, "vue"):
		return "vue"
	case strings.Contains(s, "svelte"):
		return "svelte"
	case strings.Contains(s, "angular"):
		return "typescript"
	case strings.Contains(s, "html"):
		return "html"
	}
	return "jsx"
}

func writePage(b *strings.Builder, page PageContext) {
	if page.empty() {
		return
	}
	b.WriteString("\n\nPage context:")
	if page.HasScreenshot {
		b.WriteString("\nA full-page screenshot of the site is attached.")
	}
	if page.Title != "" {
		fmt.Fprintf(b, "\nTitle: %s", page.Title)
	}
	if page.Excerpt != "" {
		fmt.Fprintf(b, "\nVisible text (markdown excerpt):\n%s", page.Excerpt)
	}
}
