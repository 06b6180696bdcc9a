package ingestion

import "strings"

// BuildPageWindow assembles the persisted text for page i of a document: the
// tail of the previous page, a summary block for images anchored to this page,
// the page's own text, and the head of the next page. The window argument is
// the number of characters of neighboring context taken from each side.
func BuildPageWindow(pages []string, i int, imageSummaries []string, window int) string {
	var b strings.Builder
	if i > 0 {
		b.WriteString(lastRunes(pages[i-1], window))
	}
	if len(imageSummaries) > 0 {
		b.WriteString("\n\nImages on this page:\n")
		b.WriteString(strings.Join(imageSummaries, "\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(pages[i])
	if i < len(pages)-1 {
		b.WriteString(firstRunes(pages[i+1], window))
	}
	return b.String()
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
