package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reTagSeparators   = regexp.MustCompile(`[^0-9\p{L}]+`)
	reTrimUnderscores = regexp.MustCompile(`_+`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

func collapseUnderscores(s string) string {
	s = reTrimUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Line sanitizes single-line text such as a listing title or pickup address.
func Line(input string) string {
	return Pipeline{
		StripControl,
		TrimAndNormalize,
	}.Apply(input)
}

// Text sanitizes free text that may span several lines, such as a listing
// description or a direct message.
func Text(input string) string {
	return Pipeline{
		func(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") },
		stripControlKeepNewlines,
		trimLines,
		func(s string) string { return reBlankLines.ReplaceAllString(s, "\n\n") },
		strings.TrimSpace,
	}.Apply(input)
}

// Tag turns "Gluten Free" or "gluten-free" into "gluten_free".
func Tag(input string) string {
	return Pipeline{
		strings.TrimSpace,
		strings.ToLower,
		func(s string) string { return reTagSeparators.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}.Apply(input)
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = TrimAndNormalize(line)
	}
	return strings.Join(lines, "\n")
}
