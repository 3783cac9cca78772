package ingestion

import (
	"regexp"
	"strings"
)

var (
	methodsHeadingRe = regexp.MustCompile(`(?im)^[ \t]*(?:\d+(?:\.\d+)*\.?[ \t]*)?(materials and methods|methods and materials|methods|study design|statistical analys[ie]s)[ \t]*:?[ \t]*$`)
	endHeadingRe     = regexp.MustCompile(`(?im)^[ \t]*(?:\d+(?:\.\d+)*\.?[ \t]*)?(results|discussion|conclusions?|references|acknowledge?ments)[ \t]*:?[ \t]*$`)

	methodsKeywords = []string{"materials and methods", "methods", "study design"}
	endKeywords     = []string{"results", "discussion", "conclusion", "references", "acknowledgements"}
)

// LocateMethods finds the Methods span of page-layout text. Stand-alone
// heading lines are preferred; otherwise the first keyword occurrence opens
// the span and the nearest following end keyword closes it.
func LocateMethods(text string) (start, end int, ok bool) {
	if loc := methodsHeadingRe.FindStringIndex(text); loc != nil {
		start = loc[0]
		end = len(text)
		if e := endHeadingRe.FindStringIndex(text[loc[1]:]); e != nil {
			end = loc[1] + e[0]
		}
		return start, end, true
	}

	lower := asciiLower(text)
	start = -1
	for _, kw := range methodsKeywords {
		if i := strings.Index(lower, kw); i >= 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, len(text), false
	}
	end = len(text)
	for _, kw := range endKeywords {
		if i := strings.Index(lower[start:], kw); i >= 0 && start+i < end {
			end = start + i
		}
	}
	return start, end, true
}

// ExtractMethods returns the Methods span of page-layout text, or the whole
// text when no Methods heading can be found.
func ExtractMethods(pageText string) string {
	start, end, _ := LocateMethods(pageText)
	return pageText[start:end]
}

// ParseLayoutText wraps ExtractMethods into a Document.
func ParseLayoutText(title, pageText string) *Document {
	start, end, ok := LocateMethods(pageText)
	sectionTitle := "Extracted Methods Section"
	if !ok {
		sectionTitle = "Full Text (Methods not isolated)"
	}
	return &Document{
		Title:    title,
		Format:   "text",
		Isolated: ok,
		Sections: []Section{{Kind: SectionMethods, Title: sectionTitle, Content: pageText[start:end]}},
	}
}

// asciiLower lowercases ASCII letters only, keeping byte offsets aligned
// with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
