package extract

import (
	"sort"
	"strings"

	"github.com/resumelens/resumelens/internal/models"
)

// Canonical resume headings. The key is the normalized heading text, the
// value the section name we report.
var sectionHeadings = map[string]string{
	"summary":                 "summary",
	"professional summary":    "summary",
	"objective":               "summary",
	"profile":                 "summary",
	"about":                   "summary",
	"experience":              "experience",
	"work experience":         "experience",
	"professional experience": "experience",
	"employment":              "experience",
	"employment history":      "experience",
	"education":               "education",
	"academic background":     "education",
	"skills":                  "skills",
	"technical skills":        "skills",
	"core competencies":       "skills",
	"projects":                "projects",
	"certifications":          "certifications",
	"certificates":            "certifications",
	"licenses":                "certifications",
	"awards":                  "awards",
	"honors":                  "awards",
	"publications":            "publications",
	"languages":               "languages",
	"volunteering":            "volunteering",
	"volunteer experience":    "volunteering",
	"interests":               "interests",
	"references":              "references",
	"contact":                 "contact",
	"contact information":     "contact",
}

// headingsBySpecificity orders the known headings longest-first (ties broken
// alphabetically) so the prefix fallback always takes the most specific match
// instead of depending on map iteration order.
var headingsBySpecificity = func() []string {
	keys := make([]string, 0, len(sectionHeadings))
	for k := range sectionHeadings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

const maxHeadingLen = 40

// DetectSections scans normalized text for resume headings and returns an
// ordered structural overlay. Offsets are byte offsets into text; each
// section runs until the next detected heading or the end of the text.
// Finding nothing is a legitimate outcome, not a failure.
func DetectSections(text string) []models.Section {
	var sections []models.Section

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineLen := len(line)
		if name, confidence, ok := matchHeading(line); ok {
			if n := len(sections); n > 0 {
				sections[n-1].End = offset
			}
			sections = append(sections, models.Section{
				Name:       name,
				Start:      offset,
				Confidence: confidence,
			})
		}
		offset += lineLen + 1 // the newline
	}

	if n := len(sections); n > 0 {
		sections[n-1].End = len(text)
	}
	return sections
}

// matchHeading decides whether a single line reads like a section heading.
// Exact matches on a known heading score high; a known heading leading a
// short line ("Experience at Acme") scores lower.
func matchHeading(line string) (name string, confidence float64, ok bool) {
	candidate := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	if candidate == "" || len(candidate) > maxHeadingLen {
		return "", 0, false
	}
	lower := strings.ToLower(candidate)

	if name, ok := sectionHeadings[lower]; ok {
		return name, 0.9, true
	}
	for _, heading := range headingsBySpecificity {
		if strings.HasPrefix(lower, heading+" ") {
			return sectionHeadings[heading], 0.6, true
		}
	}
	return "", 0, false
}
