// Package pdftext pulls plain text out of papers and finds the sentences
// that cite each numbered bibliography entry.
package pdftext

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DOI pattern: 10.XXXX/... where XXXX is 4+ digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// doiPages is how many leading pages are searched for the paper's DOI.
const doiPages = 3

// ResolvePath makes a relative path absolute against root and checks the
// file exists. Absolute paths and an empty root leave path as is.
func ResolvePath(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no PDF path specified")
	}
	if root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("PDF not found: %s", path)
	}
	return path, nil
}

// ReadPages returns the plain text of every page. Pages that fail to
// decode come back empty.
func ReadPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

// ExtractFile reads a PDF and parses its citation contexts.
func ExtractFile(path string) (*Document, error) {
	pages, err := ReadPages(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(strings.Join(pages, "\n"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(pages) > 0 {
		doc.Title = findTitle(pages[0])
	}
	doc.DOI = findDOI(strings.Join(pages[:min(doiPages, len(pages))], "\n"))
	return doc, nil
}

// findDOI finds a DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return strings.ToLower(match)
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// findTitle returns the first substantial line of the first page.
func findTitle(firstPage string) string {
	for _, line := range strings.Split(firstPage, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a header/footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"),
		strings.Contains(lower, "copyright"),
		strings.Contains(lower, "arxiv:"),
		strings.Contains(lower, "volume") && strings.Contains(lower, "issue"),
		strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
