package roster

import (
	"bytes"
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aura-webinar/portal/internal/models"
)

var (
	validate = validator.New()

	emailHeaders = map[string]bool{
		"email":         true,
		"e-mail":        true,
		"email address": true,
		"emailaddress":  true,
	}

	looseEmail = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return s != "" && validate.Var(s, "email") == nil
}

// ParseEmails extracts unique, lower-cased, valid emails from a roster file.
// The file may be comma, semicolon or tab separated, with or without a header row.
// When no email column yields an address, any email-looking strings in the file are used.
func ParseEmails(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content := string(bytes.TrimPrefix(raw, []byte("\ufeff")))
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return []string{}, nil
	}

	delim := sniffDelimiter(lines[0])
	header := splitLine(lines[0], delim)

	col := -1
	for i, h := range header {
		if emailHeaders[strings.ToLower(h)] {
			col = i
			break
		}
	}
	skipHeader := true
	if col < 0 && len(lines) > 1 {
		col = indexWithAt(splitLine(lines[1], delim))
	}
	if col < 0 {
		col = indexWithAt(header)
	}
	if col >= 0 && col < len(header) && strings.Contains(header[col], "@") {
		skipHeader = false
	}

	var emails []string
	if col >= 0 {
		start := 0
		if skipHeader {
			start = 1
		}
		var found []string
		for _, line := range lines[start:] {
			cells := splitLine(line, delim)
			if col < len(cells) {
				found = append(found, cells[col])
			}
		}
		emails = dedupe(found)
	}
	if len(emails) == 0 {
		emails = dedupe(looseEmail.FindAllString(content, -1))
	}
	return emails, nil
}

func sniffDelimiter(line string) rune {
	switch {
	case strings.ContainsRune(line, ','):
		return ','
	case strings.ContainsRune(line, ';'):
		return ';'
	default:
		return '\t'
	}
}

// splitLine parses one line, honouring double quotes. Cells are trimmed.
func splitLine(line string, delim rune) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cells, err := cr.Read()
	if err != nil {
		cells = strings.Split(line, string(delim))
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func indexWithAt(cells []string) int {
	for i, c := range cells {
		if strings.Contains(c, "@") {
			return i
		}
	}
	return -1
}

// dedupe normalises, validates and de-duplicates emails, keeping first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = models.NormalizeEmail(e)
		if seen[e] || !ValidEmail(e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
