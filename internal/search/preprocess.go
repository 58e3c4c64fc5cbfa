package search

import (
	"bufio"
	"strings"
)

// Facts splits OCR markdown into standalone facts: one per non-empty line,
// with table rows flattened into space-joined cells and separator rows
// dropped. Headings lose their leading '#'.
func Facts(md string) []string {
	sc := bufio.NewScanner(strings.NewReader(md))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "text") || strings.HasPrefix(s, "--- Page ") {
			return
		}
		out = append(out, s)
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				if strings.Trim(cell, ":- ") != "" {
					allSep = false
				}
			}
			if allSep {
				continue
			}
			add(strings.Join(cleaned, " "))
			continue
		}

		add(strings.TrimLeft(line, "# "))
	}
	return out
}
