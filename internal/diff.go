package internal

import (
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineDiff renders a line-oriented diff of a and b. Unchanged lines are
// prefixed with two spaces, removed lines with "- " and added ones with
// "+ ". Identical inputs yield an empty string.
func LineDiff(a, b string) string {
	if a == b {
		return ""
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(strings.TrimSuffix(line, "\n"))
			out.WriteString("\n")
		}
	}
	return out.String()
}

// DiffRecords diffs the indented JSON form of two memory records.
func DiffRecords(a, b *MemoryRecord) (string, error) {
	left, err := json.MarshalIndent(orEmptyRecord(a), "", "  ")
	if err != nil {
		return "", err
	}
	right, err := json.MarshalIndent(orEmptyRecord(b), "", "  ")
	if err != nil {
		return "", err
	}
	return LineDiff(string(left)+"\n", string(right)+"\n"), nil
}

func orEmptyRecord(r *MemoryRecord) *MemoryRecord {
	if r == nil {
		return NewMemoryRecord()
	}
	return r
}
