package main

import (
	"os"
	"sort"
	"strings"
)

// Change is one text replacement. Start and End are byte offsets into the
// original content; an insertion has Start == End.
type Change struct {
	Start int32
	End   int32
	Text  string
}

// ApplyFileChanges applies changes grouped by file path, reading each file,
// filtering overlapping edits and writing the result back.
func ApplyFileChanges(changesByFile map[string][]Change) error {
	for filePath, changes := range changesByFile {
		if err := applyChangesToFile(filePath, changes); err != nil {
			return err
		}
	}
	return nil
}

func applyChangesToFile(filePath string, changes []Change) error {
	osPath := DenormalizePathForOS(filePath)
	content, err := os.ReadFile(osPath)
	if err != nil {
		return err
	}
	newContent := ApplyChangesToContent(string(content), changes)
	if newContent == string(content) {
		return nil
	}
	return os.WriteFile(osPath, []byte(newContent), 0644)
}

// ApplyChangesToContent applies the non-overlapping subset of changes.
// When two changes overlap, the one spanning more bytes wins.
func ApplyChangesToContent(content string, changes []Change) string {
	if len(changes) == 0 {
		return content
	}

	// Length descending, then start ascending for determinism.
	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool {
		lenI := sorted[i].End - sorted[i].Start
		lenJ := sorted[j].End - sorted[j].Start
		if lenI != lenJ {
			return lenI > lenJ
		}
		return sorted[i].Start < sorted[j].Start
	})

	var picked []Change
	for _, c := range sorted {
		overlaps := false
		for _, p := range picked {
			if c.Start < p.End && p.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			picked = append(picked, c)
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		return picked[i].Start < picked[j].Start
	})

	var builder strings.Builder
	lastPos := int32(0)
	for _, c := range picked {
		if c.Start < 0 || c.End < c.Start || int(c.Start) > len(content) {
			continue
		}
		if c.Start > lastPos {
			builder.WriteString(content[lastPos:c.Start])
		}
		builder.WriteString(c.Text)
		lastPos = c.End
	}
	if int(lastPos) < len(content) {
		builder.WriteString(content[lastPos:])
	}
	return builder.String()
}
