package changeset

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines shown around each
// hunk, matching the conventional unified-diff default.
const contextLines = 3

type lineOp struct {
	kind diffmatchpatch.Operation
	text string
}

// unifiedDiff builds a standard unified diff between original and
// updated content for filePath, with `--- a/<path>` / `+++ b/<path>`
// headers and no trailing newline after the last hunk line (spec §6.4).
// An empty original represents a newly-created file (diff against "").
func unifiedDiff(filePath string, original, updated string) string {
	if original == updated {
		return ""
	}

	dmp := diffmatchpatch.New()

	chars1, chars2, lineArray := dmp.DiffLinesToRunes(original, updated)
	diffs := dmp.DiffMainRunes(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := flattenLineOps(diffs)
	hunks := buildHunks(ops)

	var b strings.Builder

	fmt.Fprintf(&b, "--- a/%s\n", filePath)
	fmt.Fprintf(&b, "+++ b/%s\n", filePath)

	for i, h := range hunks {
		b.WriteString(h.header())
		b.WriteByte('\n')

		for j, line := range h.lines {
			b.WriteString(line)

			if i == len(hunks)-1 && j == len(h.lines)-1 {
				continue // no trailing newline after the last hunk line.
			}

			b.WriteByte('\n')
		}
	}

	return b.String()
}

// flattenLineOps turns dmp's line-granularity Diff blocks into one
// line-op per line, so hunk construction can reason line-by-line.
func flattenLineOps(diffs []diffmatchpatch.Diff) []lineOp {
	var ops []lineOp

	for _, d := range diffs {
		if d.Text == "" {
			continue
		}

		text := strings.TrimSuffix(d.Text, "\n")

		for _, line := range strings.Split(text, "\n") {
			ops = append(ops, lineOp{kind: d.Type, text: line})
		}
	}

	return ops
}

type hunk struct {
	origStart, origCount int
	newStart, newCount   int
	lines                []string
}

func (h hunk) header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.origStart, h.origCount, h.newStart, h.newCount)
}

// buildHunks groups changed regions (plus contextLines of surrounding
// equal lines) into unified-diff hunks, merging hunks whose context
// windows overlap.
func buildHunks(ops []lineOp) []hunk {
	type marked struct {
		lineOp
		origLine, newLine int
		changed           bool
	}

	marks := make([]marked, len(ops))
	origLine, newLine := 1, 1

	for i, op := range ops {
		m := marked{lineOp: op, origLine: origLine, newLine: newLine, changed: op.kind != diffmatchpatch.DiffEqual}
		marks[i] = m

		switch op.kind {
		case diffmatchpatch.DiffEqual:
			origLine++
			newLine++
		case diffmatchpatch.DiffDelete:
			origLine++
		case diffmatchpatch.DiffInsert:
			newLine++
		}
	}

	var changedIdx []int

	for i, m := range marks {
		if m.changed {
			changedIdx = append(changedIdx, i)
		}
	}

	if len(changedIdx) == 0 {
		return nil
	}

	var ranges [][2]int

	start := changedIdx[0] - contextLines
	end := changedIdx[0] + contextLines

	for _, idx := range changedIdx[1:] {
		lo := idx - contextLines
		if lo <= end+1 {
			if idx+contextLines > end {
				end = idx + contextLines
			}

			continue
		}

		ranges = append(ranges, [2]int{start, end})
		start = lo
		end = idx + contextLines
	}

	ranges = append(ranges, [2]int{start, end})

	var hunks []hunk

	for _, r := range ranges {
		lo, hi := r[0], r[1]
		if lo < 0 {
			lo = 0
		}

		if hi >= len(marks) {
			hi = len(marks) - 1
		}

		h := hunk{origStart: marks[lo].origLine, newStart: marks[lo].newLine}

		for i := lo; i <= hi; i++ {
			m := marks[i]

			switch m.kind {
			case diffmatchpatch.DiffEqual:
				h.lines = append(h.lines, " "+m.text)
				h.origCount++
				h.newCount++
			case diffmatchpatch.DiffDelete:
				h.lines = append(h.lines, "-"+m.text)
				h.origCount++
			case diffmatchpatch.DiffInsert:
				h.lines = append(h.lines, "+"+m.text)
				h.newCount++
			}
		}

		hunks = append(hunks, h)
	}

	return hunks
}
