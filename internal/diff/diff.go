// Package diff computes line hunks between two versions of a region.
package diff

import (
	"fmt"
	"strings"
)

// LineType indicates the type of a diff line.
type LineType string

const (
	// LineContext is an unchanged line.
	LineContext LineType = " "

	// LineAdded is a line present only in the destination.
	LineAdded LineType = "+"

	// LineRemoved is a line present only in the source.
	LineRemoved LineType = "-"
)

// Line is a single line in a hunk.
type Line struct {
	Type    LineType
	Content string
}

// String returns the line with its diff prefix.
func (l Line) String() string {
	return string(l.Type) + l.Content
}

// Hunk is a contiguous block of changes.
type Hunk struct {
	SourceStart int
	SourceCount int
	TargetStart int
	TargetCount int
	Lines       []Line
}

// Header returns the unified-diff style hunk header.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.SourceStart, h.SourceCount, h.TargetStart, h.TargetCount)
}

// Strings computes hunks between source and target text, split into lines.
func Strings(source, target string) []Hunk {
	return Compute(strings.Split(source, "\n"), strings.Split(target, "\n"))
}

// Compute computes the hunks that turn source into target, guided by the
// longest common subsequence of lines.
func Compute(source, target []string) []Hunk {
	lcs := longestCommonSubsequence(source, target)

	var hunks []Hunk
	var current *Hunk

	sourceIdx, targetIdx, lcsIdx := 0, 0, 0

	for sourceIdx < len(source) || targetIdx < len(target) {
		inLCS := lcsIdx < len(lcs) &&
			sourceIdx < len(source) &&
			targetIdx < len(target) &&
			source[sourceIdx] == lcs[lcsIdx] &&
			target[targetIdx] == lcs[lcsIdx]

		if inLCS {
			if current != nil {
				current.Lines = append(current.Lines, Line{Type: LineContext, Content: source[sourceIdx]})
				hunks = append(hunks, *current)
				current = nil
			}
			sourceIdx++
			targetIdx++
			lcsIdx++
			continue
		}

		if current == nil {
			current = &Hunk{
				SourceStart: sourceIdx + 1,
				TargetStart: targetIdx + 1,
			}
		}

		if sourceIdx < len(source) && (lcsIdx >= len(lcs) || source[sourceIdx] != lcs[lcsIdx]) {
			current.Lines = append(current.Lines, Line{Type: LineRemoved, Content: source[sourceIdx]})
			current.SourceCount++
			sourceIdx++
		}

		if targetIdx < len(target) && (lcsIdx >= len(lcs) || target[targetIdx] != lcs[lcsIdx]) {
			current.Lines = append(current.Lines, Line{Type: LineAdded, Content: target[targetIdx]})
			current.TargetCount++
			targetIdx++
		}
	}

	if current != nil {
		hunks = append(hunks, *current)
	}

	return hunks
}

// Summary returns "N hunk(s), +A/-R lines".
func Summary(hunks []Hunk) string {
	added, removed := 0, 0
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return fmt.Sprintf("%d hunk(s), +%d/-%d lines", len(hunks), added, removed)
}

func longestCommonSubsequence(source, target []string) []string {
	m, n := len(source), len(target)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if source[i-1] == target[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	lcs := make([]string, dp[m][n])
	i, j, idx := m, n, dp[m][n]-1

	for i > 0 && j > 0 {
		if source[i-1] == target[j-1] {
			lcs[idx] = source[i-1]
			i--
			j--
			idx--
		} else if dp[i-1][j] > dp[i][j-1] {
			i--
		} else {
			j--
		}
	}

	return lcs
}
