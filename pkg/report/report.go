// Package report renders pool layouts as aligned text tables.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/speakeasy-api/poolopt/slotreuse"
)

const (
	ansiBold   = "\x1b[1m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// Config controls rendering.
type Config struct {
	Color bool // emit ANSI escapes
}

var header = []string{"POOL", "SIZE", "USED", "OFFSET", "BYTES", "SLOTS"}

// numeric columns are right-aligned.
var numeric = []bool{false, true, true, true, true, false}

// Render formats the pool layout of res, one row per slot group, followed by
// the byte totals and any warnings.
func Render(res *slotreuse.Result, cfg Config) string {
	var b strings.Builder

	rows := [][]string{header}
	for _, p := range res.Pools {
		for i, g := range p.Groups {
			row := []string{"", "", "", strconv.FormatInt(g.Offset, 10), sizeCell(g.Footprint), strings.Join(g.Slots, ", ")}
			if i == 0 {
				row[0], row[1], row[2] = p.Name, sizeCell(p.Size), sizeCell(p.Used)
			}
			rows = append(rows, row)
		}
	}

	for i, line := range table(rows) {
		if i == 0 && cfg.Color {
			line = ansiBold + line + ansiReset
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	saved := fmt.Sprintf("saved %d", res.BytesBefore-res.BytesAfter)
	if cfg.Color && res.BytesAfter < res.BytesBefore {
		saved = ansiGreen + saved + ansiReset
	}
	fmt.Fprintf(&b, "total: %d -> %d bytes, %s (%d merges, %d compactions)\n",
		res.BytesBefore, res.BytesAfter, saved, res.Merges, res.Compactions)

	if len(res.Warnings) > 0 {
		title := "warnings:"
		if cfg.Color {
			title = ansiYellow + title + ansiReset
		}
		b.WriteString(title)
		b.WriteByte('\n')
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	return b.String()
}

func sizeCell(n int64) string {
	if n < 0 {
		return "?"
	}
	return strconv.FormatInt(n, 10)
}

// table pads every cell to its column's display width. The last column is
// left unpadded.
func table(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for c, cell := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			switch {
			case c == len(row)-1:
				b.WriteString(cell)
			case numeric[c]:
				b.WriteString(runewidth.FillLeft(cell, widths[c]))
			default:
				b.WriteString(runewidth.FillRight(cell, widths[c]))
			}
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return lines
}
