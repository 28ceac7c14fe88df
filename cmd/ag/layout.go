package main

import (
	"strings"

	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/model"
)

// document is the rules text laid out as terminal rows. Geometry is measured
// in rows, so a frame's viewport height is the number of visible rows.
type document struct {
	lines []string
	spans []span
}

// span is the half-open row range [start, end) a section occupies.
type span struct {
	id         string
	start, end int
}

// layoutDocument wraps every section to width columns and records where
// each one starts and ends. A trailing spacer of pad blank rows lets the
// last section scroll far enough up to count as read.
func layoutDocument(sections []model.Section, width, pad int) document {
	var d document
	for _, s := range sections {
		start := len(d.lines)
		d.lines = append(d.lines, strings.ToUpper(s.Title), "")
		d.lines = append(d.lines, wrapText(s.Body, width)...)
		d.lines = append(d.lines, "")
		d.spans = append(d.spans, span{id: s.ID, start: start, end: len(d.lines)})
	}
	for range pad {
		d.lines = append(d.lines, "")
	}
	return d
}

// maxOffset is the furthest the document can scroll with height visible rows.
func (d document) maxOffset(height int) int {
	return max(len(d.lines)-height, 0)
}

// view returns the rows visible at offset.
func (d document) view(offset, height int) []string {
	end := min(offset+height, len(d.lines))
	if offset >= end {
		return nil
	}
	return d.lines[offset:end]
}

// frame measures every section against a viewport of height rows scrolled
// to offset.
func (d document) frame(offset, height int) gate.Frame {
	f := gate.Frame{ViewportHeight: float64(height)}
	for _, s := range d.spans {
		f.Sections = append(f.Sections, gate.SectionBounds{
			ID: s.id,
			Bounds: gate.Bounds{
				Top:    float64(s.start - offset),
				Bottom: float64(s.end - offset),
			},
		})
	}
	return f
}

// wrapText breaks s into lines of at most width columns on word boundaries.
// Words longer than width are placed on their own line.
func wrapText(s string, width int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
