package inject

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Line is one line of a scenario file. EOL holds the terminator exactly as read ("\n",
// "\r\n" or "" for a final unterminated line) so that a parsed document serializes back
// byte for byte.
type Line struct {
	Text string
	EOL  string
}

// Document is an ordered, lossless view of a scenario file.
type Document struct {
	lines []Line
}

// Parse splits data into lines without normalizing anything.
func Parse(data []byte) *Document {
	var lines []Line
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, Line{Text: string(data)})
			break
		}
		text, eol := data[:i], "\n"
		if n := len(text); n > 0 && text[n-1] == '\r' {
			text, eol = text[:n-1], "\r\n"
		}
		lines = append(lines, Line{Text: string(text), EOL: eol})
		data = data[i+1:]
	}
	return &Document{lines: lines}
}

func (d *Document) Len() int {
	return len(d.lines)
}

// Line returns the line at index i.
func (d *Document) Line(i int) Line {
	return d.lines[i]
}

// Replace swaps the text of line i, keeping its terminator.
func (d *Document) Replace(i int, text string) error {
	if i < 0 || i >= len(d.lines) {
		return fmt.Errorf("line index %d out of range [0, %d)", i, len(d.lines))
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("replacement for line %d must be a single line", i+1)
	}
	d.lines[i].Text = text
	return nil
}

// WriteTo implements io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, l := range d.lines {
		n, err := io.WriteString(w, l.Text+l.EOL)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = d.WriteTo(&buf)
	return buf.Bytes()
}
