// Package inject rewrites the IFC placeholder line of a scenario file so that it points at
// the model under test.
//
// A placeholder is the first line containing both "* The IFC file" and "must be provided".
// The first double-quoted token on that line is the default file name. Only that one line
// is rewritten; every other line, including later lines that also look like placeholders,
// is written back unchanged.
package inject

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	MarkerStart = "* The IFC file"
	MarkerEnd   = "must be provided"

	lineTemplate = ` * The IFC file "%s" must be provided`
)

// ErrInjectionSkipped is returned when a file has no usable placeholder line. It is not
// fatal for a run.
var ErrInjectionSkipped = errors.New("IFC placeholder line not found")

// Placeholder is the located placeholder line of a document.
type Placeholder struct {
	Index   int
	Text    string
	Default string
}

// IsPlaceholder reports whether text carries both placeholder markers.
func IsPlaceholder(text string) bool {
	return strings.Contains(text, MarkerStart) && strings.Contains(text, MarkerEnd)
}

// FindPlaceholder returns the first placeholder line of the document.
func (d *Document) FindPlaceholder() (Placeholder, bool) {
	for i, l := range d.lines {
		if IsPlaceholder(l.Text) {
			return Placeholder{Index: i, Text: l.Text, Default: quotedToken(l.Text)}, true
		}
	}
	return Placeholder{}, false
}

// quotedToken returns the text between the first pair of double quotes. An unclosed quote
// runs to the end of the line.
func quotedToken(text string) string {
	parts := strings.SplitN(text, `"`, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ReplacementLine renders the placeholder line for the given model path.
func ReplacementLine(ifcPath string) string {
	return fmt.Sprintf(lineTemplate, ifcPath)
}

// Result describes one successful injection.
type Result struct {
	File     string
	Filename string // file name that was injected, explicit or the placeholder default
	Target   string // full path written into the placeholder line
	Line     int    // 1-based
}

// Inject rewrites file on the local filesystem. See InjectFs.
func Inject(file, ifcDir, ifcFilename string) (Result, error) {
	return InjectFs(afero.NewOsFs(), file, ifcDir, ifcFilename)
}

// InjectFs rewrites the placeholder line of file in place to reference ifcDir joined with
// the model file name. An explicit ifcFilename wins; otherwise the base name of the
// placeholder's quoted default is used. A file without a placeholder is left untouched
// and ErrInjectionSkipped is returned.
func InjectFs(fs afero.Fs, file, ifcDir, ifcFilename string) (Result, error) {
	info, err := fs.Stat(file)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat scenario file %s: %w", file, err)
	}
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read scenario file %s: %w", file, err)
	}

	doc := Parse(data)
	ph, ok := doc.FindPlaceholder()
	if !ok {
		return Result{}, fmt.Errorf("%w in %s", ErrInjectionSkipped, file)
	}

	filename := ifcFilename
	if filename == "" {
		if ph.Default == "" {
			return Result{}, fmt.Errorf("%w in %s: line %d has no quoted file name", ErrInjectionSkipped, file, ph.Index+1)
		}
		filename = filepath.Base(ph.Default)
	}
	target := filepath.Join(ifcDir, filename)

	if err := doc.Replace(ph.Index, ReplacementLine(target)); err != nil {
		return Result{}, fmt.Errorf("failed to rewrite %s: %w", file, err)
	}
	if err := afero.WriteFile(fs, file, doc.Bytes(), info.Mode().Perm()); err != nil {
		return Result{}, fmt.Errorf("failed to write scenario file %s: %w", file, err)
	}

	return Result{
		File:     file,
		Filename: filename,
		Target:   target,
		Line:     ph.Index + 1,
	}, nil
}
