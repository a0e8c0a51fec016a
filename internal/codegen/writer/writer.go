// Package writer builds indented Go source text.
package writer

import (
	"fmt"
	"strings"
)

// Writer accumulates source text with indentation tracking.
type Writer struct {
	sb           strings.Builder
	indentLevel  int
	indentString string
	linePrefix   string
	needsIndent  bool
}

// NewWriter creates a writer that indents with indentString.
func NewWriter(indentString string) *Writer {
	return &Writer{
		indentString: indentString,
		needsIndent:  true,
	}
}

// Fork returns an empty writer at the same indentation. Its output can be
// inspected before being added back with Append.
func (w *Writer) Fork() *Writer {
	f := NewWriter(w.indentString)
	f.indentLevel = w.indentLevel
	f.updatePrefix()
	return f
}

// Append copies the content of a forked writer verbatim.
func (w *Writer) Append(f *Writer) {
	if f.sb.Len() == 0 {
		return
	}
	w.sb.WriteString(f.sb.String())
	w.needsIndent = f.needsIndent
}

// Indent increases the indentation level.
func (w *Writer) Indent() {
	w.indentLevel++
	w.updatePrefix()
}

// Dedent decreases the indentation level.
func (w *Writer) Dedent() {
	if w.indentLevel > 0 {
		w.indentLevel--
		w.updatePrefix()
	}
}

// Write writes s without a newline.
func (w *Writer) Write(s string) {
	if w.needsIndent && s != "" {
		w.sb.WriteString(w.linePrefix)
		w.needsIndent = false
	}
	w.sb.WriteString(s)
}

// Writef writes a formatted string without a newline.
func (w *Writer) Writef(format string, args ...any) {
	w.Write(fmt.Sprintf(format, args...))
}

// WriteLine writes s followed by a newline.
func (w *Writer) WriteLine(s string) {
	w.Write(s)
	w.Newline()
}

// WriteLinef writes a formatted line.
func (w *Writer) WriteLinef(format string, args ...any) {
	w.Writef(format, args...)
	w.Newline()
}

// Newline ends the current line.
func (w *Writer) Newline() {
	w.sb.WriteString("\n")
	w.needsIndent = true
}

// BlankLine adds an empty line unless the previous line is already blank.
func (w *Writer) BlankLine() {
	if w.sb.Len() > 0 && !strings.HasSuffix(w.sb.String(), "\n\n") {
		w.Newline()
	}
}

// IndentLevel returns the current indentation level.
func (w *Writer) IndentLevel() int {
	return w.indentLevel
}

// String returns the accumulated text.
func (w *Writer) String() string {
	return w.sb.String()
}

// Bytes returns the accumulated text as bytes.
func (w *Writer) Bytes() []byte {
	return []byte(w.sb.String())
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.sb.Len()
}

// Reset clears content and indentation.
func (w *Writer) Reset() {
	w.sb.Reset()
	w.indentLevel = 0
	w.linePrefix = ""
	w.needsIndent = true
}

func (w *Writer) updatePrefix() {
	w.linePrefix = strings.Repeat(w.indentString, w.indentLevel)
}

// WriteBlock writes opener, the indented content, then closer.
//
//	w.WriteBlock("if ok {", "}", func() { w.WriteLine("return nil") })
func (w *Writer) WriteBlock(opener, closer string, content func()) {
	w.WriteLine(opener)
	w.Indent()
	content()
	w.Dedent()
	w.WriteLine(closer)
}

// Blockf writes a brace block whose opener is formatted; "{" is appended.
func (w *Writer) Blockf(content func(), format string, args ...any) {
	w.WriteBlock(fmt.Sprintf(format, args...)+" {", "}", content)
}

// WriteComment writes a single-line comment.
func (w *Writer) WriteComment(comment string) {
	w.WriteLinef("// %s", comment)
}

// WriteMultilineComment writes one comment line per entry.
func (w *Writer) WriteMultilineComment(lines []string) {
	for _, line := range lines {
		w.WriteComment(line)
	}
}

// WriteDocComment writes doc as a comment block; empty lines become "//".
func (w *Writer) WriteDocComment(doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			w.WriteLine("//")
			continue
		}
		w.WriteComment(line)
	}
}
