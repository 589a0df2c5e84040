package xlsx

import (
	"bytes"
	"io"
	"strings"
)

// DefaultWriterBuffer is the flush threshold used when the caller
// configures none.
const DefaultWriterBuffer = 64 * 1024

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXMLText escapes the five XML special characters.
func escapeXMLText(s string) string {
	return xmlEscaper.Replace(s)
}

// elementFrame tracks one open element: its name and whether anything was
// written inside it, which decides between a self-closing and a full
// closing tag.
type elementFrame struct {
	name    string
	content bool
}

// XMLWriter emits well-formed XML incrementally. Writes accumulate in an
// internal buffer; once it exceeds the configured capacity, or on Flush
// or Finish, the buffer goes to the sink in one operation, bounding
// memory to roughly one buffer regardless of output size.
//
// Usage errors (a mismatched EndElement, an attribute outside its legal
// window, finishing with open elements) fail immediately with a
// WriteError and are sticky: after the first one the writer appends no
// further output. The writer owns its sink for one write session.
type XMLWriter struct {
	sink  io.Writer
	buf   bytes.Buffer
	limit int
	stack []elementFrame
	open  bool // start tag emitted but not yet closed with '>'
	err   error
}

// NewXMLWriter creates a writer flushing to sink whenever the internal
// buffer exceeds bufferSize bytes. A bufferSize of zero or less means
// DefaultWriterBuffer.
func NewXMLWriter(sink io.Writer, bufferSize int) *XMLWriter {
	if bufferSize <= 0 {
		bufferSize = DefaultWriterBuffer
	}
	return &XMLWriter{sink: sink, limit: bufferSize}
}

// Err returns the sticky error, if any.
func (w *XMLWriter) Err() error {
	return w.err
}

func (w *XMLWriter) fail(op, format string, args ...interface{}) error {
	w.err = NewWriteError(op, format, args...)
	return w.err
}

// closePending terminates a still-open start tag with '>'.
func (w *XMLWriter) closePending() {
	if w.open {
		w.buf.WriteByte('>')
		w.open = false
	}
}

func (w *XMLWriter) markContent() {
	if len(w.stack) > 0 {
		w.stack[len(w.stack)-1].content = true
	}
}

// WriteDeclaration emits the XML declaration. Legal only before the first
// element.
func (w *XMLWriter) WriteDeclaration() error {
	if w.err != nil {
		return w.err
	}
	if len(w.stack) > 0 || w.open {
		return w.fail("WriteDeclaration", "declaration after first element")
	}
	w.buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	return w.spill()
}

// StartElement opens a tag and pushes it on the element stack.
func (w *XMLWriter) StartElement(name string) error {
	if w.err != nil {
		return w.err
	}
	w.closePending()
	w.markContent()
	w.stack = append(w.stack, elementFrame{name: name})
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	w.open = true
	return w.spill()
}

// AddAttribute adds an attribute to the current element. It is legal only
// immediately after StartElement, before any text or child element.
func (w *XMLWriter) AddAttribute(name, value string) error {
	if w.err != nil {
		return w.err
	}
	if !w.open {
		return w.fail("AddAttribute", "attribute %q outside a start tag", name)
	}
	w.buf.WriteByte(' ')
	w.buf.WriteString(name)
	w.buf.WriteString(`="`)
	w.buf.WriteString(escapeXMLText(value))
	w.buf.WriteByte('"')
	return w.spill()
}

// WriteText writes character data inside the current element, escaping
// the XML special characters.
func (w *XMLWriter) WriteText(value string) error {
	return w.writeText(value, true)
}

// WriteRawText writes character data with escaping suppressed. The caller
// vouches for well-formedness.
func (w *XMLWriter) WriteRawText(value string) error {
	return w.writeText(value, false)
}

func (w *XMLWriter) writeText(value string, escape bool) error {
	if w.err != nil {
		return w.err
	}
	if len(w.stack) == 0 {
		return w.fail("WriteText", "text outside any element")
	}
	w.closePending()
	w.markContent()
	if escape {
		w.buf.WriteString(escapeXMLText(value))
	} else {
		w.buf.WriteString(value)
	}
	return w.spill()
}

// EndElement closes the current element. The name must match the top of
// the element stack; a mismatch is caller misuse and fails immediately.
// An element with no content closes as a self-closing tag.
func (w *XMLWriter) EndElement(name string) error {
	if w.err != nil {
		return w.err
	}
	if len(w.stack) == 0 {
		return w.fail("EndElement", "no open element for </%s>", name)
	}
	top := w.stack[len(w.stack)-1]
	if top.name != name {
		return w.fail("EndElement", "element mismatch: have <%s>, got </%s>", top.name, name)
	}
	w.stack = w.stack[:len(w.stack)-1]
	if w.open && !top.content {
		w.buf.WriteString("/>")
		w.open = false
	} else {
		w.closePending()
		w.buf.WriteString("</")
		w.buf.WriteString(name)
		w.buf.WriteByte('>')
	}
	return w.spill()
}

// spill flushes once the buffer has outgrown its capacity.
func (w *XMLWriter) spill() error {
	if w.buf.Len() <= w.limit {
		return nil
	}
	return w.Flush()
}

// Flush writes the buffered output to the sink in one operation.
func (w *XMLWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.sink.Write(w.buf.Bytes()); err != nil {
		w.err = err
		return err
	}
	w.buf.Reset()
	return nil
}

// Finish flushes all remaining output. A non-empty element stack
// indicates caller misuse; Finish fails rather than emit invalid XML.
func (w *XMLWriter) Finish() error {
	if w.err != nil {
		return w.err
	}
	if len(w.stack) > 0 {
		return w.fail("Finish", "%d element(s) still open, innermost <%s>",
			len(w.stack), w.stack[len(w.stack)-1].name)
	}
	return w.Flush()
}
