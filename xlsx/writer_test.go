package xlsx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLWriterDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)

	require.NoError(t, w.WriteDeclaration())
	require.NoError(t, w.StartElement("root"))
	require.NoError(t, w.AddAttribute("xmlns", "urn:test"))
	require.NoError(t, w.StartElement("item"))
	require.NoError(t, w.AddAttribute("id", "1"))
	require.NoError(t, w.WriteText("value"))
	require.NoError(t, w.EndElement("item"))
	require.NoError(t, w.StartElement("empty"))
	require.NoError(t, w.EndElement("empty"))
	require.NoError(t, w.EndElement("root"))
	require.NoError(t, w.Finish())

	want := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<root xmlns="urn:test"><item id="1">value</item><empty/></root>`
	assert.Equal(t, want, buf.String())
}

func TestXMLWriterSelfClosing(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)
	require.NoError(t, w.StartElement("a"))
	require.NoError(t, w.AddAttribute("b", "c"))
	require.NoError(t, w.EndElement("a"))
	require.NoError(t, w.Finish())
	assert.Equal(t, `<a b="c"/>`, buf.String())
}

func TestXMLWriterEscaping(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)
	require.NoError(t, w.StartElement("t"))
	require.NoError(t, w.AddAttribute("a", `"<&>"`))
	require.NoError(t, w.WriteText("a < b & 'c'"))
	require.NoError(t, w.EndElement("t"))
	require.NoError(t, w.Finish())
	assert.Equal(t, `<t a="&quot;&lt;&amp;&gt;&quot;">a &lt; b &amp; &apos;c&apos;</t>`, buf.String())
}

func TestXMLWriterRawText(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)
	require.NoError(t, w.StartElement("t"))
	require.NoError(t, w.WriteRawText("<b/>"))
	require.NoError(t, w.EndElement("t"))
	require.NoError(t, w.Finish())
	assert.Equal(t, `<t><b/></t>`, buf.String())
}

func TestXMLWriterMismatchedEnd(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)
	require.NoError(t, w.StartElement("a"))
	require.NoError(t, w.StartElement("b"))

	err := w.EndElement("a")
	require.Error(t, err)
	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Contains(t, err.Error(), "element mismatch")

	// The error is sticky: every later call reports it and nothing more
	// is appended.
	assert.Same(t, err, w.StartElement("c"))
	assert.Same(t, err, w.WriteText("x"))
	assert.Same(t, err, w.Finish())
	assert.Empty(t, buf.String())
}

func TestXMLWriterAttributeOutsideStartTag(t *testing.T) {
	w := NewXMLWriter(io.Discard, 0)
	require.NoError(t, w.StartElement("a"))
	require.NoError(t, w.WriteText("text"))
	err := w.AddAttribute("late", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside a start tag")
}

func TestXMLWriterFinishWithOpenElements(t *testing.T) {
	w := NewXMLWriter(io.Discard, 0)
	require.NoError(t, w.StartElement("a"))
	require.NoError(t, w.StartElement("b"))
	err := w.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<b>")
}

func TestXMLWriterMisuseErrors(t *testing.T) {
	w := NewXMLWriter(io.Discard, 0)
	assert.Error(t, w.WriteText("orphan"))

	w = NewXMLWriter(io.Discard, 0)
	require.NoError(t, w.StartElement("a"))
	assert.Error(t, w.WriteDeclaration())

	w = NewXMLWriter(io.Discard, 0)
	assert.Error(t, w.EndElement("never"))
}

// writeCounter counts Write calls to observe flushing behavior.
type writeCounter struct {
	buf    bytes.Buffer
	writes int
}

func (c *writeCounter) Write(p []byte) (int, error) {
	c.writes++
	return c.buf.Write(p)
}

func TestXMLWriterBuffering(t *testing.T) {
	var sink writeCounter
	w := NewXMLWriter(&sink, 16)

	require.NoError(t, w.StartElement("root"))
	assert.Equal(t, 0, sink.writes, "small output stays buffered")

	for i := 0; i < 20; i++ {
		require.NoError(t, w.StartElement("x"))
		require.NoError(t, w.EndElement("x"))
	}
	require.NoError(t, w.EndElement("root"))
	require.NoError(t, w.Finish())

	assert.Greater(t, sink.writes, 1, "output larger than the buffer flushes in chunks")
	assert.True(t, bytes.HasPrefix(sink.buf.Bytes(), []byte("<root>")))
	assert.True(t, bytes.HasSuffix(sink.buf.Bytes(), []byte("</root>")))
}

func TestXMLWriterOutputReparses(t *testing.T) {
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, 0)
	require.NoError(t, w.WriteDeclaration())
	require.NoError(t, w.StartElement("doc"))
	require.NoError(t, w.AddAttribute("v", "1 & 2"))
	require.NoError(t, w.StartElement("leaf"))
	require.NoError(t, w.WriteText("<escaped>"))
	require.NoError(t, w.EndElement("leaf"))
	require.NoError(t, w.EndElement("doc"))
	require.NoError(t, w.Finish())

	dec := xml.NewDecoder(bytes.NewReader(buf.Bytes()))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
}
