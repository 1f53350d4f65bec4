package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParser_StripsMarkup(t *testing.T) {
	src := "# Guide\n\nSome **bold** and *italic* text with a [link](http://x).\n\n```go\nfmt.Println(1)\n```\n"
	res, err := (&MarkdownParser{}).Parse(strings.NewReader(src), "guide.md")
	require.NoError(t, err)

	assert.Equal(t, "Guide", res.Metadata["title"])
	assert.Contains(t, res.Content, "Some bold and italic text with a link.")
	assert.Contains(t, res.Content, "fmt.Println(1)")
	assert.NotContains(t, res.Content, "```")
	assert.Equal(t, 1, res.PageCount())
}

func TestDocxText(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Bonjour</w:t></w:r><w:r><w:tab/><w:t>le monde</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p><w:p></w:p></w:body></w:document>`
	assert.Equal(t, "Bonjour\tle monde\nFish & chips", docxText(xml))
}

func TestParserRegistry(t *testing.T) {
	r := NewParserRegistry()

	for _, name := range []string{"a.pdf", "b.DOCX", "c.md", "d.txt"} {
		_, err := r.Get(name)
		assert.NoError(t, err, name)
	}

	_, err := r.Get("image.png")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	_, err = r.Get("noext")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	res, err := r.Parse(strings.NewReader("  plain words  "), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain words", res.Content)
	assert.Equal(t, []string{"plain words"}, res.Pages)

	_, err = r.Parse(strings.NewReader(" \n "), "empty.txt")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	assert.Contains(t, r.SupportedTypes(), ".pdf")
}

func TestPDFParser_RejectsGarbage(t *testing.T) {
	_, err := (&PDFParser{}).Parse(strings.NewReader("not a pdf"), "x.pdf")
	assert.Error(t, err)
}
