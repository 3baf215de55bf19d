package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySupports(t *testing.T) {
	registry := NewRegistry()

	for _, ext := range []string{".txt", ".md", ".pdf", ".docx", ".html", ".csv"} {
		assert.True(t, registry.Supports(ext), ext)
	}
	assert.True(t, registry.Supports(".TXT"), "case insensitive")
	assert.False(t, registry.Supports(".exe"))
}

func TestParseReaderUnsupportedFormat(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ParseReader(".exe", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseReaderEmptyDocument(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ParseReader(".txt", strings.NewReader("   \n  "))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestTextParserRecoversNonUTF8(t *testing.T) {
	parser := NewTextParser()

	// Latin-1でエンコードされた "café"
	text, err := parser.Parse(bytes.NewReader([]byte{'c', 'a', 'f', 0xe9}))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestDocxParserExtractsParagraphs(t *testing.T) {
	documentXML := `<?xml version="1.0"?>
		<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
		<w:body>
			<w:p ><w:r><w:t>First paragraph.</w:t></w:r></w:p>
			<w:p ><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph &amp; more.</w:t></w:r></w:p>
		</w:body>
		</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	parser := NewDocxParser()
	text, err := parser.Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph & more.", text)
}

func TestDocxParserRejectsNonArchive(t *testing.T) {
	parser := NewDocxParser()
	_, err := parser.Parse(strings.NewReader("not a zip"))
	assert.Error(t, err)
}

func TestHTMLParserStripsMarkup(t *testing.T) {
	doc := `<html><head><title>t</title><style>body{color:red}</style></head>
		<body><h1>Heading</h1><p>Hello &amp; <b>world</b>.</p>
		<script>alert("x")</script></body></html>`

	parser := NewHTMLParser()
	text, err := parser.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "Hello & world .")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestCSVParserRendersRows(t *testing.T) {
	csvData := "name,age\nalice,30\nbob,25\n"

	parser := NewCSVParser()
	text, err := parser.Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Contains(t, text, "Columns: name, age")
	assert.Contains(t, text, "name: alice")
	assert.Contains(t, text, "age: 25")
}

func TestCSVParserCapsRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id\n")
	for i := 0; i < maxCSVRows+50; i++ {
		sb.WriteString("row\n")
	}

	parser := NewCSVParser()
	text, err := parser.Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, maxCSVRows, strings.Count(text, "id: row"))
}

func TestDirLoaderHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("ignored.txt\nbuild/\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "binary.exe"), []byte{0x1}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "out.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte("doc"), 0o644))

	loader := NewDirLoader(NewRegistry())
	files, err := loader.ListFiles(root)
	require.NoError(t, err)

	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, r)
	}
	assert.ElementsMatch(t, []string{"keep.txt", filepath.Join("docs", "guide.md")}, rel)
}

func TestDirLoaderRejectsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	loader := NewDirLoader(NewRegistry())
	_, err := loader.ListFiles(path)
	assert.Error(t, err)
}
