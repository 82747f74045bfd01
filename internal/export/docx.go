package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"inkwell/api/internal/store"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// exportDOCX builds a minimal WordprocessingML package: a heading run for
// the title, an italic run for the excerpt, then one paragraph per block of
// content.
func exportDOCX(item store.Article, author string) (Result, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	writeParagraph(&doc, item.Title, `<w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`, `<w:rPr><w:b/><w:sz w:val="40"/></w:rPr>`)
	if item.Excerpt != "" {
		writeParagraph(&doc, item.Excerpt, "", `<w:rPr><w:i/></w:rPr>`)
	}
	writeParagraph(&doc, fmt.Sprintf("%s | %s", author, item.UpdatedAt.Format("Jan 2, 2006")), "", `<w:rPr><w:color w:val="666666"/></w:rPr>`)

	for _, para := range strings.Split(strings.ReplaceAll(item.Content, "\r\n", "\n"), "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		writeParagraph(&doc, strings.ReplaceAll(trimmed, "\n", " "), "", "")
	}

	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", doc.String()},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return Result{}, fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize docx: %w", err)
	}

	return Result{
		Data:        buf.Bytes(),
		FileName:    sanitizeFilename(item.Title) + ".docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}, nil
}

func writeParagraph(b *strings.Builder, text, paraProps, runProps string) {
	b.WriteString("<w:p>")
	b.WriteString(paraProps)
	b.WriteString("<w:r>")
	b.WriteString(runProps)
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(&xmlWriter{b}, []byte(text))
	b.WriteString("</w:t></w:r></w:p>")
}

type xmlWriter struct {
	b *strings.Builder
}

func (w *xmlWriter) Write(p []byte) (int, error) {
	return w.b.Write(p)
}
