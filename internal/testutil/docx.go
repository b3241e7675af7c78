package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
)

const (
	wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	relNS  = "http://schemas.openxmlformats.org/package/2006/relationships"
	relDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relSty = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
)

// NewDocx 构造最小的 docx 包，每个参数一个段落
// withStyles 为 false 时不包含 word/styles.xml（OOXML 允许缺省）
func NewDocx(t *testing.T, withStyles bool, paragraphs ...string) []byte {
	t.Helper()

	var contentTypes strings.Builder
	contentTypes.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	contentTypes.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	contentTypes.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	contentTypes.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	contentTypes.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	if withStyles {
		contentTypes.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	}
	contentTypes.WriteString(`</Types>`)

	docRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="` + relNS + `">`
	if withStyles {
		docRels += `<Relationship Id="rId1" Type="` + relSty + `" Target="styles.xml"/>`
	}
	docRels += `</Relationships>`

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="` + wordNS + `"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&body, []byte(p)); err != nil {
			t.Fatalf("escape paragraph: %v", err)
		}
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes.String()},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="` + relNS + `"><Relationship Id="rId1" Type="` + relDoc + `" Target="word/document.xml"/></Relationships>`},
		{"word/_rels/document.xml.rels", docRels},
		{"word/document.xml", body.String()},
	}
	if withStyles {
		parts = append(parts, struct{ name, body string }{
			"word/styles.xml",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:styles xmlns:w="` + wordNS + `">` +
				`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`,
		})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			t.Fatalf("create %s: %v", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			t.Fatalf("write %s: %v", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}
