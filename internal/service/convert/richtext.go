package convert

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	bodyFontSize = 11.0
	codeFontSize = 9.5
	pageMargin   = 15.0
	indentStep   = 6.0
)

var headingSizes = map[int]float64{1: 20, 2: 16, 3: 14, 4: 12, 5: 11, 6: 11}

// RenderMarkdown 把 Markdown 渲染为带格式的 PDF
// 支持标题、强调、列表、代码和引用
func RenderMarkdown(markdown string) ([]byte, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("no text content")
	}

	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	r := &richText{pdf: pdf, src: src, size: bodyFontSize}
	r.blocks(doc)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// richText 渲染状态
type richText struct {
	pdf    *fpdf.Fpdf
	src    []byte
	size   float64
	bold   int
	italic int
	code   int
	indent float64
}

func (r *richText) lineHeight() float64 {
	return r.size * 0.5
}

func (r *richText) applyFont() {
	family, size := "Helvetica", r.size
	if r.code > 0 {
		family, size = "Courier", codeFontSize
	}
	style := ""
	if r.bold > 0 {
		style += "B"
	}
	if r.italic > 0 {
		style += "I"
	}
	r.pdf.SetFont(family, style, size)
}

func (r *richText) write(s string) {
	if s == "" {
		return
	}
	r.applyFont()
	r.pdf.Write(r.lineHeight(), Normalize(s))
}

func (r *richText) setIndent(delta float64) {
	r.indent += delta
	r.pdf.SetLeftMargin(pageMargin + r.indent)
}

func (r *richText) blocks(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c)
	}
}

func (r *richText) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Heading:
		size, ok := headingSizes[node.Level]
		if !ok {
			size = bodyFontSize
		}
		r.pdf.Ln(2)
		r.size = size
		r.bold++
		r.inlines(node)
		r.bold--
		r.pdf.Ln(r.lineHeight() + 1)
		r.size = bodyFontSize

	case *ast.Paragraph:
		r.inlines(node)
		r.pdf.Ln(r.lineHeight() * 1.5)

	case *ast.TextBlock:
		r.inlines(node)
		r.pdf.Ln(r.lineHeight())

	case *ast.List:
		index := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "-"
			if node.IsOrdered() {
				marker = strconv.Itoa(index) + "."
				index++
			}
			r.listItem(item, marker)
		}
		r.pdf.Ln(r.lineHeight() * 0.5)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		r.codeBlock(n.Lines())

	case *ast.Blockquote:
		r.setIndent(indentStep)
		r.italic++
		r.blocks(node)
		r.italic--
		r.setIndent(-indentStep)

	case *ast.ThematicBreak:
		w, _ := r.pdf.GetPageSize()
		y := r.pdf.GetY() + 2
		r.pdf.Line(pageMargin+r.indent, y, w-pageMargin, y)
		r.pdf.Ln(4)

	case *ast.HTMLBlock:
		// 忽略原始 HTML

	default:
		r.blocks(n)
	}
}

func (r *richText) listItem(item ast.Node, marker string) {
	r.pdf.SetX(pageMargin + r.indent)
	r.applyFont()
	r.pdf.Write(r.lineHeight(), marker+" ")
	r.setIndent(indentStep)
	r.blocks(item)
	r.setIndent(-indentStep)
}

func (r *richText) codeBlock(lines *text.Segments) {
	r.code++
	r.applyFont()
	r.pdf.SetFillColor(240, 240, 240)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.src)), "\r\n")
		r.pdf.CellFormat(0, 4.5, Normalize(line), "", 1, "L", true, 0, "")
	}
	r.code--
	r.pdf.Ln(2)
}

func (r *richText) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			r.write(string(node.Segment.Value(r.src)))
			if node.HardLineBreak() {
				r.pdf.Ln(r.lineHeight())
			} else if node.SoftLineBreak() {
				r.write(" ")
			}
		case *ast.String:
			r.write(string(node.Value))
		case *ast.Emphasis:
			if node.Level >= 2 {
				r.bold++
				r.inlines(node)
				r.bold--
			} else {
				r.italic++
				r.inlines(node)
				r.italic--
			}
		case *ast.CodeSpan:
			r.code++
			r.inlines(node)
			r.code--
		case *ast.AutoLink:
			r.write(string(node.URL(r.src)))
		case *ast.RawHTML:
		default:
			r.inlines(node)
		}
	}
}
