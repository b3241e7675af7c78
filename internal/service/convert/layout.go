package convert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	// LineWidth 纯文本版式的每行字符数
	LineWidth = 80
	// 每行 10mm，Helvetica 12pt
	rowHeight = 10.0
	fontSize  = 12.0
)

// WrapLines 按单词边界折行，空行保留
// 超过 width 的单个单词不拆分
func WrapLines(text string, width int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if len(line) <= width {
			out = append(out, line)
			continue
		}

		current := ""
		for _, word := range strings.Fields(line) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= width:
				current += " " + word
			default:
				out = append(out, current)
				current = word
			}
		}
		if current != "" {
			out = append(out, current)
		}
	}
	return out
}

// RenderText 以固定宽度版式把纯文本渲染为 PDF
func RenderText(text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", fontSize)

	for _, line := range WrapLines(Normalize(text), LineWidth) {
		pdf.CellFormat(0, rowHeight, line, "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
