package convert

import "strings"

// typographic 排版符号到 ASCII 的替换表，所有文本渲染共用
var typographic = strings.NewReplacer(
	"…", "...",
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"–", "-",
	"—", "-",
)

// Normalize 替换排版符号，其余非 ASCII 字符替换为 '?'
// 内置 Helvetica 字体只覆盖 Latin-1
func Normalize(s string) string {
	s = typographic.Replace(s)
	return strings.Map(func(r rune) rune {
		if r > 0x7f {
			return '?'
		}
		return r
	}, s)
}
