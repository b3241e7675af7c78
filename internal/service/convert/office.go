package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// OfficeStrategy 调用 LibreOffice 无界面转换
func OfficeStrategy(binary, tempDir string) Strategy {
	return Strategy{
		Name: "office",
		Convert: func(ctx context.Context, src []byte, filename string) ([]byte, error) {
			ext := strings.ToLower(filepath.Ext(filename))
			if ext == "" {
				ext = ".docx"
			}
			tmpIn, err := os.CreateTemp(tempDir, "next-files-*"+ext)
			if err != nil {
				return nil, err
			}
			defer os.Remove(tmpIn.Name())
			if _, err := tmpIn.Write(src); err != nil {
				tmpIn.Close()
				return nil, err
			}
			tmpIn.Close()

			tmpOut := strings.TrimSuffix(tmpIn.Name(), filepath.Ext(tmpIn.Name())) + ".pdf"
			defer os.Remove(tmpOut)

			args := []string{"--headless", "--convert-to", "pdf", "--outdir", filepath.Dir(tmpIn.Name()), tmpIn.Name()}
			if err := runCommand(ctx, binary, args...); err != nil {
				return nil, err
			}
			return os.ReadFile(tmpOut)
		},
	}
}

func runCommand(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("converter timeout")
		}
		return fmt.Errorf("%s failed: %v: %s", filepath.Base(bin), err, string(out))
	}
	return nil
}

// lookupOffice 解析 soffice 可执行文件，未启用或不存在时返回空串
func lookupOffice(enabled bool, binary string) string {
	if !enabled || binary == "" {
		return ""
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return ""
	}
	return path
}
