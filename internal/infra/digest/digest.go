package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// ChunkSize 是读取文件内容的块大小。
const ChunkSize = 64 << 10

// File 返回文件完整内容的 BLAKE3-256 十六进制摘要。
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// Reader 按 ChunkSize 分块读取 r 直到 EOF。
func Reader(r io.Reader) (string, error) {
	h := blake3.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// blake3.Hasher.Write 不会返回错误。
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("读取内容失败：%w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
