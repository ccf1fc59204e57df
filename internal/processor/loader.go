package processor

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/catalyst-labs/filingrag/internal/logger"
)

// LoadFiling reads and decompresses a filing from disk.
//
// A missing or unreadable file is a hard error: batch callers must skip
// the filing and log. Content that is not valid UTF-8 is decoded
// best-effort with invalid bytes replaced; that never fails. A file
// without a gzip header is read as plain text.
func (p *Processor) LoadFiling(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open filing %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read filing %s: %w", path, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		// Not gzip: fall back to treating the bytes as plain text.
		logger.Debug("filing %s is not gzip, reading as plain text", path)
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompress filing %s: %w", path, err)
	}

	return strings.ToValidUTF8(string(text), "�"), nil
}
