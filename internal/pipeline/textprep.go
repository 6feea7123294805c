package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"clamservices/internal/logging"
)

// stripCarriageReturns rewrites path with DOS and old Mac line endings turned
// into unix ones. Errors are logged and otherwise ignored.
func stripCarriageReturns(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Logf("pipeline: normalise newlines in %s: %v", path, err)
		return
	}
	if !bytes.Contains(data, []byte("\r")) {
		return
	}
	data = normalizeNewlines(data)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Logf("pipeline: normalise newlines in %s: %v", path, err)
	}
}

// normalizeNewlines maps CRLF and lone CR to LF.
func normalizeNewlines(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}

// isUTF8Label reports whether label names UTF-8 or is empty.
func isUTF8Label(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// transcodeToUTF8 decodes src from the named charset into a UTF-8 copy in a
// private temporary directory and returns its path. UTF-8 input is returned
// unchanged. The returned cleanup removes the copy and is never nil.
func transcodeToUTF8(src, label string) (string, func(), error) {
	noop := func() {}
	if isUTF8Label(label) {
		return src, noop, nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		return "", noop, fmt.Errorf("unknown character encoding %q", label)
	}
	if name == "utf-8" {
		return src, noop, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", noop, err
	}
	defer in.Close()

	dir, err := os.MkdirTemp("", "clamservices-utf8-")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.Logf("pipeline: remove %s: %v", dir, err)
		}
	}

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(dest)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	if _, err := io.Copy(out, transform.NewReader(in, enc.NewDecoder())); err != nil {
		out.Close()
		cleanup()
		return "", noop, fmt.Errorf("decode %s from %s: %w", src, name, err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return dest, cleanup, nil
}

// baseName strips the directory and final extension from path.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
