// Package transcript loads and sanitizes visit transcripts before they
// reach the extraction pipeline.
package transcript

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// Load reads a transcript file and normalizes it to clean UTF-8 with
// NFC composition and LF newlines. Files that are not valid UTF-8 are
// decoded as windows-1252, the usual encoding of legacy dictation
// exports.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "transcript: read %s", path)
	}
	return decode(data, "")
}

// LoadCharset reads a transcript stored in the named charset (an HTML
// encoding label such as "windows-1252" or "iso-8859-1") and converts
// it to normalized UTF-8.
func LoadCharset(path, charset string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "transcript: read %s", path)
	}
	return decode(data, charset)
}

func decode(data []byte, charset string) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if charset == "" && !utf8.Valid(data) {
		charset = "windows-1252"
	}
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", eris.Wrapf(err, "transcript: unsupported charset %q", charset)
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", eris.Wrapf(err, "transcript: decode charset %s", charset)
		}
		data = decoded
	}

	text := string(norm.NFC.Bytes(data))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text), nil
}
