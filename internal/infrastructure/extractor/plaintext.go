package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func ExtractPlainText(raw []byte) (string, error) {
	raw = trimBOM(raw)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("document is not valid utf-8 text")
	}
	return strings.TrimSpace(string(raw)), nil
}

func trimBOM(raw []byte) []byte {
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		return raw[3:]
	}
	return raw
}
