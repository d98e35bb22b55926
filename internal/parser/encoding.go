package parser

import (
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	apperrors "inlook-corpus/pkg/errors"
)

// detectEncoding guesses raw's character encoding. Pure 7-bit input is
// reported as "US-ASCII" with confidence 100; anything else gets the IANA
// name chardet reports (e.g. "UTF-8", "windows-1252", "ISO-8859-1") plus
// the detector's confidence. Callers feed the name to decodeToUTF8 and
// record both under the Encoding attribute.
func detectEncoding(raw []byte) (string, int, error) {
	ascii := true
	for _, b := range raw {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return "US-ASCII", 100, nil
	}
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return "", 0, apperrors.EncodingUnknown("<buffer>")
	}
	return result.Charset, result.Confidence, nil
}

// decodeToUTF8 converts raw from the named encoding to a UTF-8 string.
// An already-UTF-8 (or ASCII) source is returned unchanged.
func decodeToUTF8(raw []byte, charset string) (string, error) {
	if strings.EqualFold(charset, "UTF-8") || strings.EqualFold(charset, "ASCII") || strings.EqualFold(charset, "US-ASCII") {
		return string(raw), nil
	}

	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return "", apperrors.DecodeFailure(charset, err)
	}

	decoded, err := decodeWith(enc, raw)
	if err != nil {
		return "", apperrors.DecodeFailure(charset, err)
	}
	return decoded, nil
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	reader := transform.NewReader(strings.NewReader(string(raw)), enc.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
