package langdetect

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// Detector identifies the dominant language of a short text with trigram
// statistics and reports it as an ISO 639-1 code when one exists.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

func (d *Detector) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "detect language", fmt.Errorf("empty text"))
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6393()
	if code == "" {
		return "", domain.WrapError(domain.ErrTranslation, "detect language", fmt.Errorf("language not recognized"))
	}
	return toISO6391(code), nil
}

func toISO6391(iso6393 string) string {
	base, err := language.ParseBase(iso6393)
	if err != nil {
		return iso6393
	}
	return base.String()
}
