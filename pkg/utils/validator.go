package utils

import (
	"fmt"
	"regexp"
	"time"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// scannable MIME types accepted by the receipt pipeline
var scannableMIME = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// ValidateScanMIME checks that an uploaded receipt has a supported content type
func ValidateScanMIME(mime string) error {
	if !scannableMIME[mime] {
		return fmt.Errorf("unsupported content type: %s", mime)
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD date string
func ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %s", date)
	}
	return nil
}

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
