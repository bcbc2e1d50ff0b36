package shortener

import (
	"errors"
	"net/url"
	"regexp"
)

const (
	MinCodeLength = 3
	MaxCodeLength = 10
	MaxURLLength  = 2048
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,10}$`)

// ValidCode reports whether code has the shape of a short code. It is used
// both for custom codes and as a cheap rejection before any storage lookup.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
