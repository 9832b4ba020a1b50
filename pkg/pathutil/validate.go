// Package pathutil provides name validation and normalisation for marker
// metadata and watched paths.
package pathutil

import (
	"path/filepath"
	"regexp"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
)

var flagNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// NormalizeText NFC-normalises s so that canonically equivalent strings hash
// identically. Invalid UTF-8 cannot be serialised deterministically and is
// rejected with errclass.ErrEncoding.
func NormalizeText(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", errclass.ErrEncoding.WithMessagef("invalid UTF-8: %q", s)
	}
	return norm.NFC.String(s), nil
}

// NormalizeActor validates and normalises the initiating principal.
func NormalizeActor(actor string) (string, error) {
	if actor == "" {
		return "", errclass.ErrNameInvalid.WithMessage("actor must not be empty")
	}
	actor, err := NormalizeText(actor)
	if err != nil {
		return "", err
	}
	for _, r := range actor {
		if unicode.IsControl(r) {
			return "", errclass.ErrNameInvalid.WithMessagef("actor must not contain control characters: %q", actor)
		}
	}
	return actor, nil
}

// ValidateFlagName checks an extra flag or metadata key.
func ValidateFlagName(name string) error {
	if name == "" {
		return errclass.ErrEncoding.WithMessage("flag name must not be empty")
	}
	if !flagNameRegex.MatchString(name) {
		return errclass.ErrEncoding.WithMessagef("flag name must match [a-zA-Z0-9._-]+: %q", name)
	}
	return nil
}

// NormalizeFlags validates extra flag names and NFC-normalises their values.
// A nil or empty map yields nil.
func NormalizeFlags(extra map[string]string) (map[string]string, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		if err := ValidateFlagName(k); err != nil {
			return nil, err
		}
		nv, err := NormalizeText(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

// AbsClean returns the absolute, cleaned form of path.
func AbsClean(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errclass.ErrIO.Wrap(err, "resolve path")
	}
	return filepath.Clean(abs), nil
}
