package service

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"imgupload/internal/domain"
)

// MaxNameAttempts bounds how many random letters ResolveName appends before giving up.
const MaxNameAttempts = 100

const (
	letters     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	thumbSuffix = "_tn"
)

// LetterSource picks one random ASCII letter.
type LetterSource func() byte

func randomLetter() byte {
	return letters[rand.IntN(len(letters))]
}

// SplitName splits name at its last dot. The extension keeps the dot. A name
// without a dot, or whose only dot leads it (".profile"), has no extension.
func SplitName(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// ThumbName returns the thumbnail sibling of an original file name.
func ThumbName(name string) string {
	base, ext := SplitName(name)
	return base + thumbSuffix + ext
}

// ResolveName returns desired unchanged when it is not in existing, otherwise
// desired with random letters appended to its base until it is free.
func ResolveName(desired string, existing map[string]struct{}) (string, error) {
	return resolveName(desired, func(name string) bool {
		_, ok := existing[name]
		return ok
	}, randomLetter)
}

func resolveName(desired string, taken func(string) bool, next LetterSource) (string, error) {
	base, ext := SplitName(desired)
	name := base + ext
	for attempt := 0; taken(name); attempt++ {
		if attempt == MaxNameAttempts {
			return "", fmt.Errorf("%w: %q after %d attempts", domain.ErrNameResolutionExhausted, desired, MaxNameAttempts)
		}
		base += string(next())
		name = base + ext
	}
	return name, nil
}

// CleanFilename reduces a client-supplied file name to its last path element.
// Some browsers send the full local path, with either separator.
func CleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	return name, nil
}
