package calendar

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var lecturerPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// Thumbnails resolves the embed thumbnail of an event from the lecturer name in its summary,
// e.g. "Mathematik 1 [Müller]".
type Thumbnails struct {
	images      map[string]string
	urlTemplate string
}

// NewThumbnails creates Thumbnails with the given name to image URL mapping.
// urlTemplate, if not empty, is used for names not in images; "{name}" is replaced by the escaped,
// lower-cased name.
func NewThumbnails(images map[string]string, urlTemplate string) *Thumbnails {
	normalized := make(map[string]string, len(images))
	for name, image := range images {
		normalized[strings.ToLower(strings.TrimSpace(name))] = image
	}

	return &Thumbnails{
		images:      normalized,
		urlTemplate: urlTemplate,
	}
}

// Resolve returns the thumbnail URL for the given summary.
func (t *Thumbnails) Resolve(summary string) (string, error) {
	if t == nil {
		return "", ErrNoThumbnail
	}

	match := lecturerPattern.FindStringSubmatch(summary)
	if match == nil {
		return "", fmt.Errorf("%w: no bracketed name in %q", ErrNoThumbnail, summary)
	}

	name := strings.ToLower(strings.TrimSpace(match[1]))
	if image, ok := t.images[name]; ok {
		return image, nil
	}

	if t.urlTemplate == "" {
		return "", fmt.Errorf("%w: unknown name %q", ErrNoThumbnail, name)
	}

	return strings.ReplaceAll(t.urlTemplate, "{name}", url.PathEscape(name)), nil
}
