package services

import (
	"context"
	"regexp"
	"strings"
)

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a display name into a stable lowercase URL slug.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStrip.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
