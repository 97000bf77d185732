package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// freeTextPolicy strips all markup from caller-supplied prose before it is persisted.
var freeTextPolicy = bluemonday.StrictPolicy()

func sanitizeFreeText(value string) string {
	return strings.TrimSpace(freeTextPolicy.Sanitize(value))
}
