// Package security screens user-supplied content before it reaches other
// participants or storage: text and HTML sanitization, file-upload
// vetting, identifier validation, and an IP blocklist.
package security

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/roomguard/roomguard/logger"
)

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	jsSchemePattern     = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)

	// Residual markers that should never survive stripping. Their
	// presence afterwards is logged, not blocked: stripping already
	// neutralized the markup-level vector.
	suspiciousMarkers = []string{"<script", "javascript:", "vbscript:", "onerror", "onload", "<iframe"}
)

// SafeTag names an HTML tag and the attributes allowed on it. The
// sanitizer is structured around an allow-list so call sites can opt into
// preserving rich text; the default list is empty, which makes
// SanitizeHTML equivalent to SanitizeText (conservative full stripping,
// a documented gap rather than a silent guarantee).
type SafeTag struct {
	Name         string
	AllowedAttrs []string
}

// SanitizerConfig configures a Sanitizer.
type SanitizerConfig struct {
	// MaxTextLength is the default cap applied when a call passes
	// maxLength <= 0.
	MaxTextLength int `mapstructure:"max_text_length" yaml:"max_text_length"`

	// AllowedTags is the HTML allow-list. Empty means strip everything.
	AllowedTags []SafeTag `mapstructure:"-" yaml:"-"`
}

// DefaultSanitizerConfig returns the default sanitizer configuration.
func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		MaxTextLength: 5000,
	}
}

// Sanitizer neutralizes markup and script injection in user text.
type Sanitizer struct {
	config SanitizerConfig
	log    logger.Logger
}

// NewSanitizer creates a sanitizer.
func NewSanitizer(config SanitizerConfig, log logger.Logger) *Sanitizer {
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = DefaultSanitizerConfig().MaxTextLength
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Sanitizer{
		config: config,
		log:    log.Named("security"),
	}
}

// SanitizeText trims text to maxLength and strips HTML tags, javascript:
// scheme occurrences, and inline event-handler attributes. maxLength <= 0
// uses the configured default.
func (s *Sanitizer) SanitizeText(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = s.config.MaxTextLength
	}
	if len(text) > maxLength {
		text = text[:maxLength]
	}

	text = htmlTagPattern.ReplaceAllString(text, "")
	text = jsSchemePattern.ReplaceAllString(text, "")
	text = eventHandlerPattern.ReplaceAllString(text, "")

	lower := strings.ToLower(text)
	for _, marker := range suspiciousMarkers {
		if strings.Contains(lower, marker) {
			s.log.Warn("suspicious marker survived sanitization",
				zap.String("marker", marker))
			break
		}
	}

	return strings.TrimSpace(text)
}

// SanitizeHTML sanitizes HTML input. Tags outside the allow-list are
// stripped; with the default empty allow-list this behaves exactly like
// SanitizeText.
func (s *Sanitizer) SanitizeHTML(html string, maxLength int) string {
	if len(s.config.AllowedTags) == 0 {
		return s.SanitizeText(html, maxLength)
	}

	if maxLength <= 0 {
		maxLength = s.config.MaxTextLength
	}
	if len(html) > maxLength {
		html = html[:maxLength]
	}

	allowed := make(map[string]struct{}, len(s.config.AllowedTags))
	for _, tag := range s.config.AllowedTags {
		allowed[strings.ToLower(tag.Name)] = struct{}{}
	}

	html = htmlTagPattern.ReplaceAllStringFunc(html, func(match string) string {
		name := tagName(match)
		if _, ok := allowed[name]; !ok {
			return ""
		}
		// Allowed tags are kept bare: attributes are dropped until
		// per-attribute filtering lands.
		if strings.HasPrefix(match, "</") {
			return "</" + name + ">"
		}
		return "<" + name + ">"
	})

	html = jsSchemePattern.ReplaceAllString(html, "")
	html = eventHandlerPattern.ReplaceAllString(html, "")

	return strings.TrimSpace(html)
}

func tagName(tag string) string {
	tag = strings.TrimPrefix(tag, "<")
	tag = strings.TrimPrefix(tag, "/")
	tag = strings.TrimSuffix(tag, ">")
	tag = strings.TrimSuffix(tag, "/")
	if i := strings.IndexAny(tag, " \t\n"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
