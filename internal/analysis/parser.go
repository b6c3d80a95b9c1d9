// Package analysis normalizes the analysis workflow output into a style configuration.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"vibecreator-backend/internal/models"
)

// ErrUnparseable is returned when the workflow output holds neither an object nor a JSON string.
var ErrUnparseable = errors.New("workflow output did not contain a parseable object or JSON string (expected style_name and tone)")

var thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

// ParseOutputs converts the raw `data.outputs` value into a StyleConfig.
func ParseOutputs(outputs json.RawMessage) (models.StyleConfig, error) {
	trimmed := bytes.TrimSpace(outputs)
	if len(trimmed) == 0 {
		return models.StyleConfig{}, ErrUnparseable
	}

	switch trimmed[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return models.StyleConfig{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return parseRaw(raw), nil
	case '{':
		obj, err := models.ParseStyleConfig(trimmed)
		if err != nil {
			return models.StyleConfig{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return parseObject(obj)
	default:
		return models.StyleConfig{}, ErrUnparseable
	}
}

// parseObject keeps any non-empty object verbatim. String fields are not
// unwrapped, so keys next to them survive.
func parseObject(obj models.StyleConfig) (models.StyleConfig, error) {
	if obj.Len() == 0 {
		return models.StyleConfig{}, ErrUnparseable
	}
	return obj, nil
}

// parseRaw never fails: text that is not a JSON object is kept under "raw".
func parseRaw(raw string) models.StyleConfig {
	stripped := StripThinking(raw)
	if cfg, err := models.ParseStyleConfig([]byte(stripped)); err == nil && stripped != "" && stripped != "null" {
		return cfg
	}
	var cfg models.StyleConfig
	_ = cfg.Set("raw", stripped)
	return cfg
}

// StripThinking removes <think>...</think> spans and surrounding whitespace.
func StripThinking(raw string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
}

// FallbackName is used when the workflow did not name the style.
func FallbackName(now time.Time) string {
	return fmt.Sprintf("Bilibili Style [%s]", now.UTC().Format("2006-01-02"))
}

// Draft holds the fields of a style record derived from a parsed configuration.
type Draft struct {
	Name        string
	Description string
	Config      models.StyleConfig
}

// BuildDraft derives the display name and description from cfg.
func BuildDraft(cfg models.StyleConfig, now time.Time) Draft {
	name := strings.TrimSpace(cfg.Text("style_name"))
	if name == "" {
		name = FallbackName(now)
	}
	return Draft{
		Name:        name,
		Description: strings.TrimSpace(cfg.Text("tone")),
		Config:      cfg,
	}
}
