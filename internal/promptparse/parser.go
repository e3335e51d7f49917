package promptparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"promptsmith/internal/domain"
	"promptsmith/internal/promptreq"
)

const formatErrorMessage = "Invalid response format from API. Expected a JSON object with a 'prompts' array."

var ordinalPrefix = regexp.MustCompile(`^\d+\.(\s+|$)`)

type schemaPayload struct {
	Prompts *[]*string `json:"prompts"`
}

// Parse converts raw model output into at most n prompts. Schema mode fails on
// any shape problem; best-effort mode never fails.
func Parse(mode promptreq.Mode, raw string, n int) ([]string, error) {
	var prompts []string
	switch mode {
	case promptreq.ModeSchema:
		parsed, err := parseSchema(raw)
		if err != nil {
			return nil, err
		}
		prompts = parsed
	default:
		prompts = parseLines(raw)
	}
	return truncate(prompts, n), nil
}

func parseSchema(raw string) ([]string, error) {
	text := trimCodeFence(raw)
	if text == "" {
		return nil, domain.NewError(domain.KindFormat, formatErrorMessage, nil)
	}
	var payload schemaPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, domain.NewError(domain.KindFormat, formatErrorMessage, err)
	}
	if payload.Prompts == nil {
		return nil, domain.NewError(domain.KindFormat, formatErrorMessage, nil)
	}
	prompts := make([]string, 0, len(*payload.Prompts))
	for _, p := range *payload.Prompts {
		if p == nil {
			return nil, domain.NewError(domain.KindFormat, formatErrorMessage, nil)
		}
		prompts = append(prompts, *p)
	}
	return prompts, nil
}

func parseLines(raw string) []string {
	return lo.FilterMap(strings.Split(raw, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") {
			return "", false
		}
		line = strings.TrimSpace(ordinalPrefix.ReplaceAllString(line, ""))
		return line, line != ""
	})
}

func truncate(prompts []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(prompts) > n {
		prompts = prompts[:n]
	}
	if prompts == nil {
		return []string{}
	}
	return prompts
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
