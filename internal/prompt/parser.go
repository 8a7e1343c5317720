package prompt

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"clone-llm/internal/domain"
)

// ParseLLMResponseSafe parses the generator LLM's raw output into an
// LLMResponse, falling back progressively to regex extraction and finally to
// sanitized raw text. Rule: inner_monologue is NEVER surfaced, even on
// fallback paths. Directly adapted from the teacher's
// LLMResponseParser.ParseLLMResponseSafe, retargeted from the three-scalar
// trust/intimacy/respect deltas to the five-scalar relationship model.
func ParseLLMResponseSafe(raw string) (domain.LLMResponse, bool) {
	cleaned := CleanLLMJSONResponse(raw)

	jsonObj := extractFirstJSONObject(cleaned)
	if jsonObj == "" {
		jsonObj = extractFirstJSONObject(raw)
	}

	tryUnmarshal := func(candidate string) (domain.LLMResponse, bool) {
		var tmp struct {
			InnerMonologue          string   `json:"inner_monologue"`
			PublicResponse          string   `json:"public_response"`
			TrustDelta              *float64 `json:"trust_delta,omitempty"`
			AffectionDelta          *float64 `json:"affection_delta,omitempty"`
			AttunementDelta         *float64 `json:"attunement_delta,omitempty"`
			InteractionQualityDelta *float64 `json:"interaction_quality_delta,omitempty"`
			ComfortDelta            *float64 `json:"comfort_delta,omitempty"`
			NewState                string   `json:"new_state,omitempty"`
		}
		if err := json.Unmarshal([]byte(candidate), &tmp); err != nil {
			return domain.LLMResponse{}, false
		}
		pub := strings.TrimSpace(tmp.PublicResponse)
		if pub == "" {
			return domain.LLMResponse{}, false
		}
		pub = UnescapeMaybeDoubleEscaped(pub)

		resp := domain.LLMResponse{
			PublicResponse: pub,
			NewState:       tmp.NewState,
		}
		if tmp.TrustDelta != nil {
			resp.TrustDelta = *tmp.TrustDelta
		}
		if tmp.AffectionDelta != nil {
			resp.AffectionDelta = *tmp.AffectionDelta
		}
		if tmp.AttunementDelta != nil {
			resp.AttunementDelta = *tmp.AttunementDelta
		}
		if tmp.InteractionQualityDelta != nil {
			resp.InteractionQualityDelta = *tmp.InteractionQualityDelta
		}
		if tmp.ComfortDelta != nil {
			resp.ComfortDelta = *tmp.ComfortDelta
		}
		return resp, true
	}

	if jsonObj != "" {
		if resp, ok := tryUnmarshal(jsonObj); ok {
			return resp, true
		}
	}
	if resp, ok := tryUnmarshal(cleaned); ok {
		return resp, true
	}
	if resp, ok := tryUnmarshal(raw); ok {
		return resp, true
	}

	if pr, ok := ExtractPublicResponseByRegex(cleaned); ok {
		return domain.LLMResponse{PublicResponse: pr}, true
	}
	if pr, ok := ExtractPublicResponseByRegex(raw); ok {
		return domain.LLMResponse{PublicResponse: pr}, true
	}

	fallback := SanitizeFallbackPublicText(raw)
	if strings.TrimSpace(fallback) == "" {
		return domain.LLMResponse{}, false
	}
	return domain.LLMResponse{PublicResponse: fallback}, true
}

// CleanLLMJSONResponse strips ```json ... ``` fences and a leading BOM.
func CleanLLMJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "﻿")

	reStart := regexp.MustCompile(`(?is)^\s*` + "```" + `(?:json)?\s*`)
	reEnd := regexp.MustCompile("(?is)\\s*```\\s*$")
	s = reStart.ReplaceAllString(s, "")
	s = reEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SanitizeFallbackPublicText is the last resort when no parseable JSON is
// present. Rule: inner_monologue is never returned even if it leaked into
// plain text.
func SanitizeFallbackPublicText(raw string) string {
	t := strings.TrimSpace(CleanLLMJSONResponse(raw))
	if t == "" {
		return ""
	}

	if pr, ok := ExtractPublicResponseByRegex(t); ok {
		return pr
	}
	if pr, ok := ExtractPublicResponseByRegex(raw); ok {
		return pr
	}

	lower := strings.ToLower(t)
	if strings.Contains(lower, "inner_monologue") {
		lines := strings.Split(t, "\n")
		out := lines[:0]
		for _, ln := range lines {
			if strings.Contains(strings.ToLower(ln), "inner_monologue") {
				continue
			}
			out = append(out, ln)
		}
		t = strings.TrimSpace(strings.Join(out, "\n"))
	}

	if obj := extractFirstJSONObject(t); obj != "" {
		if pr, ok := ExtractPublicResponseByRegex(obj); ok {
			return pr
		}
	}

	return strings.TrimSpace(t)
}

// ExtractPublicResponseByRegex pulls just the public_response value out of
// dirty JSON. Important: this never touches inner_monologue, so a
// malformed/truncated JSON blob can't leak it.
func ExtractPublicResponseByRegex(s string) (string, bool) {
	re := regexp.MustCompile(`(?is)"public_response"\s*:\s*"((?:\\.|[^"\\])*)"`)
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}

	raw := m[1]
	unq, err := strconv.Unquote(`"` + raw + `"`)
	if err != nil {
		unq = unescapeMinimalEscapes(raw)
	}
	unq = strings.TrimSpace(UnescapeMaybeDoubleEscaped(unq))
	if unq == "" {
		return "", false
	}
	return unq, true
}

// UnescapeMaybeDoubleEscaped repairs a model response that double-escaped
// its own JSON string content.
func UnescapeMaybeDoubleEscaped(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.Contains(s, `\`) {
		return s
	}

	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	if unq, err := strconv.Unquote(quoted); err == nil {
		return strings.TrimSpace(unq)
	}
	return unescapeMinimalEscapes(s)
}

func unescapeMinimalEscapes(s string) string {
	replacer := strings.NewReplacer(
		`\\`, `\`,
		`\"`, `"`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(s)
}

func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}

	return ""
}
