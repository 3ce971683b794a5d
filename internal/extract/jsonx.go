package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```" + `(\w*)\s*\n(.+?)\n` + "```")
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z0-9_]+)\s*:`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

var errNoObject = errors.New("no JSON object in model reply")

// decodeObject pulls the first JSON object out of a model reply and decodes
// it with numbers kept as json.Number. Fenced ```json blocks win over raw
// braces; pseudo-JSON with single quotes, bare keys, or trailing commas
// gets one repair pass before the candidate is discarded.
func decodeObject(reply string) (map[string]any, error) {
	for _, cand := range objectCandidates(reply) {
		if m, err := unmarshalObject(cand); err == nil {
			return m, nil
		}
		if m, err := unmarshalObject(repairJSON(cand)); err == nil {
			return m, nil
		}
	}
	return nil, errNoObject
}

// objectCandidates lists the substrings of the reply worth trying as JSON,
// most trustworthy first.
func objectCandidates(reply string) []string {
	var out []string
	for _, match := range fencedBlock.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(match[2])
		if strings.HasPrefix(body, "{") {
			out = append(out, body)
		}
	}
	if raw := balancedObject(reply); raw != "" {
		out = append(out, raw)
	}
	return out
}

// balancedObject returns the first brace-balanced object in s. String
// literals are tracked so braces inside values do not move the depth.
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func unmarshalObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNoObject
	}
	return m, nil
}

// repairJSON fixes the quirks models actually produce: single-quoted
// strings, unquoted keys, and trailing commas.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	s = trailingComma.ReplaceAllString(s, "$1")
	return s
}
