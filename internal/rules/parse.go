package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type rule interface {
	Apply(input string) (output string, changed bool)
}

// LineParser turns one rules-file line into a rule.
type LineParser interface {
	CanParse(line string) bool
	Parse(line string) (rule, error)
}

// DefaultParsers handles sed-style "s/re/repl/flags" and literal "a => b" lines.
func DefaultParsers() []LineParser {
	return []LineParser{substituteParser{}, vocabularyParser{}}
}

func parseLines(contents string, parsers []LineParser) ([]rule, error) {
	lines := strings.Split(contents, "\n")
	out := make([]rule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var parsed rule
		for _, parser := range parsers {
			if !parser.CanParse(line) {
				continue
			}
			r, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			parsed = r
			break
		}
		if parsed == nil {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}
		out = append(out, parsed)
	}

	return out, nil
}

// vocabularyParser reads "heard => meant" corrections, e.g. "cooper netties => Kubernetes".
type vocabularyParser struct{}

func (vocabularyParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (vocabularyParser) Parse(line string) (rule, error) {
	return parseVocabulary(line)
}

// vocabularyRule replaces case-insensitive matches of a phrase. Ends of the
// phrase made of word characters only match at word boundaries, so "ai => AI"
// leaves "said" alone.
type vocabularyRule struct {
	replacement string
	re          *regexp.Regexp
}

func parseVocabulary(line string) (rule, error) {
	heard, meant, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid vocabulary rule")
	}
	heard = strings.TrimSpace(heard)
	meant = strings.TrimSpace(meant)
	if heard == "" {
		return nil, errors.New("vocabulary rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(heard)
	if first, _ := utf8.DecodeRuneInString(heard); isWordRune(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(heard); isWordRune(last) {
		pattern += `\b`
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary source: %w", err)
	}
	return vocabularyRule{replacement: meant, re: re}, nil
}

func (r vocabularyRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type substituteParser struct{}

func (substituteParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}

func (substituteParser) Parse(line string) (rule, error) {
	return parseSubstitute(line)
}

type substituteRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseSubstitute(line string) (rule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid substitution")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("substitution delimiter must be non-alphanumeric")
	}

	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution replacement: %w", err)
	}

	// Transcripts have no reliable casing, so matching is case-insensitive
	// unless the I flag asks otherwise.
	ignoreCase, global, multiLine, dotAll := true, false, false, false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'I':
			ignoreCase = false
		case 'g':
			global = true
		case 'm':
			multiLine = true
		case 's':
			dotAll = true
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported substitution flag %q", flag)
		}
	}

	prefix := ""
	if ignoreCase {
		prefix += "i"
	}
	if multiLine {
		prefix += "m"
	}
	if dotAll {
		prefix += "s"
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution regex: %w", err)
	}
	return substituteRule{re: re, replacement: replacement, global: global}, nil
}

func (r substituteRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	match := r.re.FindStringSubmatchIndex(input)
	if match == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, match)
	output := input[:match[0]] + string(expanded) + input[match[1]:]
	return output, output != input
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		if escaped {
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == delim {
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
