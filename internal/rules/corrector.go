package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"meetingrec/internal/domain"
)

// Corrector fixes recurring mis-hearings in transcripts using a rules file.
type Corrector struct {
	rules     []rule
	loopLimit int
}

// Load compiles the rules file at path. A missing file yields a corrector
// that changes nothing.
func Load(path string, loopLimit int) (*Corrector, error) {
	return LoadWithParsers(path, loopLimit, DefaultParsers())
}

// LoadWithParsers is Load with extra line formats.
func LoadWithParsers(path string, loopLimit int, parsers []LineParser) (*Corrector, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	if strings.TrimSpace(path) == "" {
		return &Corrector{loopLimit: loopLimit}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Corrector{loopLimit: loopLimit}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	rules, err := parseLines(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return &Corrector{rules: rules, loopLimit: loopLimit}, nil
}

// Len reports how many rules were loaded.
func (c *Corrector) Len() int {
	return len(c.rules)
}

// Apply rewrites text until no rule changes it or the loop limit is reached.
func (c *Corrector) Apply(text string) (string, error) {
	if len(c.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < c.loopLimit; i++ {
		changed := false
		for _, r := range c.rules {
			next, ruleChanged := r.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}
	return result, nil
}

// Correct applies the rules to the flat text and to every segment. Segment
// timing is left untouched.
func (c *Corrector) Correct(transcript domain.Transcript) (domain.Transcript, error) {
	if len(c.rules) == 0 {
		return transcript, nil
	}

	text, err := c.Apply(transcript.Text)
	if err != nil {
		return transcript, err
	}
	out := transcript
	out.Text = text

	if transcript.Segmented() {
		out.Segments = make([]domain.TranscriptSegment, len(transcript.Segments))
		for i, seg := range transcript.Segments {
			corrected, err := c.Apply(seg.Text)
			if err != nil {
				return transcript, err
			}
			seg.Text = corrected
			out.Segments[i] = seg
		}
	}
	return out, nil
}
