package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetingrec/internal/domain"
)

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrections.rules")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestCorrectorAppliesVocabularyAndRegexRules(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
# vocabulary
cooper netties => Kubernetes
ai => AI
s/\bum,?\s*//g
`)
	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if corrector.Len() != 3 {
		t.Fatalf("expected 3 rules, got %d", corrector.Len())
	}

	got, err := corrector.Apply("um, we said Cooper Netties needs ai um support")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	want := "we said Kubernetes needs AI support"
	if got != want {
		t.Fatalf("unexpected output: got %q want %q", got, want)
	}
}

func TestCorrectorIteratesUntilStable(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "s/standup/stand-up/\ns/stand up/standup/\n")
	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, err := corrector.Apply("stand up at ten")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got != "stand-up at ten" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestCorrectorStopsAtLoopLimit(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "s/x/xx/g\n")
	corrector, err := Load(path, 3)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, err := corrector.Apply("x")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got != "xxxxxxxx" {
		t.Fatalf("expected three passes, got %q", got)
	}
}

func TestVocabularyRuleStartingWithS(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "sprint review => Sprint Review\n")
	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, _ := corrector.Apply("the sprint review is friday")
	if got != "the Sprint Review is friday" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestSubstituteReplacesFirstMatchWithoutG(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "s/okay/OK/\n")
	corrector, err := Load(path, 1)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, _ := corrector.Apply("okay okay")
	if got != "OK okay" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestSubstituteCaseSensitiveFlag(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "s/Go/golang/Ig\n")
	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, _ := corrector.Apply("Go go")
	if got != "golang go" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	corrector, err := Load(filepath.Join(t.TempDir(), "absent.rules"), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if corrector.Len() != 0 {
		t.Fatalf("expected no rules")
	}
	got, _ := corrector.Apply("unchanged")
	if got != "unchanged" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLoadRejectsUnsupportedFlag(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "s/a/b/x\n")
	_, err := Load(path, 30)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line-numbered parse error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedLine(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "# ok\nnot a rule\n")
	_, err := Load(path, 30)
	if err == nil || !strings.Contains(err.Error(), "line 2: unsupported rule format") {
		t.Fatalf("expected unsupported line error, got %v", err)
	}
}

type speakerParser struct{}

func (speakerParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "speaker ")
}

func (speakerParser) Parse(line string) (rule, error) {
	name := strings.TrimSpace(strings.TrimPrefix(line, "speaker "))
	if name == "" {
		return nil, errors.New("speaker name required")
	}
	return parseVocabulary(strings.ToLower(name) + " => " + name)
}

func TestLoadWithParsersAcceptsExtraFormats(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "speaker Priya\nai => AI\n")
	parsers := append([]LineParser{speakerParser{}}, DefaultParsers()...)
	corrector, err := LoadWithParsers(path, 30, parsers)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, _ := corrector.Apply("priya asked about ai")
	if got != "Priya asked about AI" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestCorrectRewritesSegmentsAndKeepsTiming(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "cooper netties => Kubernetes\n")
	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	in := domain.Transcript{
		Text: "deploy to cooper netties today",
		Segments: []domain.TranscriptSegment{
			{Start: 0, End: 2 * time.Second, Text: "deploy to"},
			{Start: 2 * time.Second, End: 4 * time.Second, Text: "cooper netties today"},
		},
		Model: "whisper-1",
	}
	out, err := corrector.Correct(in)
	if err != nil {
		t.Fatalf("correct failed: %v", err)
	}
	if out.Text != "deploy to Kubernetes today" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.Segments[1].Text != "Kubernetes today" || out.Segments[1].Start != 2*time.Second || out.Segments[1].End != 4*time.Second {
		t.Fatalf("unexpected segment: %+v", out.Segments[1])
	}
	if in.Segments[1].Text != "cooper netties today" {
		t.Fatalf("input transcript mutated: %+v", in.Segments[1])
	}
	if out.Model != "whisper-1" {
		t.Fatalf("expected metadata preserved")
	}
}
