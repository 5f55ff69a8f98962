package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"meetingrec/internal/domain"
)

const dateLayout = "2006-01-02 15:04:05"

// Render builds the markdown report for a session. It reads nothing but the
// session value, so the same session always renders the same document for a
// given generation time.
func Render(session domain.Session, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Meeting: %s\n\n", session.ID)
	if !session.StartedAt.IsZero() {
		fmt.Fprintf(&b, "**Date and Time:** %s\n", session.StartedAt.Format(dateLayout))
	}
	fmt.Fprintf(&b, "**Duration:** %s\n", Timestamp(session.Duration()))
	if sources := recordedSources(session.Artifacts); len(sources) > 0 {
		fmt.Fprintf(&b, "**Sources:** %s\n", strings.Join(sources, ", "))
	}

	b.WriteString("\n## Audio Recording\n\n")
	refs := AudioArtifacts(session.Artifacts)
	if len(refs) == 0 {
		b.WriteString("*No audio was recorded.*\n")
	}
	for _, artifact := range refs {
		rel := relPath(session.Dir, artifact.Path)
		note := ""
		if artifact.EndedEarly {
			note = ", ended early"
		}
		fmt.Fprintf(&b, "- [%s](%s) (%s, %s%s)\n", filepath.Base(artifact.Path), rel, artifact.Source, Timestamp(artifact.Duration), note)
	}

	shots := session.Screenshots
	next := 0
	if session.Transcript != nil {
		b.WriteString("\n## Transcript\n\n")
		if session.Transcript.Segmented() {
			for _, seg := range session.Transcript.Segments {
				for next < len(shots) && shots[next].Offset <= seg.Start {
					writeScreenshot(&b, session.Dir, next, shots[next])
					next++
				}
				fmt.Fprintf(&b, "[%s]: %s\n\n", Timestamp(seg.Start), seg.Text)
			}
			for next < len(shots) {
				writeScreenshot(&b, session.Dir, next, shots[next])
				next++
			}
		} else {
			b.WriteString(strings.TrimSpace(session.Transcript.Text))
			b.WriteString("\n")
		}
	}

	if next < len(shots) || (len(shots) == 0 && session.Transcript == nil) {
		b.WriteString("\n## Screenshots\n\n")
		if len(shots) == 0 {
			b.WriteString("*No screenshots were captured during this meeting.*\n")
		}
		for ; next < len(shots); next++ {
			writeScreenshot(&b, session.Dir, next, shots[next])
		}
	}

	fmt.Fprintf(&b, "\n---\n*Generated by MeetingRec on %s*\n", generatedAt.Format(dateLayout))
	return b.String()
}

func writeScreenshot(b *strings.Builder, dir string, index int, shot domain.ScreenshotRecord) {
	title := fmt.Sprintf("Screenshot %d", index+1)
	fmt.Fprintf(b, "### [%s] %s", Timestamp(shot.Offset), title)
	if shot.WindowTitle != "" {
		fmt.Fprintf(b, " - %s", shot.WindowTitle)
	}
	fmt.Fprintf(b, "\n\n![%s](%s)\n\n", title, relPath(dir, shot.Path))
}

// AudioArtifacts returns the artifacts a report references: the mixdown when
// one exists, otherwise every recorded source.
func AudioArtifacts(artifacts []domain.AudioArtifact) []domain.AudioArtifact {
	mixed := lo.Filter(artifacts, func(a domain.AudioArtifact, _ int) bool {
		return a.Source == domain.SourceMixed
	})
	if len(mixed) > 0 {
		return mixed[:1]
	}
	return lo.Filter(artifacts, func(a domain.AudioArtifact, _ int) bool {
		return a.Source != domain.SourceMixed
	})
}

func recordedSources(artifacts []domain.AudioArtifact) []string {
	sources := lo.FilterMap(artifacts, func(a domain.AudioArtifact, _ int) (string, bool) {
		return string(a.Source), a.Source != domain.SourceMixed
	})
	return lo.Uniq(sources)
}

// Timestamp formats an offset as MM:SS, or H:MM:SS past the first hour.
func Timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	hours, minutes, seconds := total/3600, (total/60)%60, total%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func relPath(dir, path string) string {
	if dir != "" {
		if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
