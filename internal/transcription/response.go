package transcription

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"meetingrec/internal/domain"
)

// apiResponse matches the verbose_json transcription response.
type apiResponse struct {
	Text     *string      `json:"text"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
	Segments []apiSegment `json:"segments"`
}

type apiSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func decodeResponse(body []byte) (apiResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return apiResponse{}, domain.E(domain.ErrorKindTranscriptionMalformed, "transcribe.decode", err)
	}
	if resp.Text == nil {
		return apiResponse{}, domain.Errorf(domain.ErrorKindTranscriptionMalformed, "transcribe.decode", "response has no text field")
	}
	for _, seg := range resp.Segments {
		if !finite(seg.Start) || !finite(seg.End) {
			return apiResponse{}, domain.Errorf(domain.ErrorKindTranscriptionMalformed, "transcribe.decode", "segment offsets are not finite")
		}
	}
	return resp, nil
}

// buildTranscript turns a decoded response into an ordered, non-overlapping
// transcript bounded by audioDuration (when known).
func buildTranscript(resp apiResponse, model string, audioDuration time.Duration) domain.Transcript {
	duration := audioDuration
	if duration <= 0 && resp.Duration > 0 {
		duration = seconds(resp.Duration)
	}

	segments := make([]domain.TranscriptSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.TranscriptSegment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  text,
		})
	}

	text := ""
	if resp.Text != nil {
		text = strings.TrimSpace(*resp.Text)
	}
	if text == "" && len(segments) > 0 {
		parts := make([]string, 0, len(segments))
		for _, seg := range segments {
			parts = append(parts, seg.Text)
		}
		text = strings.Join(parts, " ")
	}

	return domain.Transcript{
		Text:     text,
		Segments: normalizeSegments(segments, duration),
		Language: resp.Language,
		Duration: duration,
		Model:    model,
	}
}

func normalizeSegments(segments []domain.TranscriptSegment, duration time.Duration) []domain.TranscriptSegment {
	if len(segments) == 0 {
		return nil
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	var prevEnd time.Duration
	for i := range segments {
		seg := &segments[i]
		seg.Start = max(seg.Start, 0, prevEnd)
		seg.End = max(seg.End, seg.Start)
		if duration > 0 {
			seg.Start = min(seg.Start, duration)
			seg.End = min(seg.End, duration)
		}
		prevEnd = seg.End
	}
	return segments
}

// mergeChunks reassembles chunk transcripts in chunk order, shifting each
// chunk's segments by its offset in the source file.
func mergeChunks(parts []chunkResult, model string, duration time.Duration) domain.Transcript {
	var (
		texts    []string
		segments []domain.TranscriptSegment
		language string
	)
	for _, part := range parts {
		if part.transcript.Text != "" {
			texts = append(texts, part.transcript.Text)
		}
		if language == "" {
			language = part.transcript.Language
		}
		for _, seg := range part.transcript.Segments {
			segments = append(segments, domain.TranscriptSegment{
				Start: seg.Start + part.offset,
				End:   seg.End + part.offset,
				Text:  seg.Text,
			})
		}
	}
	return domain.Transcript{
		Text:     strings.Join(texts, " "),
		Segments: normalizeSegments(segments, duration),
		Language: language,
		Duration: duration,
		Model:    model,
	}
}

type chunkResult struct {
	offset     time.Duration
	transcript domain.Transcript
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
