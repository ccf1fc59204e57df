package processor

import (
	"strings"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

// Default chunking geometry. Roughly 512 tokens per chunk and 50 tokens
// of overlap at the usual 4-chars-per-token estimate.
const (
	DefaultChunkSize    = 2048
	DefaultChunkOverlap = 200
	DefaultMinSection   = 100
)

// sentenceEnds are the markers a chunk prefers to terminate on, checked
// in order. Cleaned text has no newlines, so space-suffixed forms cover
// everything.
var sentenceEnds = []string{". ", "? ", "! "}

// Processor splits cleaned filing text into overlapping chunks.
type Processor struct {
	chunkSize  int
	overlap    int
	minSection int
}

// Option configures the processor.
type Option func(*Processor)

// WithChunkSize sets the chunk window in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithMinSection sets the minimum section length; shorter sections are
// skipped as noise.
func WithMinSection(minLen int) Option {
	return func(p *Processor) {
		if minLen >= 0 {
			p.minSection = minLen
		}
	}
}

// New creates a processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		minSection: DefaultMinSection,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave the cursor moving forward.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// ChunkSize returns the configured window size in characters.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap in characters.
func (p *Processor) Overlap() int { return p.overlap }

// ChunkFiling cleans raw filing text and splits it into overlapping
// chunks. The supplied meta is copied into every chunk; Section,
// CharStart and CharEnd are filled in per chunk, with offsets absolute
// within the cleaned document.
func (p *Processor) ChunkFiling(raw string, meta domain.ChunkMeta) []domain.Chunk {
	text := Clean(raw)
	sections := Sections(text)

	estimated := len(text)/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	ordinal := 0
	for _, sec := range sections {
		sectionText := text[sec.Start:sec.End]
		if len(strings.TrimSpace(sectionText)) < p.minSection {
			continue
		}

		for _, span := range p.walk(sectionText) {
			chunkText := strings.TrimSpace(sectionText[span.start:span.end])
			if chunkText == "" {
				continue
			}

			m := meta
			m.Section = sec.Label
			m.CharStart = sec.Start + span.start
			m.CharEnd = sec.Start + span.end

			chunks = append(chunks, domain.Chunk{
				Text:    chunkText,
				Ordinal: ordinal,
				Meta:    m,
			})
			ordinal++
		}
	}

	return chunks
}

type span struct {
	start int
	end   int
}

// walk produces the chunk spans for one section. Each window prefers to
// end at the last sentence terminator in its back half; the cursor then
// advances by chunkSize-overlap so consecutive chunks overlap by at
// most the configured overlap.
func (p *Processor) walk(text string) []span {
	var spans []span

	pos := 0
	for pos < len(text) {
		end := pos + p.chunkSize
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			if cut, ok := lastSentenceEnd(text, pos+p.chunkSize/2, end); ok {
				end = cut
			}
		}

		spans = append(spans, span{start: pos, end: end})

		next := end - p.overlap
		if next <= pos {
			// Degenerate geometry (overlap close to window size after a
			// short sentence cut): advance without overlap.
			next = end
		}
		pos = next
		if pos >= len(text)-p.overlap {
			break
		}
	}

	return spans
}

// lastSentenceEnd finds the end of the last sentence terminator within
// text[from:to). Returns the index just past the marker.
func lastSentenceEnd(text string, from, to int) (int, bool) {
	if from < 0 {
		from = 0
	}
	if from >= to {
		return 0, false
	}
	for _, marker := range sentenceEnds {
		if i := strings.LastIndex(text[from:to], marker); i != -1 {
			return from + i + len(marker), true
		}
	}
	return 0, false
}

// ExtractKeySentences returns the sentences of text containing at least
// one of the given keywords, case-insensitively. Used for highlight
// snippets in CLI output.
func ExtractKeySentences(text string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	var sentences []string
	var current strings.Builder
	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s == "" {
			return
		}
		sLower := strings.ToLower(s)
		for _, kw := range lowered {
			if strings.Contains(sLower, kw) {
				sentences = append(sentences, s)
				return
			}
		}
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return sentences
}
