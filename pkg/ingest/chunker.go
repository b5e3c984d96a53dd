package ingest

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// MedicalSeparators split on clinical section headings before falling back
// to paragraphs, lines, sentences and words.
var MedicalSeparators = []string{
	"\n\nSYMPTOMS:",
	"\n\nTREATMENT:",
	"\n\nCAUSES:",
	"\n\nPREVENTION:",
	"\n\nWHEN TO SEE DOCTOR:",
	"\n\n",
	"\n",
	". ",
	" ",
}

// ChunkOptions configures chunking.
type ChunkOptions struct {
	// Size is the target maximum chunk length in bytes.
	Size int

	// Overlap is how much trailing text of one chunk is repeated at the start
	// of the next.
	Overlap int

	Separators []string
}

// DefaultChunkOptions returns the medical chunking defaults.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		Size:       DefaultChunkSize,
		Overlap:    DefaultChunkOverlap,
		Separators: MedicalSeparators,
	}
}

// Chunk splits text recursively: it splits on the first separator present,
// merges neighbouring pieces up to Size with Overlap, and re-splits any
// piece still larger than Size with the remaining separators. Separators
// stay attached to the start of the piece they introduce so section
// headings travel with their section.
func Chunk(text string, opts ChunkOptions) []string {
	if opts.Size <= 0 {
		opts = DefaultChunkOptions()
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}
	if len(opts.Separators) == 0 {
		opts.Separators = MedicalSeparators
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	for _, c := range splitRecursive(text, opts.Separators, opts) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func splitRecursive(text string, separators []string, opts ChunkOptions) []string {
	if len(text) <= opts.Size {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, s := range separators {
		if strings.Contains(text, s) {
			sep, rest = s, separators[i+1:]
			break
		}
	}
	if sep == "" {
		// Nothing left to split on; keep the oversized piece whole.
		return []string{text}
	}

	var chunks, small []string
	for _, piece := range splitKeep(text, sep) {
		if len(piece) <= opts.Size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, merge(small, opts)...)
			small = nil
		}
		chunks = append(chunks, splitRecursive(piece, rest, opts)...)
	}
	if len(small) > 0 {
		chunks = append(chunks, merge(small, opts)...)
	}
	return chunks
}

// splitKeep splits text on sep, keeping sep at the start of each piece
// after the first.
func splitKeep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge packs pieces into chunks no longer than Size, carrying up to
// Overlap bytes of trailing pieces into the next chunk.
func merge(pieces []string, opts ChunkOptions) []string {
	var (
		chunks  []string
		current []string
		total   int
	)

	for _, p := range pieces {
		if total+len(p) > opts.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for len(current) > 0 && (total > opts.Overlap || total+len(p) > opts.Size) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += len(p)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}
