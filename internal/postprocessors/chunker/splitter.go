package chunker

import "unicode"

// MarkdownSeparators split on headings first, then code fences and
// horizontal rules, then paragraphs, lines, words and characters.
var MarkdownSeparators = []string{
	"\n# ",
	"\n## ",
	"\n### ",
	"\n#### ",
	"\n##### ",
	"\n###### ",
	"```\n",
	"\n***",
	"\n---",
	"\n___",
	"\n\n",
	"\n",
	" ",
	"",
}

// TextSeparators split plain text on paragraphs, lines, sentences and words.
var TextSeparators = []string{
	"\n\n",
	"\n",
	". ",
	"! ",
	"? ",
	"; ",
	", ",
	" ",
	"",
}

// span is one chunk expressed as a rune range of the source text.
type span struct {
	start   int
	text    string
	overlap int
}

// splitter works on runes so every size is a character count.
type splitter struct {
	text       []rune
	size       int
	overlap    int
	separators [][]rune

	// bounds holds ascending piece boundaries, starting with 0.
	bounds []int
}

func newSplitter(text string, size, overlap int, separators []string) *splitter {
	seps := make([][]rune, len(separators))
	for i, s := range separators {
		seps[i] = []rune(s)
	}
	return &splitter{
		text:       []rune(text),
		size:       size,
		overlap:    overlap,
		separators: seps,
	}
}

// spans returns the chunks covering the whole text.
func (s *splitter) spans() []span {
	n := len(s.text)
	if n == 0 {
		return nil
	}

	s.bounds = []int{0}
	s.split(0, n, s.separators)

	var out []span
	start, prevEnd := 0, 0
	j := 1 // index of the first boundary after start
	for {
		for s.bounds[j] <= start {
			j++
		}
		for j+1 < len(s.bounds) && s.bounds[j+1]-start <= s.size {
			j++
		}
		end := s.bounds[j]

		ov := 0
		if len(out) > 0 {
			ov = prevEnd - start
		}
		out = append(out, span{start: start, text: string(s.text[start:end]), overlap: ov})

		if end == n {
			return out
		}

		prevEnd = end
		start = s.nextStart(start, end, s.bounds[j+1])
	}
}

// nextStart picks where the chunk after [start, end) begins: the earliest
// piece or word boundary within the overlap window that still lets the
// following piece fit. Without one the next chunk starts at end.
func (s *splitter) nextStart(start, end, next int) int {
	lowest := end - s.overlap
	if lowest <= start {
		lowest = start + 1
	}
	for p := lowest; p < end; p++ {
		if next-p > s.size {
			continue
		}
		if s.isBoundary(p) || s.isWordStart(p) {
			return p
		}
	}
	return end
}

func (s *splitter) isWordStart(p int) bool {
	return p > 0 && unicode.IsSpace(s.text[p-1]) && !unicode.IsSpace(s.text[p])
}

func (s *splitter) isBoundary(p int) bool {
	lo, hi := 0, len(s.bounds)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s.bounds[mid] == p:
			return true
		case s.bounds[mid] < p:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

// split records piece boundaries for text[lo:hi]. A range that fits is one
// piece; otherwise it is cut before each occurrence of the first separator
// it contains, and oversized pieces recurse with the finer separators.
func (s *splitter) split(lo, hi int, seps [][]rune) {
	if hi-lo <= s.size {
		s.bounds = append(s.bounds, hi)
		return
	}

	for i, sep := range seps {
		if len(sep) == 0 {
			for p := lo + 1; p <= hi; p++ {
				s.bounds = append(s.bounds, p)
			}
			return
		}
		if s.index(sep, lo, hi) < 0 {
			continue
		}

		rest := seps[i+1:]
		pieceStart := lo
		for q := s.index(sep, lo, hi); q >= 0; q = s.index(sep, q+len(sep), hi) {
			if q > pieceStart {
				s.split(pieceStart, q, rest)
				pieceStart = q
			}
		}
		s.split(pieceStart, hi, rest)
		return
	}

	// No separator applies: an atomic piece longer than size.
	s.bounds = append(s.bounds, hi)
}

// index returns the first position >= from where sep occurs entirely
// inside text[:hi], or -1.
func (s *splitter) index(sep []rune, from, hi int) int {
	for p := from; p+len(sep) <= hi; p++ {
		match := true
		for k, r := range sep {
			if s.text[p+k] != r {
				match = false
				break
			}
		}
		if match {
			return p
		}
	}
	return -1
}
