package vectorstore

import "strings"

const DefaultChunkWords = 200

// ChunkText groups lines into chunks of at most maxWords words. Lines are
// never split; a line longer than maxWords becomes a chunk of its own.
// Every non-blank line ends up in exactly one chunk, in order.
func ChunkText(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	c := &lineChunker{maxWords: maxWords}
	for _, line := range strings.Split(text, "\n") {
		c.feed(line)
	}
	c.flush()
	return c.chunks
}

type lineChunker struct {
	maxWords int
	pending  []string
	words    int
	chunks   []string
}

func (c *lineChunker) feed(line string) {
	line = strings.TrimSpace(line)
	n := len(strings.Fields(line))
	if n == 0 {
		return
	}
	if c.words > 0 && c.words+n > c.maxWords {
		c.flush()
	}
	c.pending = append(c.pending, line)
	c.words += n
	if c.words >= c.maxWords {
		c.flush()
	}
}

func (c *lineChunker) flush() {
	if len(c.pending) == 0 {
		return
	}
	c.chunks = append(c.chunks, strings.Join(c.pending, "\n"))
	c.pending = c.pending[:0]
	c.words = 0
}

// SplitRunes cuts text into rune windows of size with overlap, used for
// summarization where chunk boundaries need not follow lines.
func SplitRunes(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size || overlap < 0 {
		overlap = 0
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if s := strings.TrimSpace(string(runes[i:end])); s != "" {
			chunks = append(chunks, s)
		}
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}
