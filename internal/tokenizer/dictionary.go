package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// entry is a dictionary word with its corpus frequency and part-of-speech tag
type entry struct {
	freq int
	tag  string
}

// Dictionary is an immutable word -> (frequency, POS tag) table with a prefix index.
// It is built once at process start and only read afterwards.
type Dictionary struct {
	words    map[string]entry
	prefixes map[string]struct{}
	maxRunes int
	logTotal float64
}

// LoadDictionary reads a "word freq tag" file
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	d, err := NewDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary %s: %w", path, err)
	}
	return d, nil
}

// NewDictionary parses whitespace-separated "word freq [tag]" records.
// Lines with a missing or unparsable frequency are skipped.
func NewDictionary(r io.Reader) (*Dictionary, error) {
	d := &Dictionary{
		words:    make(map[string]entry),
		prefixes: make(map[string]struct{}),
	}

	var total int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		freq, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || freq < 0 {
			continue
		}
		word := strings.ToLower(fields[0])
		e := entry{freq: int(freq)}
		if len(fields) > 2 {
			e.tag = fields[2]
		}
		// Keep the most frequent reading of duplicated words
		if prev, ok := d.words[word]; ok && prev.freq >= e.freq {
			continue
		}
		d.words[word] = e
		total += e.freq
		d.addPrefixes(word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if total < 1 {
		total = 1
	}
	d.logTotal = math.Log(float64(total))
	return d, nil
}

// EmptyDictionary returns a dictionary with no entries
func EmptyDictionary() *Dictionary {
	return &Dictionary{
		words:    map[string]entry{},
		prefixes: map[string]struct{}{},
	}
}

func (d *Dictionary) addPrefixes(word string) {
	n := utf8.RuneCountInString(word)
	if n > d.maxRunes {
		d.maxRunes = n
	}
	for i := range word {
		if i > 0 {
			d.prefixes[word[:i]] = struct{}{}
		}
	}
	d.prefixes[word] = struct{}{}
}

// Len returns the number of words
func (d *Dictionary) Len() int {
	return len(d.words)
}

// Contains reports whether the word is in the dictionary
func (d *Dictionary) Contains(word string) bool {
	_, ok := d.words[strings.ToLower(word)]
	return ok
}

// HasPrefix reports whether any word starts with prefix
func (d *Dictionary) HasPrefix(prefix string) bool {
	_, ok := d.prefixes[strings.ToLower(prefix)]
	return ok
}

// Freq returns the corpus frequency of a word, 0 when unknown
func (d *Dictionary) Freq(word string) int {
	return d.words[strings.ToLower(word)].freq
}

// Tag returns the part-of-speech tag of a word, "" when unknown
func (d *Dictionary) Tag(word string) string {
	return d.words[strings.ToLower(word)].tag
}

// logProb is the log-probability used by the segmentation DAG.
// Unknown words score as if they occurred once.
func (d *Dictionary) logProb(word string) float64 {
	f := d.words[word].freq
	if f < 1 {
		f = 1
	}
	return math.Log(float64(f)) - d.logTotal
}
