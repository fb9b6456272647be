package termweight

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// stopwords are function words and question fillers with no retrieval value
var stopwords = map[string]struct{}{
	"请问": {}, "您": {}, "你": {}, "我": {}, "他": {}, "是": {}, "的": {}, "就": {},
	"有": {}, "于": {}, "及": {}, "即": {}, "在": {}, "为": {}, "最": {}, "从": {},
	"以": {}, "了": {}, "将": {}, "与": {}, "吗": {}, "吧": {}, "中": {}, "#": {},
	"什么": {}, "怎么": {}, "哪个": {}, "哪些": {}, "啥": {}, "相关": {},
}

// IsStopword reports whether tk is a stopword
func IsStopword(tk string) bool {
	_, ok := stopwords[tk]
	return ok
}

// nerMultipliers maps named-entity classes to weight multipliers
var nerMultipliers = map[string]float64{
	"toxic":   2,
	"func":    1,
	"corp":    3,
	"loca":    3,
	"sch":     3,
	"stock":   3,
	"firstnm": 1,
}

// LoadNER reads a JSON object mapping term -> entity class
func LoadNER(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity table: %w", err)
	}
	ne := make(map[string]string)
	if err := json.Unmarshal(data, &ne); err != nil {
		return nil, fmt.Errorf("failed to parse entity table %s: %w", path, err)
	}
	return ne, nil
}

// LoadDocFreq reads a term.freq file
func LoadDocFreq(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frequency table: %w", err)
	}
	defer func() { _ = f.Close() }()

	df, err := ParseDocFreq(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frequency table %s: %w", path, err)
	}
	return df, nil
}

// ParseDocFreq parses newline-delimited "term\tfrequency" records.
// A record without a usable frequency column marks presence only (frequency 0).
func ParseDocFreq(r io.Reader) (map[string]int, error) {
	df := make(map[string]int)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		term, freq, found := strings.Cut(line, "\t")
		if !found {
			df[term] = 0
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(freq))
		if err != nil {
			n = 0
		}
		df[term] = n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return df, nil
}
