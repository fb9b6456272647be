package mcp

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/synonym"
	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/internal/tokenizer"
)

// Resource file names looked up under the resource directory
const (
	DictionaryFile = "huqie.txt"
	DocFreqFile    = "term.freq"
	NERFile        = "ner.json"
	SynonymFile    = "synonym.json"
)

// Resources are the static tables shared by tokenization, term weighting
// and query expansion
type Resources struct {
	Dictionary *tokenizer.Dictionary
	NER        map[string]string
	DocFreq    map[string]int
	Synonyms   *synonym.Snapshot
}

// LoadResources reads the resource tables from dir. A missing file leaves
// its table empty; a file that exists but cannot be parsed is an error.
func LoadResources(dir string, logger *zap.Logger) (*Resources, error) {
	res := &Resources{
		Dictionary: tokenizer.EmptyDictionary(),
		NER:        map[string]string{},
		DocFreq:    map[string]int{},
	}

	load := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		err := fn(path)
		if errors.Is(err, fs.ErrNotExist) {
			if logger != nil {
				logger.Warn("resource missing, using empty table", zap.String("path", path))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
		return nil
	}

	if err := load(DictionaryFile, func(path string) error {
		d, err := tokenizer.LoadDictionary(path)
		if err == nil {
			res.Dictionary = d
		}
		return err
	}); err != nil {
		return nil, err
	}
	if err := load(NERFile, func(path string) error {
		ne, err := termweight.LoadNER(path)
		if err == nil {
			res.NER = ne
		}
		return err
	}); err != nil {
		return nil, err
	}
	if err := load(DocFreqFile, func(path string) error {
		df, err := termweight.LoadDocFreq(path)
		if err == nil {
			res.DocFreq = df
		}
		return err
	}); err != nil {
		return nil, err
	}
	if err := load(SynonymFile, func(path string) error {
		snap, err := synonym.LoadFile(path)
		if err == nil {
			res.Synonyms = snap
		}
		return err
	}); err != nil {
		return nil, err
	}
	return res, nil
}
