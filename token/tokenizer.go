// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package token

import (
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/blevesearch/go-porterstemmer"
)

// Config selects the morphological normalization strategy. If both are set,
// stemming wins.
type Config struct {
	// UseStemming applies Porter suffix-stripping. Aggressive; may reduce
	// precision.
	UseStemming bool

	// UseLemmatization resolves dictionary roots (noun-first). Preserves real
	// words.
	UseLemmatization bool
}

// DefaultConfig enables lemmatization only, matching the behavior the index
// was tuned against.
func DefaultConfig() Config {
	return Config{UseLemmatization: true}
}

// Tokenizer converts raw text into normalized tokens. The identical pipeline
// runs at index time and query time so index and query vocabulary align.
// A Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	config     Config
	lemmatizer *golem.Lemmatizer
}

// NewTokenizer creates a tokenizer. The lemmatization dictionary is loaded
// once here, never probed at call time.
func NewTokenizer(config Config) (*Tokenizer, error) {
	t := &Tokenizer{config: config}
	if config.UseLemmatization && !config.UseStemming {
		lemmatizer, err := golem.New(en.New())
		if err != nil {
			return nil, err
		}
		t.lemmatizer = lemmatizer
	}
	return t, nil
}

// Tokenize applies the full pipeline: lowercase, collapse whitespace, split
// into words, strip punctuation, drop empty/stopword/single-char tokens, then
// normalize the survivors. Empty input yields an empty (non-nil) slice.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := []string{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = stripPunctuation(word)
		if word == "" || len(word) <= 1 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, t.normalize(word))
	}
	return tokens
}

// normalize applies exactly one morphological normalization strategy.
// Stemming takes priority when both are configured.
func (t *Tokenizer) normalize(word string) string {
	switch {
	case t.config.UseStemming:
		return porterstemmer.StemString(word)
	case t.config.UseLemmatization && t.lemmatizer != nil:
		return t.lemmatizer.Lemma(word)
	default:
		return word
	}
}

// stripPunctuation removes ASCII punctuation characters anywhere in the word.
func stripPunctuation(word string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, word)
}

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
