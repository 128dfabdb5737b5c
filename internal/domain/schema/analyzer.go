package schema

import (
	"encoding/json"
	"sort"

	"github.com/kailas-cloud/postdex/internal/domain/mapping"
)

// LangLowercase requests the lowercase-only analyzer.
const LangLowercase = "lowercase"

// Analyzer is one custom analyzer definition.
type Analyzer struct {
	Type       string   `json:"type"`
	Tokenizer  string   `json:"tokenizer"`
	Filter     []string `json:"filter,omitempty"`
	CharFilter []string `json:"char_filter,omitempty"`
	// Lang is the language the analyzer was built for; not part of the wire form.
	Lang string `json:"-"`
}

// TokenFilter is a named filter referenced by analyzers.
type TokenFilter struct {
	Type      string `json:"type"`
	Language  string `json:"language,omitempty"`
	Stopwords string `json:"stopwords,omitempty"`
}

// Analysis is the analyzer table plus the designated default.
type Analysis struct {
	Analyzers map[string]Analyzer
	Filters   map[string]TokenFilter
	Default   string
}

// MarshalJSON emits the engine form, where the default analyzer is a copy
// stored under the reserved "default" key.
func (a Analysis) MarshalJSON() ([]byte, error) {
	analyzers := make(map[string]Analyzer, len(a.Analyzers)+1)
	for name, an := range a.Analyzers {
		analyzers[name] = an
	}
	if def, ok := a.Analyzers[a.Default]; ok {
		analyzers[mapping.AnalyzerDefault] = def
	}
	out := map[string]any{"analyzer": analyzers}
	if len(a.Filters) > 0 {
		out["filter"] = a.Filters
	}
	return json.Marshal(out)
}

// Names returns the analyzer names in sorted order.
func (a Analysis) Names() []string {
	names := make([]string, 0, len(a.Analyzers))
	for n := range a.Analyzers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type langSpec struct {
	stemmer   string
	stopwords string
	cjk       bool
}

var languages = map[string]langSpec{
	"en": {stemmer: "english", stopwords: "_english_"},
	"es": {stemmer: "light_spanish", stopwords: "_spanish_"},
	"fr": {stemmer: "light_french", stopwords: "_french_"},
	"de": {stemmer: "light_german", stopwords: "_german_"},
	"it": {stemmer: "light_italian", stopwords: "_italian_"},
	"pt": {stemmer: "light_portuguese", stopwords: "_portuguese_"},
	"nl": {stemmer: "dutch", stopwords: "_dutch_"},
	"ru": {stemmer: "russian", stopwords: "_russian_"},
	"sv": {stemmer: "swedish", stopwords: "_swedish_"},
	"ar": {stemmer: "arabic", stopwords: "_arabic_"},
	"ja": {cjk: true},
	"zh": {cjk: true},
	"ko": {cjk: true},
}

// AnalyzerName returns the table key for a language.
func AnalyzerName(lang string) string {
	if lang == LangLowercase {
		return mapping.AnalyzerLowercase
	}
	return lang + "_analyzer"
}

// SupportedLanguage reports whether lang has a stemming analyzer.
func SupportedLanguage(lang string) bool {
	_, ok := languages[lang]
	return ok
}

// AnalyzerBuilder assembles analyzer tables keyed by language.
type AnalyzerBuilder struct{}

// Build creates analyzers for each requested language. Unknown languages get
// a standard tokenizer with lowercasing only. The first language becomes the default.
func (AnalyzerBuilder) Build(langs []string) Analysis {
	a := Analysis{
		Analyzers: make(map[string]Analyzer, len(langs)),
		Filters:   make(map[string]TokenFilter),
	}
	for _, lang := range langs {
		name := AnalyzerName(lang)
		if _, done := a.Analyzers[name]; done {
			continue
		}
		a.Analyzers[name] = buildAnalyzer(lang, a.Filters)
		if a.Default == "" {
			a.Default = name
		}
	}
	return a
}

func buildAnalyzer(lang string, filters map[string]TokenFilter) Analyzer {
	if lang == LangLowercase {
		return Analyzer{Type: "custom", Tokenizer: "keyword", Filter: []string{"lowercase"}, Lang: lang}
	}
	def, ok := languages[lang]
	switch {
	case !ok:
		return Analyzer{Type: "custom", Tokenizer: "standard", Filter: []string{"lowercase"}, Lang: lang}
	case def.cjk:
		return Analyzer{
			Type:      "custom",
			Tokenizer: "standard",
			Filter:    []string{"cjk_width", "lowercase", "cjk_bigram"},
			Lang:      lang,
		}
	}

	stop := lang + "_stop"
	stem := lang + "_stemmer"
	filters[stop] = TokenFilter{Type: "stop", Stopwords: def.stopwords}
	filters[stem] = TokenFilter{Type: "stemmer", Language: def.stemmer}
	return Analyzer{
		Type:       "custom",
		Tokenizer:  "standard",
		Filter:     []string{"lowercase", stop, stem},
		CharFilter: []string{"html_strip"},
		Lang:       lang,
	}
}
