// Package vocab implements the character tokenizer and the frequency-
// weighted word lexicon (C1). The tokenizer maps single characters to a
// small, fixed set of integer token ids; the lexicon is a plain
// newline-delimited word list ordered by descending frequency.
//
// Unlike the teacher's HuggingFace subword tokenizer (BPE over
// sub-word pieces, used for a 30k+ token vocabulary), the token domain here
// is a fixed 31-symbol character table dictated by the decoder head's
// output width — see DESIGN.md for why a subword tokenizer library doesn't
// fit this contract.
package vocab

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
)

// Reserved token ids. Fixed and never remapped.
const (
	PAD = 0
	UNK = 1
	SOS = 2
	EOS = 3

	// firstLetter is the token id of 'a'. Letters occupy 26 contiguous ids.
	firstLetter = 4
	// Apostrophe is reserved but disabled by default (spec.md §9 open question).
	Apostrophe = 30

	// VocabSize is a compile-time constant that must match the decoder head.
	VocabSize = 31
)

// CommonWordsTop is the size of the "common words" boost set (C8 uses it).
const CommonWordsTop = 100

// Top5000Size is the size of the secondary frequency boost set.
const Top5000Size = 5000

// MaxLexiconWords bounds lexicon memory (spec.md §4.1).
const MaxLexiconWords = 150_000

// Vocabulary holds the character↔token map and the word lexicon.
type Vocabulary struct {
	charToID map[rune]int
	idToChar map[int]rune

	words         map[string]float32 // word -> frequency in (0,1]
	wordsByLength map[int]map[string]struct{}
	commonWords   map[string]struct{}
	top5000       map[string]struct{}
}

// defaultCharMap is used when no tokenizer JSON file is loaded: PAD/UNK/SOS/EOS
// plus a..z. Apostrophe is intentionally absent (disabled by default).
func defaultCharMap() map[rune]int {
	m := map[rune]int{}
	for i := 0; i < 26; i++ {
		m[rune('a'+i)] = firstLetter + i
	}
	return m
}

// New builds a Vocabulary with the default character map and an empty lexicon.
func New() *Vocabulary {
	v := &Vocabulary{
		charToID:      defaultCharMap(),
		idToChar:      map[int]rune{},
		words:         map[string]float32{},
		wordsByLength: map[int]map[string]struct{}{},
		commonWords:   map[string]struct{}{},
		top5000:       map[string]struct{}{},
	}
	for r, id := range v.charToID {
		v.idToChar[id] = r
	}
	return v
}

// LoadTokenizer replaces the character map from a JSON file of
// char -> token id. The reserved ids (PAD/UNK/SOS/EOS) must be present and
// match the fixed constants above; the id set must be dense (0..max with no
// gaps) or loading fails.
func (v *Vocabulary) LoadTokenizer(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vocab: read tokenizer %s: %w", path, err)
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("vocab: parse tokenizer %s: %w", path, err)
	}

	chars := map[rune]int{}
	for k, id := range raw {
		r := []rune(k)
		if len(r) != 1 {
			return fmt.Errorf("vocab: tokenizer key %q is not a single character", k)
		}
		chars[r[0]] = id
	}

	seen := map[int]bool{}
	maxID := -1
	for _, id := range chars {
		if seen[id] {
			return fmt.Errorf("vocab: duplicate token id %d", id)
		}
		seen[id] = true
		if id > maxID {
			maxID = id
		}
	}
	for id := 0; id <= maxID; id++ {
		if !seen[id] {
			return fmt.Errorf("vocab: token ids not dense — missing id %d", id)
		}
	}
	for name, want := range map[string]int{"PAD": PAD, "UNK": UNK, "SOS": SOS, "EOS": EOS} {
		found := false
		for _, id := range chars {
			if id == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("vocab: reserved id %s=%d missing from tokenizer file", name, want)
		}
	}

	idToChar := make(map[int]rune, len(chars))
	for r, id := range chars {
		idToChar[id] = r
	}

	v.charToID = chars
	v.idToChar = idToChar
	return nil
}

// Encode converts a word into token ids (no SOS/EOS added). Fails with
// swipeerr.ErrUnknownChar wrapped if a character has no mapped id.
func (v *Vocabulary) Encode(word string) ([]int, error) {
	ids := make([]int, 0, len(word))
	for _, r := range word {
		id, ok := v.charToID[r]
		if !ok {
			return nil, fmt.Errorf("vocab: char %q: %w", r, swipeerr.ErrUnknownChar)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode converts token ids back to a string, ignoring SOS/PAD/EOS/UNK.
func (v *Vocabulary) Decode(tokens []int) string {
	out := make([]rune, 0, len(tokens))
	for _, t := range tokens {
		switch t {
		case PAD, UNK, SOS, EOS:
			continue
		}
		if r, ok := v.idToChar[t]; ok {
			out = append(out, r)
		}
	}
	return string(out)
}

// IsWord reports whether s is present in the loaded lexicon.
func (v *Vocabulary) IsWord(s string) bool {
	_, ok := v.words[s]
	return ok
}

// Freq returns the frequency of s, or 0 if it is not in the lexicon.
func (v *Vocabulary) Freq(s string) float32 {
	return v.words[s]
}

// IsCommon reports whether s is in the top-CommonWordsTop frequency set.
func (v *Vocabulary) IsCommon(s string) bool {
	_, ok := v.commonWords[s]
	return ok
}

// IsTop5000 reports whether s is in the top-Top5000Size frequency set.
func (v *Vocabulary) IsTop5000(s string) bool {
	_, ok := v.top5000[s]
	return ok
}

// WordsOfLength returns the set of lexicon words with exactly n characters.
func (v *Vocabulary) WordsOfLength(n int) map[string]struct{} {
	return v.wordsByLength[n]
}

// LoadLexicon reads one or more newline-delimited lowercase word lists.
// The first file's line order determines frequency: the i-th line
// (0-indexed) gets frequency 1/(i+1). Subsequent files are unioned in
// without overwriting words already present (so the first file's frequency
// wins on overlap). Loading stops once MaxLexiconWords words are held.
func (v *Vocabulary) LoadLexicon(paths ...string) error {
	for _, path := range paths {
		if err := v.loadOneLexicon(path); err != nil {
			return err
		}
		if len(v.words) >= MaxLexiconWords {
			break
		}
	}
	v.rebuildDerived()
	return nil
}

func (v *Vocabulary) loadOneLexicon(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vocab: open lexicon %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	i := 0
	for sc.Scan() {
		if len(v.words) >= MaxLexiconWords {
			break
		}
		word := sc.Text()
		if word == "" {
			continue
		}
		if _, exists := v.words[word]; exists {
			i++
			continue
		}
		v.words[word] = 1.0 / float32(i+1)
		i++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("vocab: scan lexicon %s: %w", path, err)
	}
	return nil
}

// rebuildDerived recomputes wordsByLength, commonWords and top5000 from
// v.words. Must be called after every lexicon mutation.
func (v *Vocabulary) rebuildDerived() {
	v.wordsByLength = map[int]map[string]struct{}{}
	for w := range v.words {
		n := len(w)
		set, ok := v.wordsByLength[n]
		if !ok {
			set = map[string]struct{}{}
			v.wordsByLength[n] = set
		}
		set[w] = struct{}{}
	}

	ordered := make([]string, 0, len(v.words))
	for w := range v.words {
		ordered = append(ordered, w)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if v.words[ordered[i]] != v.words[ordered[j]] {
			return v.words[ordered[i]] > v.words[ordered[j]]
		}
		return ordered[i] < ordered[j]
	})

	v.commonWords = map[string]struct{}{}
	for i := 0; i < len(ordered) && i < CommonWordsTop; i++ {
		v.commonWords[ordered[i]] = struct{}{}
	}
	v.top5000 = map[string]struct{}{}
	for i := 0; i < len(ordered) && i < Top5000Size; i++ {
		v.top5000[ordered[i]] = struct{}{}
	}
}

// Len returns the number of words currently held in the lexicon.
func (v *Vocabulary) Len() int {
	return len(v.words)
}
