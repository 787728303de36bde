package vocab

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := New()
	for _, w := range []string{"hello", "swipe", "a", "zebra"} {
		ids, err := v.Encode(w)
		if err != nil {
			t.Fatalf("Encode(%q): %v", w, err)
		}
		got := v.Decode(ids)
		if got != w {
			t.Errorf("Decode(Encode(%q)) = %q, want %q", w, got, w)
		}
	}
}

func TestEncodeUnknownChar(t *testing.T) {
	v := New()
	if _, err := v.Encode("hello!"); err == nil {
		t.Fatal("expected error for unknown character '!'")
	}
}

func TestDecodeIgnoresReservedTokens(t *testing.T) {
	v := New()
	ids, _ := v.Encode("cat")
	full := append([]int{SOS}, ids...)
	full = append(full, EOS, PAD, PAD)
	if got := v.Decode(full); got != "cat" {
		t.Errorf("Decode = %q, want %q", got, "cat")
	}
}

func TestLoadLexiconFrequencyOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("the\nquick\nbrown\nfox\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := New()
	if err := v.LoadLexicon(path); err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	if v.Freq("the") != 1.0 {
		t.Errorf("freq(the) = %f, want 1.0", v.Freq("the"))
	}
	if v.Freq("quick") != 0.5 {
		t.Errorf("freq(quick) = %f, want 0.5", v.Freq("quick"))
	}
	if !v.IsCommon("the") {
		t.Error("expected 'the' to be a common word")
	}
	if v.IsWord("missing") {
		t.Error("did not expect 'missing' to be a word")
	}
}

func TestLoadLexiconEnhancedFileDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	extra := filepath.Join(dir, "extra.txt")
	os.WriteFile(base, []byte("cat\ndog\n"), 0o644)
	os.WriteFile(extra, []byte("bird\ncat\n"), 0o644)

	v := New()
	if err := v.LoadLexicon(base, extra); err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	if v.Freq("cat") != 1.0 {
		t.Errorf("base file frequency for 'cat' should win, got %f", v.Freq("cat"))
	}
	if !v.IsWord("bird") {
		t.Error("expected 'bird' from enhanced file to be unioned in")
	}
}

func TestWordsOfLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	os.WriteFile(path, []byte("cat\ndog\nbird\n"), 0o644)
	v := New()
	v.LoadLexicon(path)

	set := v.WordsOfLength(3)
	if len(set) != 2 {
		t.Fatalf("len(WordsOfLength(3)) = %d, want 2", len(set))
	}
	if _, ok := set["cat"]; !ok {
		t.Error("expected 'cat' in 3-letter set")
	}
}

func TestLoadTokenizerValidatesDenseness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tok.json")
	// Missing id 1 (gap) should fail.
	os.WriteFile(path, []byte(`{"z":0,"b":2}`), 0o644)
	v := New()
	if err := v.LoadTokenizer(path); err == nil {
		t.Fatal("expected error for non-dense token ids")
	}
}
