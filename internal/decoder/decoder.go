package decoder

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// Names are bit-exact per spec.md §6.
var (
	inputNames  = []string{"memory", "target_tokens", "target_mask", "src_mask"}
	outputNames = []string{"logits"}
)

// Decoder wraps the decoder ONNX session and runs batched beam search.
type Decoder struct {
	sess *onnxrt.Session
}

// New loads the decoder model.
func New(modelPath string, opts onnxrt.Options) (*Decoder, error) {
	sess, err := onnxrt.NewSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return &Decoder{sess: sess}, nil
}

// Close releases the decoder session.
func (d *Decoder) Close() {
	if d != nil {
		d.sess.Close()
	}
}

// Candidate is a finished beam translated into a surface word.
type Candidate struct {
	Word       string
	Confidence float64
	Tokens     []int
}

// Run performs step-synchronous batched beam search over a single gesture's
// memory tensor, per spec.md §4.6. memory is the flattened [1, L, HEnc]
// encoder output and srcMask is the [L]bool source-validity mask produced
// alongside it. v is used to decode finished token sequences into words and
// to reject non-alphabetic results.
//
// The decoder reads one live-beam batch per step: step 1 starts from a
// single beam [SOS]; each subsequent step expands every live beam by its
// best BeamWidth continuations, merges them with previously finished beams,
// and keeps the top BeamWidth by the (score desc, len asc, tokens lex asc)
// tie-break. A beam is finished when it emits EOS or holds MaxLen tokens
// after SOS. Search stops when every kept beam is finished or MaxLen steps
// have run. The returned bool is the TruncatedBeam warning: it is set when a
// beam was discarded for outgrowing the SeqWindow token window.
//
// ctx is checked once per step, immediately after runStep returns and
// before beam expansion — cancellation is therefore bounded by one decoder
// call plus the pool-release time runStep's deferred releases already pay
// for, per spec.md §5/§4.7. A tripped ctx aborts the search and returns
// swipeerr.ErrCancelled; no partial result is produced.
func (d *Decoder) Run(ctx context.Context, memory []float32, hEnc int64, srcMask []bool, v *vocab.Vocabulary, pool *tensorpool.Pool, cfg Config) ([]Candidate, bool, error) {
	if cfg.BeamWidth <= 0 || cfg.MaxLen <= 0 {
		return nil, false, fmt.Errorf("decoder: invalid config %+v: %w", cfg, swipeerr.ErrInvalidGesture)
	}
	if cfg.SeqWindow < cfg.MaxLen+1 {
		return nil, false, fmt.Errorf("decoder: seq_window %d must be >= max_len+1 (%d): %w", cfg.SeqWindow, cfg.MaxLen+1, swipeerr.ErrInvalidGesture)
	}

	live := []beam{{tokens: []int{vocab.SOS}, score: 0, finished: false}}
	var finished []beam
	truncated := false

	for step := 0; step < cfg.MaxLen; step++ {
		if len(live) == 0 {
			break
		}

		logitsBatch, err := d.runStep(ctx, memory, hEnc, srcMask, live, cfg, pool)
		if err != nil {
			return nil, false, err
		}
		if err := ctx.Err(); err != nil {
			return nil, false, fmt.Errorf("decoder: step %d: %w", step, swipeerr.ErrCancelled)
		}

		var expanded []beam
		for bi, b := range live {
			lp := logSoftmax(logitsBatch[bi])
			for _, nf := range lp {
				if math.IsNaN(nf) || math.IsInf(nf, 0) {
					return nil, false, fmt.Errorf("decoder: non-finite log-prob at step %d: %w: %w", step, swipeerr.ErrDecoder, swipeerr.ErrNonFinite)
				}
			}
			cands := topK(lp, cfg.BeamWidth)
			for _, c := range cands {
				tokens := append(append([]int{}, b.tokens...), c.token)
				nb := beam{tokens: tokens, score: b.score + c.logp}
				nb.finished = c.token == vocab.EOS || len(nb.tokens)-1 >= cfg.MaxLen
				expanded = append(expanded, nb)
			}
		}

		// Discard any beam whose token count has outgrown the fixed
		// T-wide decoder window and record it as a TruncatedBeam warning
		// per spec.md §4.6 edge cases. With SeqWindow validated above to
		// be >= MaxLen+1 this cannot trigger on a conforming config; it
		// guards a decoder model that emits more continuations than
		// expected before reaching EOS or MaxLen.
		live2 := expanded[:0]
		for _, b := range expanded {
			if len(b.tokens) > cfg.SeqWindow {
				truncated = true
				continue
			}
			live2 = append(live2, b)
		}
		expanded = live2

		expanded = append(expanded, finished...)
		kept := selectTop(expanded, cfg.BeamWidth)

		live = live[:0]
		finished = finished[:0]
		for _, b := range kept {
			if b.finished {
				finished = append(finished, b)
			} else {
				live = append(live, b)
			}
		}

		if len(live) == 0 {
			break
		}
		if step == cfg.MaxLen-1 && len(live) > 0 {
			truncated = true
			finished = append(finished, live...)
			live = nil
		}
	}

	finished = append(finished, live...)
	finished = selectTop(finished, cfg.BeamWidth)

	out := make([]Candidate, 0, len(finished))
	for _, b := range finished {
		toks := stripSpecial(b.tokens)
		word := v.Decode(toks)
		if word == "" || !isAlphabetic(word) {
			continue
		}
		n := len(toks)
		if n == 0 {
			n = 1
		}
		conf := math.Exp(b.score / float64(n))
		if conf < cfg.ConfThreshold {
			continue
		}
		out = append(out, Candidate{Word: word, Confidence: conf, Tokens: toks})
	}

	return out, truncated, nil
}

func stripSpecial(tokens []int) []int {
	var out []int
	for _, t := range tokens {
		if t == vocab.SOS || t == vocab.EOS || t == vocab.PAD {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return len(s) > 0
}

// runStep runs the decoder once over the batch of live beams, returning one
// logits row per beam (the final step's distribution over the vocabulary).
// ctx is checked before issuing the model call so a cancellation that lands
// between steps never starts a new decoder call.
func (d *Decoder) runStep(ctx context.Context, memory []float32, hEnc int64, srcMask []bool, live []beam, cfg Config, pool *tensorpool.Pool) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("decoder: %w", swipeerr.ErrCancelled)
	}

	b := int64(len(live))
	T := int64(cfg.SeqWindow)

	memHandle, memTensor, err := pool.Float32([]int64{b, trajectory.L, hEnc})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer memHandle.Release()
	md := memTensor.GetData()
	row := trajectory.L * int(hEnc)
	for i := 0; i < len(live); i++ {
		copy(md[i*row:(i+1)*row], memory)
	}

	srcHandle, srcTensor, err := pool.Bool([]int64{b, trajectory.L})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer srcHandle.Release()
	sd := srcTensor.GetData()
	for i := 0; i < len(live); i++ {
		copy(sd[i*trajectory.L:(i+1)*trajectory.L], srcMask)
	}

	tokHandle, tokTensor, err := pool.Int64([]int64{b, T})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer tokHandle.Release()
	tgtHandle, tgtMaskTensor, err := pool.Bool([]int64{b, T})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer tgtHandle.Release()

	td := tokTensor.GetData()
	mkd := tgtMaskTensor.GetData()
	for i, beam := range live {
		off := i * int(T)
		n := len(beam.tokens)
		for j := 0; j < int(T); j++ {
			if j < n {
				td[off+j] = int64(beam.tokens[j])
				mkd[off+j] = true
			} else {
				td[off+j] = vocab.PAD
				mkd[off+j] = false
			}
		}
	}

	logitsHandle, logitsTensor, err := pool.Float32([]int64{b, T, int64(vocab.VocabSize)})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	defer logitsHandle.Release()

	inputs := []ort.Value{memTensor, tokTensor, tgtMaskTensor, srcTensor}
	outputs := []ort.Value{logitsTensor}
	if err := d.sess.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("decoder: run: %w: %w", swipeerr.ErrDecoder, err)
	}

	shape := logitsTensor.GetShape()
	data := logitsTensor.GetData()

	out := make([][]float32, len(live))
	switch len(shape) {
	case 3:
		// [B, T, VOCAB]: last real token position per beam (n-1).
		vocabSize := int(shape[2])
		tDim := int(shape[1])
		for i, beam := range live {
			pos := len(beam.tokens) - 1
			if pos >= tDim {
				pos = tDim - 1
			}
			start := (i*tDim + pos) * vocabSize
			out[i] = append([]float32{}, data[start:start+vocabSize]...)
		}
	case 2:
		// [B, VOCAB]: already the next-token distribution.
		vocabSize := int(shape[1])
		for i := range live {
			start := i * vocabSize
			out[i] = append([]float32{}, data[start:start+vocabSize]...)
		}
	default:
		return nil, fmt.Errorf("decoder: output rank %d: %w: %w", len(shape), swipeerr.ErrDecoder, swipeerr.ErrShape)
	}

	return out, nil
}
