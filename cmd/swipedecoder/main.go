package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/tui"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
	"github.com/cleverkeys/swipedecoder/internal/geometry"
	"github.com/cleverkeys/swipedecoder/internal/swipe"
)

var (
	defaultModelDir   = "./models"
	defaultOrtLib     = "./lib/onnxruntime.so"
	defaultThreads    = 0
	defaultBeamWidth  = 8
	defaultMaxLen     = 35
	defaultConfidence = 0.1
)

func main() {
	root := &cobra.Command{
		Use:   "swipedecoder",
		Short: "On-device neural swipe-typing decoder",
		Long:  "swipedecoder — offline gesture-to-word prediction powered by a transformer encoder-decoder and a frequency-weighted lexicon.",
	}

	var cfg struct {
		ModelDir  string  `toml:"model-dir"`
		OrtLib    string  `toml:"ort-lib"`
		Threads   int     `toml:"threads"`
		BeamWidth int     `toml:"beam-width"`
		MaxLen    int     `toml:"max-len"`
		MinConf   float64 `toml:"min-confidence"`
	}

	if b, err := os.ReadFile(".swipedecoder.toml"); err == nil {
		if err := toml.Unmarshal(b, &cfg); err == nil {
			if cfg.ModelDir != "" {
				defaultModelDir = cfg.ModelDir
			}
			if cfg.OrtLib != "" {
				defaultOrtLib = cfg.OrtLib
			}
			if cfg.Threads > 0 {
				defaultThreads = cfg.Threads
			}
			if cfg.BeamWidth > 0 {
				defaultBeamWidth = cfg.BeamWidth
			}
			if cfg.MaxLen > 0 {
				defaultMaxLen = cfg.MaxLen
			}
			if cfg.MinConf > 0 {
				defaultConfidence = cfg.MinConf
			}
		}
	}

	var modelDir string
	var ortLib string
	var numThreads int
	var beamWidth int
	var maxLen int
	var minConf float64
	var lexiconPath string
	var tokenizerPath string

	root.PersistentFlags().StringVar(&modelDir, "model-dir", defaultModelDir, "directory containing encoder.onnx and decoder.onnx")
	root.PersistentFlags().StringVar(&ortLib, "ort-lib", defaultOrtLib, "path to onnxruntime.so (auto-detected if empty)")
	root.PersistentFlags().IntVar(&numThreads, "threads", defaultThreads, "ONNX intra-op thread count (0 = auto, usually NumCPU capped at 4)")
	root.PersistentFlags().IntVar(&beamWidth, "beam-width", defaultBeamWidth, "beam search width (1..16)")
	root.PersistentFlags().IntVar(&maxLen, "max-len", defaultMaxLen, "max decoder steps (10..50)")
	root.PersistentFlags().Float64Var(&minConf, "min-confidence", defaultConfidence, "drop beams below this normalized confidence")
	root.PersistentFlags().StringVar(&lexiconPath, "lexicon", "./models/words.txt", "newline-delimited word list, ordered by frequency")
	root.PersistentFlags().StringVar(&tokenizerPath, "tokenizer", "", "path to tokenizer.json (empty = built-in a..z map)")

	resolveOrtLib := func(flag string) string {
		if flag != "" {
			return flag
		}
		if exe, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(exe), "lib", "onnxruntime.so")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		if _, err := os.Stat(defaultOrtLib); err == nil {
			abs, _ := filepath.Abs(defaultOrtLib)
			return abs
		}
		return ""
	}

	predictConfig := func() swipe.PredictConfig {
		c := swipe.DefaultPredictConfig()
		c.BeamWidth = beamWidth
		c.MaxLen = maxLen
		c.ConfidenceThreshold = minConf
		if c.SeqWindow < maxLen+1 {
			c.SeqWindow = maxLen + 1
		}
		return c
	}

	// openFacade loads both model sessions and the lexicon, printing status
	// so the user knows it isn't stuck (model loading can take 1-4s).
	openFacade := func() (*swipe.Facade, error) {
		fmt.Fprint(os.Stderr, "Loading models… ")
		f := swipe.New()
		opts := onnxrt.Options{OrtLibPath: resolveOrtLib(ortLib), NumThreads: numThreads}
		lexicons := []string{}
		if _, err := os.Stat(lexiconPath); err == nil {
			lexicons = append(lexicons, lexiconPath)
		}
		err := f.Init(
			filepath.Join(modelDir, "encoder.onnx"),
			filepath.Join(modelDir, "decoder.onnx"),
			tokenizerPath,
			lexicons,
			256,
			opts,
			predictConfig(),
		)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, err
		}
		if err := f.SetLayout(tui.QwertyLayout(), 1080, 360); err != nil {
			return nil, err
		}
		fmt.Fprintln(os.Stderr, "ready.")
		return f, nil
	}

	// ---- swipedecoder predict <word> ---------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "predict <word>",
		Short: "Synthesize a swipe for <word> and print ranked candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			defer f.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g := tui.SynthesizeGesture(args[0])
			results, err := f.Predict(ctx, g, predictConfig())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no candidates")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%6d  %s\n", r.Score, r.Word)
			}
			return nil
		},
	})

	// ---- swipedecoder tui ---------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Launch interactive gesture-replay interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			defer f.Shutdown()

			m := tui.New(f, predictConfig())
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	})

	// ---- swipedecoder stats -------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show tensor pool and queue statistics after a sample prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			defer f.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := f.Predict(ctx, tui.SynthesizeGesture("hello"), predictConfig()); err != nil {
				fmt.Fprintf(os.Stderr, "warm-up predict failed: %v\n", err)
			}

			s := f.Stats()
			fmt.Printf("pool acquisitions: %d\n", s.Pool.Acquisitions)
			fmt.Printf("pool hits:         %d\n", s.Pool.Hits)
			fmt.Printf("pool misses:       %d\n", s.Pool.Misses)
			fmt.Printf("pool outstanding:  %d\n", s.Pool.Outstanding)
			fmt.Printf("encoder avg ms:    %.2f\n", s.AvgEncoderMillis)
			fmt.Printf("decoder avg ms:    %.2f\n", s.AvgDecoderMillis)
			fmt.Printf("encoder queue:     %d\n", s.EncoderQueueLen)
			fmt.Printf("decoder queue:     %d\n", s.DecoderQueueLen)
			return nil
		},
	})

	// ---- swipedecoder bench -------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "bench",
		Short: "Benchmark end-to-end prediction latency on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			defer f.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			words := []string{"the", "keyboard", "swipe", "prediction"}
			fmt.Printf("\n%-12s  %10s\n", "word", "latency")
			fmt.Println(strings.Repeat("─", 26))
			for _, w := range words {
				start := time.Now()
				if _, err := f.Predict(ctx, tui.SynthesizeGesture(w), predictConfig()); err != nil {
					return fmt.Errorf("bench %s: %w", w, err)
				}
				fmt.Printf("%-12s  %10s\n", w, time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	})

	// ---- swipedecoder layout --watch <file> --------------------------------
	var watchFlag bool
	layoutCmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "Load (and optionally watch) a JSON key layout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := vocab.New()
			geo := geometry.New()
			w, err := geometry.WatchLayout(geo, v, args[0])
			if err != nil {
				return err
			}
			fmt.Println("layout loaded.")
			if !watchFlag {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			fmt.Println("watching for changes (Ctrl+C to stop)…")
			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()
			return w.Run(done)
		},
	}
	layoutCmd.Flags().BoolVar(&watchFlag, "watch", false, "keep running and hot-reload on file changes")
	root.AddCommand(layoutCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
