// Package pipeline implements the two-worker scheduler (C7): one goroutine
// drives the encoder session, one drives the decoder session, connected by
// bounded channels. The shape follows the teacher's watcher.Watcher select
// loop and cmd/sift/main.go's hard-exit watchdog goroutine — a dedicated
// goroutine per resource, cooperative cancellation via context, no user code
// ever runs on the worker goroutines themselves.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cleverkeys/swipedecoder/internal/decoder"
	"github.com/cleverkeys/swipedecoder/internal/encoder"
	"github.com/cleverkeys/swipedecoder/internal/rerank"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// encoderJob is submitted to the encoder worker. reply carries the result
// (or error) back to the caller goroutine that's blocked awaiting it —
// "queue send" is the first of the three suspension points.
type encoderJob struct {
	ctx      context.Context
	features *trajectory.Features
	gctx     rerank.GestureContext
	beamCfg  decoder.Config
	reply    chan jobResult
}

// decoderJob carries an encoder's output to the decoder worker.
type decoderJob struct {
	ctx     context.Context
	memory  []float32
	hEnc    int64
	srcMask []bool
	gctx    rerank.GestureContext
	beamCfg decoder.Config
	reply   chan jobResult
}

type jobResult struct {
	results []rerank.Result
	err     error
}

// Scheduler owns the two worker goroutines and their bounded queues.
type Scheduler struct {
	enc *encoder.Encoder
	dec *decoder.Decoder
	v   *vocab.Vocabulary
	pool *tensorpool.Pool

	encoderQueue chan encoderJob
	decoderQueue chan decoderJob

	encoderNanos atomic.Int64
	encoderCalls atomic.Int64
	decoderNanos atomic.Int64
	decoderCalls atomic.Int64

	done chan struct{}
}

// New starts the two worker goroutines with queues of capacity queueCap.
func New(enc *encoder.Encoder, dec *decoder.Decoder, v *vocab.Vocabulary, pool *tensorpool.Pool, queueCap int) *Scheduler {
	if queueCap < 1 {
		queueCap = 1
	}
	s := &Scheduler{
		enc:          enc,
		dec:          dec,
		v:            v,
		pool:         pool,
		encoderQueue: make(chan encoderJob, queueCap),
		decoderQueue: make(chan decoderJob, queueCap),
		done:         make(chan struct{}),
	}
	go s.runEncoderWorker()
	go s.runDecoderWorker()
	return s
}

// QueueDepths reports the current number of queued (not yet picked up) jobs
// on each worker's channel, for Stats reporting.
func (s *Scheduler) QueueDepths() (encoderLen, decoderLen int) {
	return len(s.encoderQueue), len(s.decoderQueue)
}

// LatencyStats reports running average encoder and decoder call latency in
// milliseconds, for Stats reporting.
func (s *Scheduler) LatencyStats() (avgEncoderMs, avgDecoderMs float64) {
	if n := s.encoderCalls.Load(); n > 0 {
		avgEncoderMs = float64(s.encoderNanos.Load()) / float64(n) / 1e6
	}
	if n := s.decoderCalls.Load(); n > 0 {
		avgDecoderMs = float64(s.decoderNanos.Load()) / float64(n) / 1e6
	}
	return
}

// Shutdown stops both worker goroutines. In-flight jobs already pulled off a
// queue are allowed to finish; queued-but-unstarted jobs are drained with
// swipeerr.ErrCancelled.
func (s *Scheduler) Shutdown() {
	close(s.done)
}

// Submit runs one gesture through the full pipeline, blocking until a
// result, cancellation, or error. The call suspends at exactly three points:
// the queue send below, the encoder-output receive inside the encoder
// worker's handoff, and the final-result receive here.
func (s *Scheduler) Submit(ctx context.Context, f *trajectory.Features, gctx rerank.GestureContext, beamCfg decoder.Config) ([]rerank.Result, error) {
	reply := make(chan jobResult, 1)
	job := encoderJob{ctx: ctx, features: f, gctx: gctx, beamCfg: beamCfg, reply: reply}

	select {
	case s.encoderQueue <- job:
	case <-ctx.Done():
		return nil, fmt.Errorf("pipeline: submit: %w", swipeerr.ErrCancelled)
	case <-s.done:
		return nil, fmt.Errorf("pipeline: scheduler shut down: %w", swipeerr.ErrCancelled)
	}

	select {
	case res := <-reply:
		return res.results, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("pipeline: await result: %w", swipeerr.ErrCancelled)
	}
}

// runEncoderWorker consumes encoderJobs strictly in FIFO order (channel
// ordering guarantees this), runs the encoder, and hands the memory tensor
// to the decoder worker.
func (s *Scheduler) runEncoderWorker() {
	for {
		select {
		case <-s.done:
			return
		case job, ok := <-s.encoderQueue:
			if !ok {
				return
			}
			s.handleEncoderJob(job)
		}
	}
}

func (s *Scheduler) handleEncoderJob(job encoderJob) {
	if job.ctx.Err() != nil {
		job.reply <- jobResult{err: fmt.Errorf("pipeline: %w", swipeerr.ErrCancelled)}
		return
	}

	encStart := time.Now()
	out, err := s.enc.Run(job.features, s.pool)
	s.encoderNanos.Add(time.Since(encStart).Nanoseconds())
	s.encoderCalls.Add(1)
	if err != nil {
		job.reply <- jobResult{err: err}
		return
	}

	dj := decoderJob{
		ctx:     job.ctx,
		memory:  out.Memory,
		hEnc:    out.HEnc,
		srcMask: copyMask(job.features),
		gctx:    job.gctx,
		beamCfg: job.beamCfg,
		reply:   job.reply,
	}

	// Encoder-output receive: the decoder worker is the one blocking here,
	// but from the caller's perspective this send is where the pipeline
	// overlaps — the next encoder job can start as soon as this returns.
	select {
	case s.decoderQueue <- dj:
	case <-s.done:
		job.reply <- jobResult{err: fmt.Errorf("pipeline: %w", swipeerr.ErrCancelled)}
	case <-job.ctx.Done():
		job.reply <- jobResult{err: fmt.Errorf("pipeline: %w", swipeerr.ErrCancelled)}
	}
}

func copyMask(f *trajectory.Features) []bool {
	out := make([]bool, trajectory.L)
	copy(out, f.SrcMask[:])
	return out
}

// runDecoderWorker consumes decoderJobs in FIFO order, runs beam search, and
// re-ranks the finished beams before sending the final result.
func (s *Scheduler) runDecoderWorker() {
	for {
		select {
		case <-s.done:
			return
		case job, ok := <-s.decoderQueue:
			if !ok {
				return
			}
			s.handleDecoderJob(job)
		}
	}
}

func (s *Scheduler) handleDecoderJob(job decoderJob) {
	if job.ctx.Err() != nil {
		job.reply <- jobResult{err: fmt.Errorf("pipeline: %w", swipeerr.ErrCancelled)}
		return
	}

	decStart := time.Now()
	cands, _, err := s.dec.Run(job.ctx, job.memory, job.hEnc, job.srcMask, s.v, s.pool, job.beamCfg)
	s.decoderNanos.Add(time.Since(decStart).Nanoseconds())
	s.decoderCalls.Add(1)
	if err != nil {
		job.reply <- jobResult{err: err}
		return
	}

	ranked := rerank.Rank(cands, s.v, job.gctx)
	job.reply <- jobResult{results: ranked}
}
