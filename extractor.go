// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package datkit

import (
	"container/heap"
	"context"
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type extractorOpts struct {
	verbose     bool
	concurrency int
	progressCh  chan<- Progress
}

// ExtractorOption configures a Extractor returned by NewExtractor.
type ExtractorOption func(*extractorOpts)

// WithVerbose enables per-entry trace logging.
func WithVerbose(v bool) ExtractorOption {
	return func(o *extractorOpts) { o.verbose = v }
}

// WithConcurrency sets the number of worker goroutines used to decompress
// entries. It defaults to runtime.GOMAXPROCS(-1).
func WithConcurrency(n int) ExtractorOption {
	return func(o *extractorOpts) { o.concurrency = n }
}

// SendUpdates requests a Progress report after every entry is
// successfully reassembled, in request order.
func SendUpdates(ch chan<- Progress) ExtractorOption {
	return func(o *extractorOpts) { o.progressCh = ch }
}

// Progress reports one entry's completion, in reassembly order.
type Progress struct {
	Duration time.Duration
	Request  uint64
	Index    int
	Size     int
}

// Extractor decompresses a set of MFT entries from a single File
// concurrently, reassembling their output in request order behind a
// single io.Reader. Requests are submitted with Submit and must be
// followed by exactly one call to Finish.
type Extractor struct {
	order uint64 // must be at start of struct to be aligned.

	ctx        context.Context
	f          *File
	workWg     sync.WaitGroup
	doneWg     sync.WaitGroup
	workCh     chan *entryReq
	doneCh     chan *entryReq
	progressCh chan<- Progress
	prd        *io.PipeReader
	pwr        *io.PipeWriter

	heap    *entryHeap
	verbose bool
}

// NewExtractor creates a parallel Extractor over f.
func NewExtractor(ctx context.Context, f *File, opts ...ExtractorOption) *Extractor {
	o := extractorOpts{concurrency: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&o)
	}
	ex := &Extractor{
		ctx:        ctx,
		f:          f,
		doneCh:     make(chan *entryReq, o.concurrency),
		workCh:     make(chan *entryReq, o.concurrency),
		progressCh: o.progressCh,
		heap:       &entryHeap{},
		verbose:    o.verbose,
	}
	ex.prd, ex.pwr = io.Pipe()
	heap.Init(ex.heap)
	ex.workWg.Add(o.concurrency)
	ex.doneWg.Add(1)
	for i := 0; i < o.concurrency; i++ {
		go func() {
			ex.worker(ctx, ex.workCh, ex.doneCh)
			ex.workWg.Done()
		}()
	}
	go func() {
		ex.assemble(ctx, ex.doneCh)
		ex.doneWg.Done()
	}()
	return ex
}

type entryReq struct {
	order uint64
	index int

	err      error
	data     []byte
	duration time.Duration
}

func (ex *Extractor) trace(format string, args ...interface{}) {
	if ex.verbose {
		log.Printf(format, args...)
	}
}

func (e *entryReq) decompress(f *File) {
	start := time.Now()
	e.data, e.err = f.Extract(e.index)
	e.duration = time.Since(start)
}

func (ex *Extractor) worker(ctx context.Context, in <-chan *entryReq, out chan<- *entryReq) {
	for {
		select {
		case req := <-in:
			if req == nil {
				return
			}
			ex.trace("extracting: entry %d", req.index)
			req.decompress(ex.f)
			select {
			case out <- req:
			case <-ctx.Done():
			}
		case <-ctx.Done():
			return
		}
	}
}

// Submit queues entry index for decompression. Requests are reassembled
// in the order Submit is called, not the order decompression finishes.
func (ex *Extractor) Submit(index int) error {
	order := atomic.AddUint64(&ex.order, 1)
	select {
	case ex.workCh <- &entryReq{order: order, index: index}:
	case <-ex.ctx.Done():
		return ex.ctx.Err()
	}
	return nil
}

// Cancel unblocks any readers of Read and the Finish call.
func (ex *Extractor) Cancel(err error) {
	ex.pwr.CloseWithError(err)
}

// Finish waits for all outstanding extraction requests to be decompressed
// and reassembled. It must be called exactly once, after every Submit.
func (ex *Extractor) Finish() error {
	var err error
	select {
	case <-ex.ctx.Done():
		err = ex.ctx.Err()
	default:
	}
	close(ex.workCh)
	ex.workWg.Wait()
	close(ex.doneCh)
	ex.doneWg.Wait()
	return err
}

// Read implements io.Reader over the reassembled, request-ordered output.
func (ex *Extractor) Read(buf []byte) (int, error) {
	return ex.prd.Read(buf)
}

type entryHeap []*entryReq

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].order < h[j].order }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(*entryReq))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// assemble drains completed requests from ch, writing their output to the
// pipe in strictly increasing request order. Entry boundaries come from
// the MFT rather than from scanning, so there is no merge-and-retry path
// for a bad boundary; a failed entry aborts reassembly with its error.
func (ex *Extractor) assemble(ctx context.Context, ch <-chan *entryReq) {
	defer ex.pwr.Close()
	expected := uint64(1)
	for {
		select {
		case req := <-ch:
			if req != nil {
				heap.Push(ex.heap, req)
			}
			for len(*ex.heap) > 0 {
				min := (*ex.heap)[0]
				if min.order != expected {
					break
				}
				heap.Remove(ex.heap, 0)
				expected++
				if min.err != nil {
					ex.pwr.CloseWithError(min.err)
					return
				}
				if _, err := ex.pwr.Write(min.data); err != nil {
					ex.pwr.CloseWithError(err)
					return
				}
				if ex.progressCh != nil {
					ex.progressCh <- Progress{
						Duration: min.duration,
						Request:  min.order,
						Index:    min.index,
						Size:     len(min.data),
					}
				}
			}
			if req == nil && len(*ex.heap) == 0 {
				return
			}
		case <-ctx.Done():
			ex.pwr.CloseWithError(ctx.Err())
			return
		}
	}
}
