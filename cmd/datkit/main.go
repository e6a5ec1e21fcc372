// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/mistveil/datkit"
)

type CommonFlags struct {
	Concurrency int  `subcmd:"concurrency,4,'concurrency for parallel extraction'"`
	Verbose     bool `subcmd:"verbose,false,verbose debug/trace information"`
}

type listFlags struct {
	CommonFlags
}

type extractFlags struct {
	CommonFlags
	FileID     uint32 `subcmd:"file-id,0,'MFT file id of the entry to extract'"`
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type extractAllFlags struct {
	CommonFlags
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
	OutputDir   string `subcmd:"output-dir,.,'directory to write extracted entries into'"`
}

type inspectFlags struct {
	CommonFlags
	Raw bool `subcmd:"raw,false,hex-dump the raw (still compressed) entry bytes instead of decompressing"`
}

var cmdSet *subcmd.CommandSet

func init() {
	defaultConcurrency := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	listCmd := subcmd.NewCommand("list",
		subcmd.MustRegisterFlagStruct(&listFlags{}, nil, nil),
		list, subcmd.ExactlyNumArguments(1))
	listCmd.Document(`list the MFT entries in a .dat archive.`)

	extractCmd := subcmd.NewCommand("extract",
		subcmd.MustRegisterFlagStruct(&extractFlags{}, nil, nil),
		extract, subcmd.ExactlyNumArguments(1))
	extractCmd.Document(`extract a single entry from a .dat archive by file id.`)

	extractAllCmd := subcmd.NewCommand("extract-all",
		subcmd.MustRegisterFlagStruct(&extractAllFlags{}, defaultConcurrency, nil),
		extractAll, subcmd.ExactlyNumArguments(1))
	extractAllCmd.Document(`extract every entry from a .dat archive in parallel into a directory, one file per entry.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.ExactlyNumArguments(2))
	inspectCmd.Document(`hex-dump a single entry's bytes, plus its MFT header fields.`)

	cmdSet = subcmd.NewCommandSet(listCmd, extractCmd, extractAllCmd, inspectCmd)
	cmdSet.Document(`list, extract and inspect entries in proprietary .dat game archives. Archives may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

// openArchive opens name (a local path, s3:// path or http(s):// URL) and
// buffers it fully so it can be read through io.ReaderAt; most .dat
// archives fit comfortably in memory and the MFT must be consulted before
// any entry can be located in any case.
func openArchive(ctx context.Context, name string) (*datkit.File, func(context.Context) error, error) {
	rd, _, cleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	raw, err := ioutil.ReadAll(rd)
	if err != nil {
		cleanup(ctx)
		return nil, nil, err
	}
	f, err := datkit.Open(bytes.NewReader(raw))
	if err != nil {
		cleanup(ctx)
		return nil, nil, err
	}
	return f, cleanup, nil
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body,
			resp.ContentLength,
			func(context.Context) error {
				resp.Body.Close()
				return nil
			},
			err
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout,
			func(context.Context) error { return nil },
			nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func list(ctx context.Context, values interface{}, args []string) error {
	_ = values.(*listFlags)
	f, cleanup, err := openArchive(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	fmt.Printf("%6s %12s %10s %s\n", "entry", "offset", "size", "compressed")
	for i := 0; i < f.NumEntries(); i++ {
		info := f.Info(i)
		fmt.Printf("%6d %12d %10d %v\n", i, info.Offset, info.Size, info.Compressed)
	}
	return nil
}

func extract(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*extractFlags)
	f, cleanup, err := openArchive(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	idx := f.ResolveFileID(cl.FileID)
	if idx < 0 {
		return fmt.Errorf("no entry with file id %d", cl.FileID)
	}
	data, err := f.Extract(idx)
	if err != nil {
		return err
	}

	wr, writerCleanup, err := createFile(ctx, cl.OutputFile)
	if err != nil {
		return err
	}
	_, err = wr.Write(data)
	errs := &errors.M{}
	errs.Append(err)
	errs.Append(writerCleanup(ctx))
	return errs.Err()
}

func progressBarFor(wr io.Writer, total int64) *progressbar.ProgressBar {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetBytes64(total),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	return bar
}

func extractAll(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*extractAllFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	f, cleanup, err := openArchive(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	if err := os.MkdirAll(cl.OutputDir, 0o755); err != nil {
		return err
	}

	n := f.NumEntries()
	progressCh := make(chan datkit.Progress, cl.Concurrency)
	sizeCh := make(chan int, cl.Concurrency)
	ex := datkit.NewExtractor(ctx, f,
		datkit.WithConcurrency(cl.Concurrency),
		datkit.WithVerbose(cl.Verbose),
		datkit.SendUpdates(progressCh))

	// A single consumer fans each reassembled entry's Progress event out
	// to both the progress bar and sizeCh; Submit is called in index
	// order below, so the Extractor reassembles entries in that same
	// order and sizeCh's sequence of byte counts is enough for
	// writeEntries to split the single concatenated Read stream back into
	// one file per entry.
	var barWg sync.WaitGroup
	barWg.Add(1)
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	go func() {
		defer barWg.Done()
		defer close(sizeCh)
		var bar *progressbar.ProgressBar
		barWr := os.Stdout
		if cl.ProgressBar {
			if !isTTY {
				barWr = os.Stderr
			}
			bar = progressBarFor(barWr, int64(n))
		}
		for p := range progressCh {
			if bar != nil {
				bar.Add(1)
			}
			sizeCh <- p.Size
		}
		if bar != nil {
			fmt.Fprintln(barWr)
		}
	}()

	for i := 0; i < n; i++ {
		if err := ex.Submit(i); err != nil {
			return err
		}
	}

	errs := &errors.M{}
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- writeEntries(ex, cl.OutputDir, sizeCh)
	}()

	errs.Append(ex.Finish())
	close(progressCh)
	barWg.Wait()
	errs.Append(<-writeDone)
	return errs.Err()
}

// writeEntries reads the extractor's request-ordered output stream and
// splits it back into one file per entry using the byte counts delivered
// over sizes, which mirrors the same Progress events the bar consumes.
func writeEntries(ex *datkit.Extractor, outDir string, sizes <-chan int) error {
	errs := &errors.M{}
	index := 0
	for size := range sizes {
		buf := make([]byte, size)
		if _, err := io.ReadFull(ex, buf); err != nil {
			errs.Append(err)
			continue
		}
		name := filepath.Join(outDir, fmt.Sprintf("entry-%06d.bin", index))
		if err := ioutil.WriteFile(name, buf, 0o644); err != nil {
			errs.Append(err)
		}
		index++
	}
	return errs.Err()
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*inspectFlags)
	f, cleanup, err := openArchive(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	var fileID uint64
	if _, err := fmt.Sscanf(args[1], "%d", &fileID); err != nil {
		return fmt.Errorf("invalid file id %q: %w", args[1], err)
	}
	idx := f.ResolveFileID(uint32(fileID))
	if idx < 0 {
		return fmt.Errorf("no entry with file id %d", fileID)
	}

	var data []byte
	if cl.Raw {
		data, err = f.RawEntry(idx)
	} else {
		data, err = f.Extract(idx)
	}
	if err != nil {
		return err
	}
	info := f.Info(idx)
	fmt.Printf("entry %d: offset %d, size %d, compressed %v\n", idx, info.Offset, info.Size, info.Compressed)
	hexDump(os.Stdout, data)
	return nil
}

// hexDump prints up to 16 lines of 16 bytes each with an ASCII sidebar.
func hexDump(w io.Writer, data []byte) {
	const bytesPerLine = 16
	const maxLines = 16
	for line := 0; line < maxLines && line*bytesPerLine < len(data); line++ {
		start := line * bytesPerLine
		end := start + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		fmt.Fprintf(w, "%08x  ", start)
		for i := 0; i < bytesPerLine; i++ {
			if i < len(chunk) {
				fmt.Fprintf(w, "%02x ", chunk[i])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprint(w, " ")
		for _, b := range chunk {
			if b >= 0x20 && b < 0x7f {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
}
