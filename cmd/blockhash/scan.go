package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/diskfs/go-blockhash/digest"
	"github.com/diskfs/go-blockhash/report"
	"github.com/diskfs/go-blockhash/scan"
)

type scanFlags struct {
	device          string
	blockSize       string
	threads         int
	blocks          int64
	output          string
	algorithm       string
	shortRead       string
	noTiming        bool
	failFast        bool
	mmap            bool
	offset          string
	length          string
	maxBufferMemory string
	allowPartial    bool
}

func addScanFlags(cmd *cobra.Command) *scanFlags {
	f := &scanFlags{}
	flags := cmd.Flags()
	flags.StringVarP(&f.device, "device", "d", "", "block device or image to hash")
	flags.StringVarP(&f.blockSize, "block-size", "b", "", "size of a block, e.g. 4096 or 1MiB")
	flags.IntVarP(&f.threads, "threads", "t", 0, "number of workers")
	flags.Int64VarP(&f.blocks, "blocks", "n", 0, "blocks read by every worker (default: derived from the device size)")
	flags.StringVarP(&f.output, "output", "o", "", "result file, truncated on every run (default digest.out)")
	flags.StringVar(&f.algorithm, "algorithm", "", fmt.Sprintf("digest algorithm, one of %v (default sha1)", digest.Names()))
	flags.StringVar(&f.shortRead, "short-read", "", "what to hash on a short read: buffer (whole buffer) or exact (bytes read) (default buffer)")
	flags.BoolVar(&f.noTiming, "no-timing", false, "do not measure throughput")
	flags.BoolVar(&f.failFast, "fail-fast", false, "stop all workers after the first read error")
	flags.BoolVar(&f.mmap, "mmap", false, "read the device through a memory mapping")
	flags.StringVar(&f.offset, "offset", "", "start of the region to hash")
	flags.StringVar(&f.length, "length", "", "length of the region to hash (default: to the end)")
	flags.StringVar(&f.maxBufferMemory, "max-buffer-memory", "", "refuse to run when threads*block-size exceeds this (default 1GiB, 0 to disable)")
	flags.BoolVar(&f.allowPartial, "allow-partial", false, "exit 0 even when some workers produced no result")
	return f
}

// config layers flags that were set on top of the BLOCKHASH_* environment
func (f *scanFlags) config(flags *pflag.FlagSet) (scan.Config, error) {
	cfg, err := scan.ParseEnv()
	if err != nil {
		return cfg, err
	}

	sizes := map[string]*scan.Size{
		"block-size":        &cfg.BlockSize,
		"offset":            &cfg.Offset,
		"length":            &cfg.Length,
		"max-buffer-memory": &cfg.MaxBufferMemory,
	}
	values := map[string]string{
		"block-size":        f.blockSize,
		"offset":            f.offset,
		"length":            f.length,
		"max-buffer-memory": f.maxBufferMemory,
	}
	for name, dst := range sizes {
		if !flags.Changed(name) {
			continue
		}
		if err := dst.UnmarshalText([]byte(values[name])); err != nil {
			return cfg, fmt.Errorf("--%s: %w", name, err)
		}
	}

	if flags.Changed("device") {
		cfg.Device = f.device
	}
	if flags.Changed("threads") {
		cfg.Threads = f.threads
	}
	if flags.Changed("blocks") {
		cfg.Blocks = f.blocks
	}
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("algorithm") {
		if err := cfg.Algorithm.UnmarshalText([]byte(f.algorithm)); err != nil {
			return cfg, fmt.Errorf("--algorithm: %w", err)
		}
	}
	if flags.Changed("short-read") {
		if err := cfg.ShortRead.UnmarshalText([]byte(f.shortRead)); err != nil {
			return cfg, fmt.Errorf("--short-read: %w", err)
		}
	}
	if flags.Changed("no-timing") {
		cfg.Timing = !f.noTiming
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = f.failFast
	}
	if flags.Changed("mmap") {
		cfg.Mmap = f.mmap
	}
	return cfg, nil
}

func runScan(cmd *cobra.Command, log *logrus.Logger, f *scanFlags) error {
	cfg, err := f.config(cmd.Flags())
	if err != nil {
		return err
	}
	// reject bad configurations before the output file is truncated
	if err := cfg.Validate(); err != nil {
		return err
	}

	// the output file is only truncated once the device is open
	var out *os.File
	newSink := func() (io.Writer, error) {
		file, err := report.CreateFile(cfg.Output)
		if err != nil {
			return nil, err
		}
		out = file
		return file, nil
	}
	defer func() {
		if out != nil {
			out.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := scan.New(cfg, log, scan.WithSinkFactory(newSink)).Run(ctx, nil)
	if err != nil && !(f.allowPartial && summary != nil) {
		return err
	}
	if err != nil {
		log.WithError(err).Warn("scan incomplete, exiting successfully as requested")
	}
	if out == nil {
		return nil
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("could not flush %s: %w", cfg.Output, err)
	}
	return nil
}
