// Package scan runs the parallel hashing of a device.
//
// A Scanner opens the device, splits it between Threads workers with
// partition.Plan, runs one goroutine per worker and waits for all of them.
// Each worker writes exactly one line to the result sink when it finishes its
// partition; a worker that hits a read error writes nothing and the others carry on.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	blockhash "github.com/diskfs/go-blockhash"
	"github.com/diskfs/go-blockhash/disk"
	"github.com/diskfs/go-blockhash/partition"
	"github.com/diskfs/go-blockhash/report"
)

// State of a Scanner. A Scanner only ever moves forward through the states.
type State int

const (
	Created State = iota
	DeviceOpened
	PartitionPlanned
	WorkersRunning
	AllJoined
	DeviceClosed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case DeviceOpened:
		return "device opened"
	case PartitionPlanned:
		return "partition planned"
	case WorkersRunning:
		return "workers running"
	case AllJoined:
		return "all joined"
	case DeviceClosed:
		return "device closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener opens the device to scan. blockhash.Open is the default.
type Opener func(device string, opts ...blockhash.OpenOpt) (*disk.Disk, error)

// Option configures a Scanner
type Option func(s *Scanner)

// WithOpener replaces the function used to open the device
func WithOpener(open Opener) Option {
	return func(s *Scanner) {
		s.open = open
	}
}

// SinkFactory creates the result sink once the device is open
type SinkFactory func() (io.Writer, error)

// WithSinkFactory makes Run write to the sink created by newSink instead of
// the one passed in. newSink is only called after the device opened, so a
// scan that cannot open its device leaves an existing result file alone.
func WithSinkFactory(newSink SinkFactory) Option {
	return func(s *Scanner) {
		s.newSink = newSink
	}
}

// Summary describes a finished scan
type Summary struct {
	ScanID uuid.UUID
	Device string
	// Size is the number of bytes of the device, or of the window, that was planned
	Size int64
	Plan []partition.Range
	// Results holds one entry per successful worker, ordered by worker index
	Results []report.Result
	// Failed lists workers without a result, ordered by worker index
	Failed []int
	// Errors holds the reason every failed worker stopped
	Errors     map[int]error
	Unassigned int64
	BytesRead  int64
	Elapsed    time.Duration
}

// Scanner runs a single scan
type Scanner struct {
	cfg     Config
	log     logrus.FieldLogger
	open    Opener
	newSink SinkFactory

	mu      sync.Mutex
	started bool
	state   State
}

func New(cfg Config, log logrus.FieldLogger, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:  cfg,
		log:  log,
		open: blockhash.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns where the scanner is in its lifecycle
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.log.WithField("state", state.String()).Debug("scanner state changed")
}

// Run scans the device and writes one line per successful worker to sink.
//
// Configuration, allocation and open failures are returned before anything is
// read. When the scan runs to the end but some workers failed, the Summary is
// returned together with an *IncompleteScanError.
//
// Cancelling ctx stops every worker before its next block; those workers report nothing.
func (s *Scanner) Run(ctx context.Context, sink io.Writer) (summary *Summary, err error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	s.started = true
	s.mu.Unlock()

	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.checkBufferMemory(); err != nil {
		return nil, err
	}

	id := uuid.New()
	log := s.log.WithFields(logrus.Fields{
		"scan_id": id.String(),
		"device":  cfg.Device,
	})

	d, err := s.open(cfg.Device, s.openOpts()...)
	if err != nil {
		var oerr *disk.DeviceOpenError
		if !errors.As(err, &oerr) {
			err = disk.NewDeviceOpenError(cfg.Device, err)
		}
		return nil, err
	}
	s.setState(DeviceOpened)
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close device")
			if err == nil {
				err = cerr
			}
		}
		s.setState(DeviceClosed)
	}()

	if s.newSink != nil {
		if sink, err = s.newSink(); err != nil {
			return nil, err
		}
	}

	if d.Type == disk.DeviceTypeBlockDevice && d.LogicalBlocksize > 0 && int64(cfg.BlockSize)%d.LogicalBlocksize != 0 {
		log.Warnf("block size %d is not a multiple of the logical sector size %d", cfg.BlockSize, d.LogicalBlocksize)
	}

	ranges, err := partition.Plan(d.Size, int64(cfg.BlockSize), cfg.Threads, cfg.Blocks)
	if err != nil {
		return nil, NewInvalidConfigurationError("partition", err.Error())
	}
	s.setState(PartitionPlanned)

	summary = &Summary{
		ScanID:     id,
		Device:     d.Device,
		Size:       d.Size,
		Plan:       ranges,
		Errors:     map[int]error{},
		Unassigned: partition.Unassigned(ranges, d.Size),
	}
	log.WithFields(logrus.Fields{
		"size":       humanize.IBytes(uint64(d.Size)),
		"block_size": cfg.BlockSize.String(),
		"threads":    cfg.Threads,
		"blocks":     ranges[0].Count,
		"algorithm":  cfg.Algorithm.String(),
		"short_read": cfg.ShortRead.String(),
	}).Info("starting scan")
	if summary.Unassigned > 0 {
		log.WithField("unassigned_blocks", summary.Unassigned).Info("trailing blocks are not assigned to any worker and will not be read")
	}
	if cfg.Blocks > 0 && partition.Visited(ranges)*int64(cfg.BlockSize) > d.Size {
		log.WithField("blocks", cfg.Blocks).Warn("block count override reaches past the end of the device")
	}

	results := make([]*report.Result, len(ranges))
	errs := make([]error, len(ranges))
	reporter := report.New(sink)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	s.setState(WorkersRunning)
	for i, rng := range ranges {
		i := i
		w := &worker{
			rng:       rng,
			dev:       d,
			algorithm: cfg.Algorithm,
			shortRead: cfg.ShortRead,
			timing:    cfg.Timing,
			reporter:  reporter,
			log:       log.WithField("worker", rng.Worker),
		}
		g.Go(func() error {
			res, err := w.run(gctx)
			if err != nil {
				errs[i] = err
				if cfg.FailFast {
					return err
				}
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	// worker errors are collected in errs, the group error only cancels siblings
	_ = g.Wait()
	s.setState(AllJoined)
	summary.Elapsed = time.Since(start)

	for i := range ranges {
		if results[i] == nil {
			summary.Failed = append(summary.Failed, i)
			summary.Errors[i] = errs[i]
			continue
		}
		summary.Results = append(summary.Results, *results[i])
		summary.BytesRead += results[i].BytesRead
	}

	log.WithFields(logrus.Fields{
		"read":    humanize.Bytes(uint64(summary.BytesRead)),
		"elapsed": summary.Elapsed.String(),
		"results": len(summary.Results),
	}).Info("scan finished")

	if len(summary.Failed) > 0 {
		return summary, NewIncompleteScanError(len(ranges), summary.Failed)
	}
	return summary, nil
}

func (s *Scanner) openOpts() []blockhash.OpenOpt {
	var opts []blockhash.OpenOpt
	if s.cfg.Mmap {
		opts = append(opts, blockhash.WithMmap())
	}
	if s.cfg.Offset != 0 || s.cfg.Length != 0 {
		opts = append(opts, blockhash.WithWindow(int64(s.cfg.Offset), int64(s.cfg.Length)))
	}
	return opts
}
