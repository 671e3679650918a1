package scan

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-blockhash/digest"
	"github.com/diskfs/go-blockhash/partition"
	"github.com/diskfs/go-blockhash/report"
)

// worker hashes one partition of the device. Its buffer and hash are never
// touched by another goroutine.
type worker struct {
	rng       partition.Range
	dev       io.ReaderAt
	algorithm digest.Algorithm
	shortRead ShortReadMode
	timing    bool
	reporter  *report.Reporter
	log       logrus.FieldLogger
}

// run reads every block of the partition in order, then reports the digest.
// Any error means nothing was reported.
func (w *worker) run(ctx context.Context) (report.Result, error) {
	buf := make([]byte, w.rng.BlockSize)
	h := w.algorithm.New()

	var (
		bytesRead int64
		start     time.Time
	)
	if w.timing {
		start = time.Now()
	}

	for k := int64(0); k < w.rng.Count; k++ {
		if err := ctx.Err(); err != nil {
			w.log.WithField("block", k).Warn("worker stopped before finishing its partition")
			return report.Result{}, err
		}

		offset := w.rng.Offset(k)
		n, err := w.dev.ReadAt(buf, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			rerr := NewReadError(w.rng.Worker, offset, err)
			w.log.WithError(err).WithField("offset", offset).Error("failed to read block")
			return report.Result{}, rerr
		}
		if n < 0 {
			n = 0
		}
		bytesRead += int64(n)

		if w.shortRead == ShortReadExact {
			_, _ = h.Write(buf[:n])
		} else {
			// a short read leaves the tail of the previous block in buf
			_, _ = h.Write(buf)
		}
	}

	res := report.Result{
		Worker:    w.rng.Worker,
		BytesRead: bytesRead,
		Digest:    h.Sum(nil),
	}
	if w.timing {
		res.Timed = true
		res.Elapsed = time.Since(start)
		if secs := res.Elapsed.Seconds(); secs > 0 {
			res.Throughput = float64(bytesRead) / secs
		}
	}

	if err := w.reporter.Report(res); err != nil {
		w.log.WithError(err).Error("failed to report result")
		return report.Result{}, err
	}
	return res, nil
}
