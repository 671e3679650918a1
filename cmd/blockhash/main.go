// blockhash hashes a block device or image in parallel and writes one digest per worker.
//
//	blockhash -d /dev/sdb -b 1MiB -t 8
//	blockhash plan -d /dev/sdb -b 1MiB -t 8
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/diskfs/go-blockhash/scan"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitIncomplete = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	root := newRootCmd(log)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())

	var ierr *scan.IncompleteScanError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ierr):
		fmt.Fprintf(os.Stderr, "blockhash: %v\n", err)
		return exitIncomplete
	default:
		fmt.Fprintf(os.Stderr, "blockhash: %v\n", err)
		return exitFailure
	}
}

func configureLogger(log *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q, must be text or json", format)
	}
	return nil
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)
	root := &cobra.Command{
		Use:           "blockhash",
		Short:         "Hash a block device in parallel, one digest per worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(log, logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	scanFlags := addScanFlags(root)
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, log, scanFlags)
	}
	root.AddCommand(newPlanCmd())
	return root
}
