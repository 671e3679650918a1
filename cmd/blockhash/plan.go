package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	blockhash "github.com/diskfs/go-blockhash"
	"github.com/diskfs/go-blockhash/partition"
	"github.com/diskfs/go-blockhash/scan"
)

func newPlanCmd() *cobra.Command {
	var (
		device    string
		size      string
		blockSize string
		threads   int
		blocks    int64
		strict    bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which blocks every worker would read, without reading them",
		RunE: func(cmd *cobra.Command, args []string) error {
			var bs, deviceSize scan.Size
			if err := bs.UnmarshalText([]byte(blockSize)); err != nil {
				return fmt.Errorf("--block-size: %w", err)
			}
			switch {
			case size != "":
				if err := deviceSize.UnmarshalText([]byte(size)); err != nil {
					return fmt.Errorf("--size: %w", err)
				}
			case device != "":
				d, err := blockhash.Open(device)
				if err != nil {
					return err
				}
				deviceSize = scan.Size(d.Size)
				if err := d.Close(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --device or --size is required")
			}

			ranges, err := partition.Plan(int64(deviceSize), int64(bs), threads, blocks)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), ranges, int64(deviceSize), strict)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&device, "device", "d", "", "block device or image to plan for")
	flags.StringVar(&size, "size", "", "plan for a device of this size instead of opening one")
	flags.StringVarP(&blockSize, "block-size", "b", "4096", "size of a block")
	flags.IntVarP(&threads, "threads", "t", 1, "number of workers")
	flags.Int64VarP(&blocks, "blocks", "n", 0, "blocks read by every worker (default: derived from the device size)")
	flags.BoolVar(&strict, "strict", false, "fail when the plan reads past the end of the device or visits a block twice")
	return cmd
}

// printPlan writes the plan to w. A plan that breaks the coverage rules is an
// error in strict mode and a warning otherwise.
func printPlan(w io.Writer, ranges []partition.Range, deviceSize int64, strict bool) error {
	for _, r := range ranges {
		last := "-"
		if r.Count > 0 {
			last = fmt.Sprintf("%d", r.Offset(r.Count-1))
		}
		if _, err := fmt.Fprintf(w, "%s last=%s bytes=%s\n", r, last, humanize.IBytes(uint64(r.Bytes()))); err != nil {
			return err
		}
	}

	c := partition.NewCoverage(ranges, deviceSize)
	fmt.Fprintf(w, "device: %s, %d blocks\n", humanize.IBytes(uint64(deviceSize)), c.Blocks())
	fmt.Fprintf(w, "visited: %d blocks, unassigned: %d blocks\n", partition.Visited(ranges), partition.Unassigned(ranges, deviceSize))
	if off, ok := c.FirstUnvisited(); ok {
		fmt.Fprintf(w, "first unvisited block at offset %d\n", off)
	}
	if err := c.Err(); err != nil {
		if strict {
			return fmt.Errorf("invalid plan: %w", err)
		}
		fmt.Fprintf(w, "warning: %v\n", err)
	}
	return nil
}
