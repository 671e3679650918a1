package scan

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"

	"github.com/diskfs/go-blockhash/digest"
)

// ShortReadMode decides what is hashed when a read returns fewer bytes than a block
type ShortReadMode string

const (
	// ShortReadBuffer hashes the whole block buffer, including whatever the
	// previous read left in its tail. Digests match those of the C block_hasher.
	ShortReadBuffer ShortReadMode = "buffer"
	// ShortReadExact hashes only the bytes actually read
	ShortReadExact ShortReadMode = "exact"
)

func (m *ShortReadMode) UnmarshalText(text []byte) error {
	switch mode := ShortReadMode(strings.ToLower(string(text))); mode {
	case ShortReadBuffer, ShortReadExact:
		*m = mode
		return nil
	default:
		return fmt.Errorf("unknown short read mode %q, must be %q or %q", string(text), ShortReadBuffer, ShortReadExact)
	}
}

func (m ShortReadMode) String() string {
	return string(m)
}

// Size is a byte count that can be written with units, e.g. "4KiB" or "1M"
type Size int64

func (s *Size) UnmarshalText(text []byte) error {
	v, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", string(text), err)
	}
	if v > 1<<63-1 {
		return fmt.Errorf("size %q is too large", string(text))
	}
	*s = Size(v)
	return nil
}

func (s Size) String() string {
	if s < 0 {
		return fmt.Sprintf("%d B", int64(s))
	}
	return humanize.IBytes(uint64(s))
}

// Config is everything a scan needs. Environment variables prefixed with
// BLOCKHASH_ provide defaults, command line flags take precedence.
type Config struct {
	Device    string `env:"DEVICE"`
	BlockSize Size   `env:"BLOCK_SIZE"`
	Threads   int    `env:"THREADS"`
	// Blocks overrides the number of blocks read by every worker; 0 derives it from the device size
	Blocks    int64            `env:"BLOCKS"`
	Algorithm digest.Algorithm `env:"ALGORITHM"  envDefault:"sha1"`
	Output    string           `env:"OUTPUT"     envDefault:"digest.out"`
	ShortRead ShortReadMode    `env:"SHORT_READ" envDefault:"buffer"`
	Timing    bool             `env:"TIMING"     envDefault:"true"`
	// FailFast stops every worker after the first read error
	FailFast bool `env:"FAIL_FAST"`
	Mmap     bool `env:"MMAP"`
	// Offset and Length restrict the scan to a window of the device; Length 0 runs to the end
	Offset Size `env:"OFFSET"`
	Length Size `env:"LENGTH"`
	// MaxBufferMemory caps Threads*BlockSize; 0 disables the check
	MaxBufferMemory Size `env:"MAX_BUFFER_MEMORY" envDefault:"1GiB"`
}

const envPrefix = "BLOCKHASH_"

// DefaultConfig is the configuration with nothing set in the environment
func DefaultConfig() Config {
	return Config{
		Algorithm:       digest.Default,
		Output:          "digest.out",
		ShortRead:       ShortReadBuffer,
		Timing:          true,
		MaxBufferMemory: 1 << 30,
	}
}

// ParseEnv reads the configuration from BLOCKHASH_* environment variables
func ParseEnv() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: envPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("could not parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before any I/O happens
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return NewInvalidConfigurationError("device", "must be set")
	case c.BlockSize <= 0:
		return NewInvalidConfigurationError("block size", fmt.Sprintf("must be positive, got %d", c.BlockSize))
	case c.Threads <= 0:
		return NewInvalidConfigurationError("threads", fmt.Sprintf("must be positive, got %d", c.Threads))
	case c.Blocks < 0:
		return NewInvalidConfigurationError("blocks", fmt.Sprintf("must be positive, got %d", c.Blocks))
	case c.Offset < 0 || c.Length < 0:
		return NewInvalidConfigurationError("window", "offset and length must not be negative")
	case c.MaxBufferMemory < 0:
		return NewInvalidConfigurationError("max buffer memory", "must not be negative")
	}
	if _, err := digest.Parse(string(c.Algorithm)); err != nil {
		return NewInvalidConfigurationError("algorithm", err.Error())
	}
	switch c.ShortRead {
	case ShortReadBuffer, ShortReadExact:
	default:
		return NewInvalidConfigurationError("short read mode", fmt.Sprintf("must be %q or %q, got %q", ShortReadBuffer, ShortReadExact, c.ShortRead))
	}
	return nil
}

// checkBufferMemory fails when the block buffers of all workers together
// would exceed MaxBufferMemory
func (c Config) checkBufferMemory() error {
	if c.MaxBufferMemory == 0 {
		return nil
	}
	if int64(c.BlockSize) > int64(c.MaxBufferMemory)/int64(c.Threads) {
		return NewAllocationError(-1, int64(c.BlockSize)*int64(c.Threads))
	}
	return nil
}
