package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/hcl"
)

// DefaultPageSize is the number of bytes per page, header included.
const DefaultPageSize = 4096

// pageSize is the single process-global knob. Everything else travels inside
// an Options value. It is atomic so tests that shrink pages do not race the
// engine reading it.
var pageSize int64 = DefaultPageSize

func PageSize() int {
	return int(atomic.LoadInt64(&pageSize))
}

// SetPageSize overrides the page size. Call it before any file is opened;
// pages written under a different size are unreadable afterwards.
func SetPageSize(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("invalid page size: %v", n))
	}
	atomic.StoreInt64(&pageSize, int64(n))
}

func ResetPageSize() {
	atomic.StoreInt64(&pageSize, DefaultPageSize)
}

// Options carries the per-database configuration. Fields map 1:1 onto the
// hcl config file keys.
type Options struct {
	DataDir       string `hcl:"data_dir"`
	PoolPages     int    `hcl:"pool_pages"`
	LockTimeoutMS int    `hcl:"lock_timeout_ms"`
	IOCostPerPage int    `hcl:"io_cost_per_page"`
	HistogramBins int    `hcl:"histogram_bins"`
	PageSize      int    `hcl:"page_size"`
}

func DefaultOptions() *Options {
	return &Options{
		DataDir:       "data",
		PoolPages:     50,
		LockTimeoutMS: 100,
		IOCostPerPage: 1000,
		HistogramBins: 100,
		PageSize:      DefaultPageSize,
	}
}

// LockTimeout is the wall-clock budget a single page request may spend
// waiting on a lock before the transaction gives up and aborts.
func (o *Options) LockTimeout() time.Duration {
	return time.Duration(o.LockTimeoutMS) * time.Millisecond
}

// Load reads an hcl config file on top of the defaults. Keys not present in
// the file keep their default values.
func Load(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	opts := DefaultOptions()
	if err := hcl.Decode(opts, string(b)); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if opts.PoolPages <= 0 {
		return nil, fmt.Errorf("config %s: pool_pages must be positive, got %d", path, opts.PoolPages)
	}
	return opts, nil
}
