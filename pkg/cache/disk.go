package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/helius"
)

// Disk stores one JSON file per address under a fixed directory. File mtime
// determines freshness against the TTL. A malformed file is treated as a miss
// and left in place; it gets overwritten by the next Put. Concurrent writers
// race benignly: last writer wins, and a stale read is bounded by the TTL.
type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(address string) string {
	return filepath.Join(d.dir, address+".json")
}

func (d *Disk) Get(_ context.Context, address string, ttl time.Duration, cutoff time.Time) ([]helius.Transaction, bool) {
	p := d.path(address)

	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > ttl {
		return nil, false
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	var txs []helius.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		log.Warn().Err(err).Str("file", p).Msg("malformed cache file, treating as miss")
		return nil, false
	}

	kept := txs[:0:0]
	for _, tx := range txs {
		if !tx.Time().Before(cutoff) {
			kept = append(kept, tx)
		}
	}
	if len(kept) == 0 {
		return nil, false
	}
	return kept, true
}

func (d *Disk) Put(_ context.Context, address string, txs []helius.Transaction) {
	data, err := json.Marshal(txs)
	if err != nil {
		log.Warn().Err(err).Str("addr", address).Msg("cache marshal failed")
		return
	}
	if err := os.WriteFile(d.path(address), data, 0o644); err != nil {
		log.Warn().Err(err).Str("addr", address).Msg("cache write failed")
	}
}
