package main

// main.go implements the readcache-bench CLI: it drives a
// pkg/readcache.Engine against a synthetic workload and reports hit/miss/
// insert/sweep counters, either as pretty text or JSON — the same
// flags-struct-plus-pretty/JSON-output idiom as the teacher's
// cmd/arena-cache-inspect, adapted from a remote HTTP inspector into a local
// workload driver since the read cache has no network surface of its own.
//
// © 2025 faster-readcache authors. MIT License.

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Voskan/faster-readcache/internal/mainlog"
	"github.com/Voskan/faster-readcache/pkg/readcache"
)

type options struct {
	mode         string
	numKeys      int
	iterations   int
	pageSize     int64
	memorySize   int64
	json         bool
	badgerDir    string
	evictionCron string
	sweepEvery   int
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.mode, "mode", "bench", "bench | checkpoint | diskescape")
	flag.IntVar(&opts.numKeys, "keys", 10_000, "distinct keys in the synthetic workload")
	flag.IntVar(&opts.iterations, "iterations", 200_000, "number of Get/Put operations to perform")
	flag.Int64Var(&opts.pageSize, "page-size", 1<<16, "read-cache page size in bytes")
	flag.Int64Var(&opts.memorySize, "memory-size", 1<<24, "read-cache total capacity in bytes")
	flag.BoolVar(&opts.json, "json", false, "emit results as JSON instead of text")
	flag.StringVar(&opts.badgerDir, "badger-dir", "", "directory for the diskescape mode's Badger store (defaults to a temp dir)")
	flag.StringVar(&opts.evictionCron, "eviction-cron", "@every 1s", "cron(5)/@every expression governing the background evictor; empty disables it")
	flag.IntVar(&opts.sweepEvery, "sweep-every", 5_000, "also trigger a manual Engine.Sweep every N iterations of bench mode (0 disables)")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.mode == "diskescape" {
		runDiskEscape(ctx, opts)
		return
	}

	hlog := mainlog.New(nil)
	eng, err := readcache.New(1<<14,
		readcache.WithMainLog(hlog),
		readcache.WithPageSize(opts.pageSize),
		readcache.WithMemorySize(opts.memorySize),
		readcache.WithLogger(zap.NewNop()),
		readcache.WithEvictionCron(opts.evictionCron),
	)
	if err != nil {
		fatal(err)
	}
	defer eng.Close()

	switch opts.mode {
	case "checkpoint":
		runCheckpoint(ctx, eng, opts)
	default:
		runBench(ctx, hlog, eng, opts)
	}
}

type benchResult struct {
	Iterations int     `json:"iterations"`
	Hits       int     `json:"hits"`
	Misses     int     `json:"misses"`
	Inserted   int     `json:"inserted"`
	Swept      int     `json:"swept"`
	Elapsed    float64 `json:"elapsed_seconds"`
	OpsPerSec  float64 `json:"ops_per_second"`
}

func runBench(ctx context.Context, hlog *mainlog.Log, eng *readcache.Engine, opts *options) {
	keys := make([][]byte, opts.numKeys)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%08d", i))
	}
	value := []byte("synthetic-value-payload")

	rng := rand.New(rand.NewSource(1))
	res := benchResult{Iterations: opts.iterations}

	start := time.Now()
	for i := 0; i < opts.iterations; i++ {
		select {
		case <-ctx.Done():
			i = opts.iterations
			continue
		default:
		}
		key := keys[rng.Intn(len(keys))]
		bucket := eng.Bucket(key)
		_, hit := eng.FindInReadCache(bucket, key, 0, false)
		if hit {
			res.Hits++
		} else {
			res.Misses++
			if _, status := eng.TryInsert(bucket, key, value); status == readcache.StatusSuccess {
				res.Inserted++
			}
		}
		if opts.sweepEvery > 0 && (i+1)%opts.sweepEvery == 0 {
			eng.Sweep()
			res.Swept++
		}
	}
	res.Elapsed = time.Since(start).Seconds()
	if res.Elapsed > 0 {
		res.OpsPerSec = float64(res.Iterations) / res.Elapsed
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	fmt.Printf("iterations: %d\n", res.Iterations)
	fmt.Printf("hits:       %d\n", res.Hits)
	fmt.Printf("misses:     %d\n", res.Misses)
	fmt.Printf("inserted:   %d\n", res.Inserted)
	fmt.Printf("swept:      %d\n", res.Swept)
	fmt.Printf("elapsed:    %.3fs\n", res.Elapsed)
	fmt.Printf("ops/sec:    %.0f\n", res.OpsPerSec)
}

func runCheckpoint(ctx context.Context, eng *readcache.Engine, opts *options) {
	_ = ctx
	cp := eng.Checkpoint()
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"token":          cp.Token.String(),
			"taken_at":       cp.TakenAt.Format(time.RFC3339),
			"bucket_count":   len(cp.Addresses),
		})
		return
	}
	fmt.Printf("checkpoint %s taken at %s covering %d buckets\n", cp.Token, cp.TakenAt.Format(time.RFC3339), len(cp.Addresses))
}

// runDiskEscape demonstrates the disk-escape case with a real on-disk KV
// store rather than a fake: a key written only to a BadgerDiskStore, with the
// main log's HeadAddress moved up to its tail, is resolved through
// PendingReadResolver and installed into the read cache. It does not call
// EnsureNoNewMainLogRecordWasSpliced; the printed status is that of the
// read-cache insert.
func runDiskEscape(ctx context.Context, opts *options) {
	dir := opts.badgerDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "readcache-bench-badger-*")
		if err != nil {
			fatal(err)
		}
		defer os.RemoveAll(dir)
	}

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(bopts)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	disk := mainlog.NewBadgerDiskStore(db)
	hlog := mainlog.New(disk)

	eng, err := readcache.New(1<<10,
		readcache.WithMainLog(hlog),
		readcache.WithPageSize(opts.pageSize),
		readcache.WithMemorySize(opts.memorySize),
		readcache.WithLogger(zap.NewNop()),
		readcache.WithEvictionCron(""),
	)
	if err != nil {
		fatal(err)
	}
	defer eng.Close()

	key := []byte("escaped-key")
	value := []byte("escaped-value")
	if err := disk.Put(key, value); err != nil {
		fatal(err)
	}
	// Simulate the main log having evicted everything below its current
	// tail to disk, so this key is only reachable through diskStore.
	hlog.SetHeadAddress(hlog.TailAddress())

	resolver := readcache.NewPendingReadResolver(eng)
	loaded, found, status, err := resolver.ResolveAndInsert(ctx, eng.HashBytes(key), key, func(ctx context.Context, k []byte) ([]byte, bool, error) {
		v, ok := disk.Get(k)
		return v, ok, nil
	})
	if err != nil {
		fatal(err)
	}

	result := map[string]any{
		"found":  found,
		"value":  string(loaded),
		"status": status.String(),
	}
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	fmt.Printf("diskescape: found=%v value=%q status=%s\n", found, loaded, status)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "readcache-bench:", err)
	os.Exit(1)
}
