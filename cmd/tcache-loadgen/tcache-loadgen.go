// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Stress and throughput harness over the transfer cache: many goroutines
// do randomized insert/remove bursts against a shared manager, then the
// per-class hit rates and aggregate throughput are printed.
package main

import (
	"log"
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/spf13/pflag"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rand"

	"github.com/vkcom/tcache/internal/freelist"
	"github.com/vkcom/tcache/internal/sizeclass"
	"github.com/vkcom/tcache/internal/tcache"
)

var argv struct {
	goroutines int
	ops        int
	maxBurst   int
	ringBuffer bool
	bypass     bool
	help       bool
}

func parseArgs() {
	pflag.IntVarP(&argv.goroutines, "goroutines", "g", runtime.GOMAXPROCS(0), "number of worker goroutines")
	pflag.IntVarP(&argv.ops, "ops", "n", 1_000_000, "operations per goroutine")
	pflag.IntVar(&argv.maxBurst, "max-burst", 32, "max objects moved per operation")
	pflag.BoolVar(&argv.ringBuffer, "ring-buffer", false, "use the ring buffer backend instead of the slot array")
	pflag.BoolVar(&argv.bypass, "bypass", false, "bypass the cache, go straight to the central free lists")
	pflag.BoolVarP(&argv.help, "help", "h", false, "print usage")
	pflag.Parse()
	if argv.help {
		pflag.Usage()
		os.Exit(0)
	}
	if argv.goroutines < 1 || argv.ops < 1 || argv.maxBurst < 1 {
		log.Fatalf("--goroutines, --ops and --max-burst must be positive")
	}
}

// the two cache builds expose the same surface; pick one at startup
type cacheTier interface {
	InsertRange(cl int, batch []unsafe.Pointer)
	RemoveRange(cl int, batch []unsafe.Pointer) int
	Length(cl int) int
	HitRateStats(cl int) tcache.HitRateStats
	CentralFreeList(cl int) *freelist.Central
}

func main() {
	parseArgs()

	table := sizeclass.DefaultTable()
	var tier cacheTier
	if argv.bypass {
		b := tcache.NewBypass(table)
		b.Init()
		tier = b
		log.Printf("running with cache bypassed (small-memory build)")
	} else {
		m := tcache.New(tcache.Config{Table: table, UseRingBuffer: argv.ringBuffer})
		m.Init()
		tier = m
		log.Printf("running with ring buffer backend: %v", argv.ringBuffer)
	}

	totalOps := atomic.NewInt64(0)
	totalObjects := atomic.NewInt64(0)
	start := time.Now()

	var g errgroup.Group
	for w := 0; w < argv.goroutines; w++ {
		g.Go(func() error {
			rng := rand.New()
			buf := make([]unsafe.Pointer, argv.maxBurst)
			// per-class stash of objects this worker currently owns
			stash := make([][]unsafe.Pointer, table.Len())
			for i := 0; i < argv.ops; i++ {
				cl := rng.Intn(table.Len())
				k := 1 + rng.Intn(argv.maxBurst)
				if rng.Intn(2) == 0 && len(stash[cl]) > 0 {
					if k > len(stash[cl]) {
						k = len(stash[cl])
					}
					tier.InsertRange(cl, append([]unsafe.Pointer(nil), stash[cl][len(stash[cl])-k:]...))
					stash[cl] = stash[cl][:len(stash[cl])-k]
					totalObjects.Add(int64(k))
				} else {
					got := tier.RemoveRange(cl, buf[:k])
					if got < k {
						// cache miss shortfall: fall back to the free list
						got += tier.CentralFreeList(cl).PopBatch(buf[got:k])
					}
					stash[cl] = append(stash[cl], buf[:got]...)
					totalObjects.Add(int64(got))
				}
				totalOps.Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("loadgen failed: %v", err)
	}
	elapsed := time.Since(start)

	log.Printf("%d ops, %d objects moved in %v (%.0f ops/sec)",
		totalOps.Load(), totalObjects.Load(), elapsed, float64(totalOps.Load())/elapsed.Seconds())
	log.Printf("%8s %10s %12s %12s %12s %12s %10s", "class", "objsize", "hits", "misses", "inserts", "removes", "hit rate")
	for cl := 0; cl < table.Len(); cl++ {
		st := tier.HitRateStats(cl)
		hitRate := 0.0
		if st.Hits+st.Misses > 0 {
			hitRate = float64(st.Hits) / float64(st.Hits+st.Misses)
		}
		log.Printf("%8d %10d %12d %12d %12d %12d %9.1f%%",
			cl, table.ObjectSize(cl), st.Hits, st.Misses, st.Inserts, st.Removes, 100*hitRate)
	}
}
