// memtx-bench seeds a space with a configurable number of rows using a
// worker pool, then times read and write operations against it. Modeled on
// the reference implementation's seed-bench.go worker-pool seeding shape
// and cmd/tk-bench's flag-driven configuration (upgraded here from the
// stdlib flag package to github.com/spf13/pflag, matching the rest of this
// dependency surface's CLI tools).
package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/memtx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memtx-bench: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	countsStr := flag.String("counts", "1000,100000", "comma-separated list of row counts to benchmark")
	workers := flag.IntP("workers", "w", runtime.NumCPU(), "number of seeding workers")
	selects := flag.Int("selects", 10000, "number of point selects to time per run")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: memtx-bench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Seeds an in-memory space and times insert/select throughput.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	counts, err := parseCounts(*countsStr)
	if err != nil {
		return err
	}

	for _, count := range counts {
		result, err := benchOne(count, *workers, *selects)
		if err != nil {
			return fmt.Errorf("bench %d rows: %w", count, err)
		}

		fmt.Printf("rows=%-8d workers=%-3d seed=%-12s select(%d)=%-12s\n",
			count, *workers, result.seedElapsed, *selects, result.selectElapsed)
	}

	return nil
}

func parseCounts(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	counts := make([]int, 0, len(fields))

	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", f, err)
		}

		counts = append(counts, n)
	}

	return counts, nil
}

type benchResult struct {
	seedElapsed   time.Duration
	selectElapsed time.Duration
}

func benchOne(count, workers, selectCount int) (benchResult, error) {
	format := memtx.Format{memtx.FieldTypeUnsigned, memtx.FieldTypeString}

	space := memtx.NewSpace("bench", format, memtx.WithExtentReserve(memtx.NewExtentReserve(1<<24)))

	// build_next is the bulk-load discipline (§4.3): the engine-wide
	// recovery phase a space is created under fixes its replace discipline
	// for that space's lifetime, so a bench seeding from empty uses the
	// same snapshot-recovery phase a real restore would.
	if err := space.AddPrimaryKey(&memtx.IndexDef{
		Name:   "primary",
		Type:   memtx.IndexTypeTree,
		Unique: true,
		Parts:  []memtx.KeyPartDef{{FieldIndex: 0, FieldType: memtx.FieldTypeUnsigned}},
	}, memtx.RecoverySnapshot); err != nil {
		return benchResult{}, fmt.Errorf("create primary index: %w", err)
	}

	seedStart := time.Now()

	if err := seedConcurrently(space, count, workers); err != nil {
		return benchResult{}, err
	}

	seedElapsed := time.Since(seedStart)

	selectStart := time.Now()

	for i := 0; i < selectCount; i++ {
		id := uint64(i%count) + 1

		_, err := space.ExecuteSelect(0, memtx.IterEq, memtx.Key{{Type: memtx.FieldTypeUnsigned, Uint: id}}, 0, 1)
		if err != nil {
			return benchResult{}, fmt.Errorf("select %d: %w", id, err)
		}
	}

	return benchResult{seedElapsed: seedElapsed, selectElapsed: time.Since(selectStart)}, nil
}

// seedConcurrently builds rows [1, count] via the build_next discipline, the
// same bulk-load path a snapshot restore uses (§4.3). BuildNext is not safe
// for concurrent use against one index, so workers encode rows in parallel
// but apply them to the space serially through a shared channel.
func seedConcurrently(space *memtx.Space, count, workers int) error {
	type encoded struct {
		id   uint64
		data []byte
	}

	jobs := make(chan int, workers*2)
	results := make(chan encoded, workers*2)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				id := uint64(i)

				data, err := memtx.EncodeFields([]memtx.FieldValue{
					{Type: memtx.FieldTypeUnsigned, Uint: id},
					{Type: memtx.FieldTypeString, Str: fmt.Sprintf("row-%d", id)},
				})
				if err != nil {
					continue
				}

				results <- encoded{id: id, data: data}
			}
		}()
	}

	go func() {
		for i := 1; i <= count; i++ {
			jobs <- i
		}

		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error

	for r := range results {
		if _, _, err := space.ExecuteInsert(r.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

