// Command catalog-ingest loads product term memberships from gzipped
// tab-separated exports (product_id, taxonomy, term_id) into the catalog.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// assigner stores a batch of memberships and reports how many were new.
type assigner interface {
	AssignTerms(ctx context.Context, assignments []postgres.Assignment) (int64, error)
}

// stats aggregates counters across files.
type stats struct {
	lines     atomic.Int64
	skipped   atomic.Int64
	malformed atomic.Int64
	inserted  atomic.Int64
}

func main() {
	var (
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "memberships per database batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one export file is required")
		os.Exit(1)
	}
	if batchSize < 1 {
		slog.Error("batch size must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, batchSize); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, batchSize int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCatalogRepository(pool)

	ids, err := repo.ProductIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "load product ids")
	}
	known := knownProducts(ids)

	slog.Info("known products loaded", slog.Int("count", len(ids)))

	var st stats
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if err := ingestFile(gctx, f, known, repo, batchSize, &st); err != nil {
				return errors.Wrapf(err, "ingest file %d", i+1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int64("lines", st.lines.Load()),
		slog.Int64("inserted", st.inserted.Load()),
		slog.Int64("unknown_products", st.skipped.Load()),
		slog.Int64("malformed", st.malformed.Load()),
	)
	return nil
}

// knownProducts builds a bloom filter over the catalog's product ids. Rows of
// products that are certainly absent are dropped before reaching the
// database; false positives are skipped by the insert itself.
func knownProducts(ids []int64) *bloom.BloomFilter {
	filter := bloom.NewWithEstimates(uint(len(ids))+1, bloomFPR)
	for _, id := range ids {
		filter.AddString(strconv.FormatInt(id, 10))
	}
	return filter
}

// parseAssignment parses a "product_id<TAB>taxonomy<TAB>term_id" line.
func parseAssignment(line string) (postgres.Assignment, bool) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) != 3 {
		return postgres.Assignment{}, false
	}
	productID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || productID <= 0 {
		return postgres.Assignment{}, false
	}
	taxonomy := strings.TrimSpace(parts[1])
	if taxonomy == "" {
		return postgres.Assignment{}, false
	}
	termID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || termID <= 0 {
		return postgres.Assignment{}, false
	}
	return postgres.Assignment{ProductID: productID, Taxonomy: taxonomy, TermID: discount.TermID(termID)}, true
}

func ingestFile(ctx context.Context, path string, known *bloom.BloomFilter, repo assigner, batchSize int, st *stats) error {
	batch := make([]postgres.Assignment, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := repo.AssignTerms(ctx, batch)
		if err != nil {
			return err
		}
		st.inserted.Add(n)
		batch = batch[:0]
		return nil
	}

	var (
		count    int64
		flushErr error
	)
	err := streamGzFile(ctx, path, func(line string) bool {
		if line == "" || strings.HasPrefix(line, "#") {
			return true
		}
		count++
		st.lines.Add(1)
		if count%progressEvery == 0 {
			slog.Info("ingest progress", slog.String("file", path), slog.Int64("lines", count))
		}

		a, ok := parseAssignment(line)
		if !ok {
			st.malformed.Add(1)
			return true
		}
		if !known.TestString(strconv.FormatInt(a.ProductID, 10)) {
			st.skipped.Add(1)
			return true
		}

		batch = append(batch, a)
		if len(batch) >= batchSize {
			if flushErr = flush(); flushErr != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("file complete", slog.String("file", path), slog.Int64("lines", count))
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line until
// fn returns false.
func streamGzFile(ctx context.Context, path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(scanner.Text()) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
