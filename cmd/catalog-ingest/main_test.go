package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/internal/storage/postgres"
)

// --- Mock implementations ---

type mockAssigner struct {
	mu      sync.Mutex
	batches [][]postgres.Assignment
	err     error
}

func (m *mockAssigner) AssignTerms(_ context.Context, assignments []postgres.Assignment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.batches = append(m.batches, append([]postgres.Assignment(nil), assignments...))
	return int64(len(assignments)), nil
}

// --- Helpers ---

func writeGz(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		name string
		line string
		want postgres.Assignment
		ok   bool
	}{
		{name: "valid", line: "101\tproduct_cat\t15", want: postgres.Assignment{ProductID: 101, Taxonomy: "product_cat", TermID: 15}, ok: true},
		{name: "trailing newline", line: "7\tpwb-brand\t3\r", want: postgres.Assignment{ProductID: 7, Taxonomy: "pwb-brand", TermID: 3}, ok: true},
		{name: "too few columns", line: "101\tproduct_cat", ok: false},
		{name: "bad product id", line: "abc\tproduct_cat\t15", ok: false},
		{name: "zero term", line: "101\tproduct_cat\t0", ok: false},
		{name: "empty taxonomy", line: "101\t \t15", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAssignment(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIngestFile(t *testing.T) {
	path := writeGz(t,
		"# product_id\ttaxonomy\tterm_id",
		"1\tproduct_cat\t15",
		"2\tproduct_cat\t15",
		"999999\tproduct_cat\t15",
		"not a row",
		"1\tpwb-brand\t41",
		"",
		"3\tproduct_tag\t30",
	)
	known := knownProducts([]int64{1, 2, 3})

	t.Run("batches known products", func(t *testing.T) {
		repo := &mockAssigner{}
		var st stats
		require.NoError(t, ingestFile(context.Background(), path, known, repo, 2, &st))

		require.Len(t, repo.batches, 2)
		assert.Len(t, repo.batches[0], 2)
		assert.Equal(t, []postgres.Assignment{
			{ProductID: 1, Taxonomy: "pwb-brand", TermID: discount.TermID(41)},
			{ProductID: 3, Taxonomy: "product_tag", TermID: discount.TermID(30)},
		}, repo.batches[1])

		assert.Equal(t, int64(6), st.lines.Load())
		assert.Equal(t, int64(4), st.inserted.Load())
		assert.Equal(t, int64(1), st.malformed.Load())
		assert.Equal(t, int64(1), st.skipped.Load())
	})

	t.Run("database error stops the file", func(t *testing.T) {
		repo := &mockAssigner{err: errors.New("connection reset")}
		var st stats
		err := ingestFile(context.Background(), path, known, repo, 2, &st)
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var st stats
		err := ingestFile(ctx, path, known, &mockAssigner{}, 2, &st)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStreamGzFile_Missing(t *testing.T) {
	err := streamGzFile(context.Background(), filepath.Join(t.TempDir(), "missing.gz"), func(string) bool { return true })
	assert.Error(t, err)
}
