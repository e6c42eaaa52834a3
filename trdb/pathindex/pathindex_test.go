package pathindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

func TestPathIndex(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"BuildAndLookup", testPathIndexBuildAndLookup},
		{"PrefixLookup", testPathIndexPrefixLookup},
		{"Duplicates", testPathIndexDuplicates},
		{"NormalizePath", testPathIndexNormalizePath},
		{"Statistics", testPathIndexStatistics},
		{"ConcurrentAccess", testPathIndexConcurrentAccess},
		{"Validation", testPathIndexValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func textures(paths ...string) []replacement.Texture {
	out := make([]replacement.Texture, len(paths))
	for i, p := range paths {
		out[i] = replacement.Texture{Path: p, Hashes: replacement.Hashes{RT64: replacement.HashToString64(uint64(i + 1))}}
	}
	return out
}

func testPathIndexBuildAndLookup(t *testing.T) {
	idx := Build(textures("mario/cap.png", "", "mario\\shoes.png", "ui/font.dds"))

	assert.Equal(t, 3, idx.Size(), "Empty paths are not indexed")

	entry, found := idx.Lookup("mario/cap.png")
	require.True(t, found)
	assert.Equal(t, Entry{Path: "mario/cap.png", Positions: []int{0}}, entry)

	entry, found = idx.Lookup("mario/shoes.png")
	require.True(t, found, "Backslash paths are normalized")
	assert.Equal(t, []int{2}, entry.Positions)

	_, found = idx.Lookup("mario/missing.png")
	assert.False(t, found)
}

func testPathIndexPrefixLookup(t *testing.T) {
	idx := Build(textures(
		"mario/cap.png",
		"mario/shoes.png",
		"mario-kart/kart.png",
		"ui/font.dds",
	))

	testCases := []struct {
		prefix   string
		expected []string
	}{
		{"mario/", []string{"mario/cap.png", "mario/shoes.png"}},
		{"mario", []string{"mario-kart/kart.png", "mario/cap.png", "mario/shoes.png"}},
		{"ui", []string{"ui/font.dds"}},
		{"", []string{"mario-kart/kart.png", "mario/cap.png", "mario/shoes.png", "ui/font.dds"}},
		{"zelda", nil},
	}

	for _, tc := range testCases {
		var got []string
		for _, entry := range idx.PrefixLookup(tc.prefix) {
			got = append(got, entry.Path)
		}
		assert.Equal(t, tc.expected, got, "prefix %q", tc.prefix)
	}
}

func testPathIndexDuplicates(t *testing.T) {
	idx := Build(textures("shared.png", "a.png", "./shared.png", "b.png"))

	dups := idx.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, "shared.png", dups[0].Path)
	assert.Equal(t, []int{0, 2}, dups[0].Positions)
}

func testPathIndexNormalizePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"tex/a.png", "tex/a.png"},
		{"tex/", "tex"},
		{"tex//a.png", "tex/a.png"},
		{"tex/./a.png", "tex/a.png"},
		{"tex/../b.png", "b.png"},
		{"", "."},
		{"tex\\sub\\a.png", "tex/sub/a.png"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, normalizePath(tc.input), "input %q", tc.input)
	}
}

func testPathIndexStatistics(t *testing.T) {
	idx := Build(textures("a.png", "b.png", "a.png"))

	idx.Lookup("a.png")
	idx.Lookup("c.png")
	idx.PrefixLookup("")

	stats := idx.GetStats()
	assert.Equal(t, int64(2), stats.TotalPaths)
	assert.Equal(t, int64(3), stats.Insertions)
	assert.Equal(t, int64(2), stats.PathLookups)
	assert.Equal(t, int64(1), stats.PrefixLookups)
}

func testPathIndexConcurrentAccess(t *testing.T) {
	idx := New()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				idx.Insert(fmt.Sprintf("w%d/t%d.png", worker, j), worker*perWorker+j)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, idx.Size())
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, found := idx.Lookup(fmt.Sprintf("w%d/t%d.png", worker, j))
				assert.True(t, found)
			}
		}(w)
	}
	wg.Wait()
}

func testPathIndexValidation(t *testing.T) {
	idx := Build(textures("a.png", "b.png", "a.png"))
	assert.Empty(t, idx.Validate())

	idx.stats.TotalPaths++
	errs := idx.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "stats_mismatch")
}

func BenchmarkPathIndexLookup(b *testing.B) {
	paths := make([]string, 10000)
	for i := range paths {
		paths[i] = fmt.Sprintf("pack/dir%d/tex%d.png", i%100, i)
	}
	idx := Build(textures(paths...))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Lookup(paths[i%len(paths)])
	}
}
