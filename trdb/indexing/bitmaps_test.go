package indexing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

func sampleDB() *replacement.Database {
	db := replacement.New()
	db.AddReplacement(replacement.Texture{Path: "a.png", Load: replacement.LoadPreload, Life: replacement.LifePermanent, Hashes: replacement.Hashes{RT64: "a"}})
	db.AddReplacement(replacement.Texture{Path: "b.png", Load: replacement.LoadStream, Life: replacement.LifePool, Hashes: replacement.Hashes{RT64: "b"}})
	db.AddReplacement(replacement.Texture{Path: "c.png", Load: replacement.LoadPreload, Life: replacement.LifeAge, Hashes: replacement.Hashes{RT64: "c"}})
	db.AddReplacement(replacement.Texture{Path: "d.png", Load: replacement.LoadAsync, Life: replacement.LifePool, Hashes: replacement.Hashes{RT64: "d"}})
	db.Textures = append(db.Textures, replacement.Texture{Path: "unhashed.png", Load: replacement.LoadPreload})
	db.BuildHashMaps()
	return db
}

func TestPolicyBitmapsSelect(t *testing.T) {
	db := sampleDB()
	pb := BuildPolicyBitmaps(db.Textures)

	assert.Equal(t, uint64(4), pb.Total(), "Records without a hash are not indexed")
	assert.Equal(t, uint64(2), pb.Count(replacement.LoadPreload))
	assert.Equal(t, uint64(0), pb.Count(replacement.LoadStall))

	preload := replacement.LoadPreload
	pool := replacement.LifePool
	stall := replacement.LoadStall

	assert.Equal(t, []uint32{0, 2}, pb.Select(&preload, nil).ToArray())
	assert.Equal(t, []uint32{1, 3}, pb.Select(nil, &pool).ToArray())
	assert.Empty(t, pb.Select(&preload, &pool).ToArray())
	assert.Empty(t, pb.Select(&stall, nil).ToArray())
	assert.Equal(t, []uint32{0, 1, 2, 3}, pb.Select(nil, nil).ToArray())

	// Selecting must not mutate the stored bitmaps.
	assert.Equal(t, uint64(2), pb.Count(replacement.LoadPreload))
}

func TestFilterPreload(t *testing.T) {
	db := sampleDB()

	preload := replacement.LoadPreload
	set := Filter(db, BuildPolicyBitmaps(db.Textures), &preload, nil)
	require.Len(t, set, 2)
	assert.Equal(t, "a.png", set[0].Path)
	assert.Equal(t, "c.png", set[1].Path)
}

func TestFilter(t *testing.T) {
	db := sampleDB()
	pb := BuildPolicyBitmaps(db.Textures)

	age := replacement.LifeAge
	got := Filter(db, pb, nil, &age)
	require.Len(t, got, 1)
	assert.Equal(t, "c.png", got[0].Path)
}
