// Package replacement implements the texture replacement database: an ordered
// list of replacement records indexed by their primary (rt64) hash, plus the
// JSON document format used to persist it.
//
// A Database is not safe for concurrent use. Callers that share one across
// goroutines must guard every call with a lock; store.Catalog does that.
package replacement

// Database is an ordered collection of replacement textures and the index
// from parsed primary hash to position in Textures.
//
// The index is a cache. BuildHashMaps recomputes it from Textures and is the
// authority on what it must contain; AddReplacement and FixReplacement keep it
// current incrementally. Code that edits Textures directly must call
// BuildHashMaps afterwards.
type Database struct {
	Config   Configuration
	Textures []Texture

	index map[uint64]uint32
}

// New returns an empty database with the default configuration.
func New() *Database {
	return &Database{
		Config: DefaultConfiguration(),
		index:  make(map[uint64]uint32),
	}
}

// AddReplacement inserts texture, or overwrites the record that already owns
// its primary hash. An existing record keeps its position.
func (db *Database) AddReplacement(texture Texture) {
	db.ensureIndex()

	key := StringToHash(texture.Hashes.RT64)
	if pos, ok := db.index[key]; ok {
		db.Textures[pos] = texture
		return
	}

	db.index[key] = uint32(len(db.Textures))
	db.Textures = append(db.Textures, texture)
}

// FixReplacement rekeys the record indexed under oldHash: the record is
// replaced by texture in place and re-indexed under texture's primary hash.
// If oldHash is not indexed nothing happens.
//
// When the old and new hashes parse to the same key the key ends up removed
// from the index, leaving the record orphaned until the next BuildHashMaps.
func (db *Database) FixReplacement(oldHash string, texture Texture) {
	db.ensureIndex()

	oldKey := StringToHash(oldHash)
	newKey := StringToHash(texture.Hashes.RT64)
	pos, ok := db.index[oldKey]
	if !ok {
		return
	}

	db.Textures[pos] = texture
	db.index[newKey] = pos
	delete(db.index, oldKey)
}

// GetReplacement returns a copy of the record indexed under hash, or an empty
// Texture when there is none. Check the result with IsEmpty.
func (db *Database) GetReplacement(hash string) Texture {
	texture, _ := db.Lookup(hash)
	return texture
}

// Lookup is GetReplacement with an explicit found flag.
func (db *Database) Lookup(hash string) (Texture, bool) {
	pos, ok := db.index[StringToHash(hash)]
	if !ok {
		return Texture{}, false
	}
	return db.Textures[pos], true
}

// BuildHashMaps rebuilds the index from Textures. Records without a primary
// hash are skipped; when several records parse to the same key the last one
// in sequence order wins.
func (db *Database) BuildHashMaps() {
	db.index = make(map[uint64]uint32, len(db.Textures))
	for i, texture := range db.Textures {
		if texture.Hashes.RT64 == "" {
			continue
		}
		db.index[StringToHash(texture.Hashes.RT64)] = uint32(i)
	}
}

// Len returns the number of records, indexed or not.
func (db *Database) Len() int {
	return len(db.Textures)
}

// HashIndex returns a copy of the index as key -> position.
func (db *Database) HashIndex() map[uint64]int {
	out := make(map[uint64]int, len(db.index))
	for key, pos := range db.index {
		out[key] = int(pos)
	}
	return out
}

// Orphans returns, in ascending order, the positions of records that cannot
// be reached through the index: records without a primary hash and records
// shadowed by a later record with the same key.
func (db *Database) Orphans() []int {
	reachable := make(map[uint32]struct{}, len(db.index))
	for _, pos := range db.index {
		reachable[pos] = struct{}{}
	}

	var orphans []int
	for i := range db.Textures {
		if _, ok := reachable[uint32(i)]; !ok {
			orphans = append(orphans, i)
		}
	}
	return orphans
}

// ensureIndex makes the zero Database usable. A database built with a
// Textures literal and no index gets one derived from its records.
func (db *Database) ensureIndex() {
	if db.index == nil {
		db.BuildHashMaps()
	}
}
