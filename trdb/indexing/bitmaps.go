// Package indexing builds secondary indexes over a replacement database's
// record sequence. Every index here is derived from a snapshot of the
// sequence and is rebuilt, not patched, when the database changes.
package indexing

import (
	roaring "github.com/RoaringBitmap/roaring"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
)

// PolicyBitmaps holds roaring bitmaps of record positions keyed by load and
// life policy. Only records with a primary hash are included.
// Example: LoadPreload -> positions the loader must read up front.
type PolicyBitmaps struct {
	Load map[replacement.Load]*roaring.Bitmap
	Life map[replacement.Life]*roaring.Bitmap
	all  *roaring.Bitmap
}

func NewPolicyBitmaps() *PolicyBitmaps {
	return &PolicyBitmaps{
		Load: make(map[replacement.Load]*roaring.Bitmap),
		Life: make(map[replacement.Life]*roaring.Bitmap),
		all:  roaring.New(),
	}
}

// BuildPolicyBitmaps indexes textures by position.
func BuildPolicyBitmaps(textures []replacement.Texture) *PolicyBitmaps {
	pb := NewPolicyBitmaps()
	for i, texture := range textures {
		if texture.IsEmpty() {
			continue
		}
		pb.Add(uint32(i), texture.Load, texture.Life)
	}
	return pb
}

func (pb *PolicyBitmaps) Add(pos uint32, load replacement.Load, life replacement.Life) {
	bitmapFor(pb.Load, load).Add(pos)
	bitmapFor(pb.Life, life).Add(pos)
	pb.all.Add(pos)
}

// Select returns the positions matching every given filter. A nil filter
// matches everything.
func (pb *PolicyBitmaps) Select(load *replacement.Load, life *replacement.Life) *roaring.Bitmap {
	res := pb.all.Clone()
	if load != nil {
		res.And(pb.clone(pb.Load[*load]))
	}
	if life != nil {
		res.And(pb.clone(pb.Life[*life]))
	}
	return res
}

// Count returns the number of indexed records with the given load policy.
func (pb *PolicyBitmaps) Count(load replacement.Load) uint64 {
	bm, ok := pb.Load[load]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Total returns the number of indexed records.
func (pb *PolicyBitmaps) Total() uint64 {
	return pb.all.GetCardinality()
}

// Filter returns the textures of db selected by the given policies, in
// sequence order. pb must have been built from db's current sequence.
func Filter(db *replacement.Database, pb *PolicyBitmaps, load *replacement.Load, life *replacement.Life) []replacement.Texture {
	positions := pb.Select(load, life).ToArray()
	out := make([]replacement.Texture, 0, len(positions))
	for _, pos := range positions {
		if int(pos) < len(db.Textures) {
			out = append(out, db.Textures[pos])
		}
	}
	return out
}

func (pb *PolicyBitmaps) clone(b *roaring.Bitmap) *roaring.Bitmap {
	if b == nil {
		return roaring.New()
	}
	c := roaring.New()
	c.Or(b) // copy
	return c
}

func bitmapFor[K comparable](m map[K]*roaring.Bitmap, key K) *roaring.Bitmap {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	return bm
}
