package replacement

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrInvalidDocument is returned when the input is not syntactically valid
// JSON or is not valid UTF-8. Well-formed documents never fail to decode; missing or mistyped
// fields fall back to their defaults.
var ErrInvalidDocument = errors.New("replacement database: invalid JSON document")

// Field names of the persisted document.
const (
	keyConfiguration        = "configuration"
	keyTextures             = "textures"
	keyAutoPath             = "autoPath"
	keyConfigurationVersion = "configurationVersion"
	keyHashVersion          = "hashVersion"
	keyPath                 = "path"
	keyLoad                 = "load"
	keyLife                 = "life"
	keyHashes               = "hashes"
	keyRT64                 = "rt64"
	keyRT64Legacy           = "rt64v1"
	keyRice                 = "rice"
)

type documentJSON struct {
	Configuration Configuration `json:"configuration"`
	Textures      []Texture     `json:"textures"`
}

// Encode renders db as a database document. Textures are written in sequence
// order; the index is not persisted.
func Encode(db *Database) ([]byte, error) {
	return json.MarshalIndent(db.document(), "", "  ")
}

// MarshalJSON implements json.Marshaler.
func (db *Database) MarshalJSON() ([]byte, error) {
	return json.Marshal(db.document())
}

func (db *Database) document() documentJSON {
	textures := db.Textures
	if textures == nil {
		textures = []Texture{}
	}
	return documentJSON{Configuration: db.Config, Textures: textures}
}

// Decode parses a database document and rebuilds the index from the decoded
// textures.
func Decode(data []byte) (*Database, error) {
	db := &Database{}
	if err := db.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return db, nil
}

// UnmarshalJSON implements json.Unmarshaler with the tolerant decoding rules
// of Decode.
func (db *Database) UnmarshalJSON(data []byte) error {
	// Encode cannot reproduce invalid UTF-8, so it is rejected up front.
	if !gjson.ValidBytes(data) || !utf8.Valid(data) {
		return ErrInvalidDocument
	}
	root := gjson.ParseBytes(data)

	db.Config = DefaultConfiguration()
	if cfg := objectField(root, keyConfiguration); cfg.Exists() {
		db.Config = decodeConfiguration(cfg)
	}

	db.Textures = nil
	if textures := root.Get(keyTextures); textures.IsArray() {
		for _, item := range textures.Array() {
			db.Textures = append(db.Textures, decodeTexture(item))
		}
	}

	db.BuildHashMaps()
	return nil
}

func decodeConfiguration(obj gjson.Result) Configuration {
	def := DefaultConfiguration()
	return Configuration{
		AutoPath:             enumField(obj, keyAutoPath, ParseAutoPath, def.AutoPath),
		ConfigurationVersion: uint32Field(obj, keyConfigurationVersion, def.ConfigurationVersion),
		HashVersion:          uint32Field(obj, keyHashVersion, def.HashVersion),
	}
}

// decodeTexture accepts any value; a non-object decodes to the zero Texture.
func decodeTexture(obj gjson.Result) Texture {
	if !obj.IsObject() {
		return Texture{}
	}
	var hashes Hashes
	if h := objectField(obj, keyHashes); h.Exists() {
		hashes = decodeHashes(h)
	}
	return Texture{
		Path:   stringField(obj, keyPath, ""),
		Load:   enumField(obj, keyLoad, ParseLoad, DefaultLoad),
		Life:   enumField(obj, keyLife, ParseLife, DefaultLife),
		Hashes: hashes,
	}
}

// decodeHashes reads the legacy rt64v1 key first so that rt64 overrides it
// whenever both are present.
func decodeHashes(obj gjson.Result) Hashes {
	rt64 := stringField(obj, keyRT64Legacy, "")
	rt64 = stringField(obj, keyRT64, rt64)
	return Hashes{
		RT64: rt64,
		Rice: stringField(obj, keyRice, ""),
	}
}

// objectField returns obj[key] if it is a JSON object and an empty result
// otherwise.
func objectField(obj gjson.Result, key string) gjson.Result {
	v := obj.Get(key)
	if !v.IsObject() {
		return gjson.Result{}
	}
	return v
}

func stringField(obj gjson.Result, key, def string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return def
	}
	return v.Str
}

// uint32Field accepts non-negative integral numbers that fit in 32 bits,
// including float spellings such as 3.0 or 1e0.
func uint32Field(obj gjson.Result, key string, def uint32) uint32 {
	v := obj.Get(key)
	if v.Type != gjson.Number {
		return def
	}
	if n, err := strconv.ParseUint(v.Raw, 10, 32); err == nil {
		return uint32(n)
	}
	if v.Num >= 0 && v.Num <= math.MaxUint32 && v.Num == math.Trunc(v.Num) {
		return uint32(v.Num)
	}
	return def
}

func enumField[T any](obj gjson.Result, key string, parse func(string) (T, bool), def T) T {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return def
	}
	parsed, ok := parse(v.Str)
	if !ok {
		return def
	}
	return parsed
}
