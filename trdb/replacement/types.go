package replacement

import "fmt"

// Load governs when a replacement asset is loaded by the texture loader.
// The zero value is the default policy, LoadStream.
type Load uint8

const (
	LoadStream Load = iota
	LoadPreload
	LoadAsync
	LoadStall
)

// Life governs how long a loaded replacement is retained by the resource pool.
// The zero value is the default policy, LifePool.
type Life uint8

const (
	LifePool Life = iota
	LifePermanent
	LifeAge
)

// AutoPath selects the naming convention used when replacement files are
// discovered automatically.
type AutoPath uint8

const (
	AutoPathRT64 AutoPath = iota
	AutoPathRice
)

// Wire tokens. The tables are the only mapping between values and their
// serialized form; ordinals are never written.
var (
	loadTokens = map[Load]string{
		LoadPreload: "preload",
		LoadStream:  "stream",
		LoadAsync:   "async",
		LoadStall:   "stall",
	}
	lifeTokens = map[Life]string{
		LifePermanent: "permanent",
		LifePool:      "pool",
		LifeAge:       "age",
	}
	autoPathTokens = map[AutoPath]string{
		AutoPathRT64: "rt64",
		AutoPathRice: "rice",
	}
)

const (
	DefaultLoad                 = LoadStream
	DefaultLife                 = LifePool
	DefaultAutoPath             = AutoPathRT64
	DefaultConfigurationVersion = uint32(2)
	DefaultHashVersion          = uint32(2)
)

func (l Load) String() string {
	if s, ok := loadTokens[l]; ok {
		return s
	}
	return fmt.Sprintf("Load(%d)", uint8(l))
}

func (l Life) String() string {
	if s, ok := lifeTokens[l]; ok {
		return s
	}
	return fmt.Sprintf("Life(%d)", uint8(l))
}

func (a AutoPath) String() string {
	if s, ok := autoPathTokens[a]; ok {
		return s
	}
	return fmt.Sprintf("AutoPath(%d)", uint8(a))
}

// ParseLoad maps a wire token to its Load value.
func ParseLoad(s string) (Load, bool) {
	return lookupToken(loadTokens, s)
}

// ParseLife maps a wire token to its Life value.
func ParseLife(s string) (Life, bool) {
	return lookupToken(lifeTokens, s)
}

// ParseAutoPath maps a wire token to its AutoPath value.
func ParseAutoPath(s string) (AutoPath, bool) {
	return lookupToken(autoPathTokens, s)
}

func lookupToken[T comparable](table map[T]string, s string) (T, bool) {
	for v, token := range table {
		if token == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (l Load) MarshalText() ([]byte, error) {
	s, ok := loadTokens[l]
	if !ok {
		return nil, fmt.Errorf("unknown load policy %d", uint8(l))
	}
	return []byte(s), nil
}

func (l *Load) UnmarshalText(text []byte) error {
	v, ok := ParseLoad(string(text))
	if !ok {
		return fmt.Errorf("unknown load policy %q", text)
	}
	*l = v
	return nil
}

func (l Life) MarshalText() ([]byte, error) {
	s, ok := lifeTokens[l]
	if !ok {
		return nil, fmt.Errorf("unknown life policy %d", uint8(l))
	}
	return []byte(s), nil
}

func (l *Life) UnmarshalText(text []byte) error {
	v, ok := ParseLife(string(text))
	if !ok {
		return fmt.Errorf("unknown life policy %q", text)
	}
	*l = v
	return nil
}

func (a AutoPath) MarshalText() ([]byte, error) {
	s, ok := autoPathTokens[a]
	if !ok {
		return nil, fmt.Errorf("unknown auto path %d", uint8(a))
	}
	return []byte(s), nil
}

func (a *AutoPath) UnmarshalText(text []byte) error {
	v, ok := ParseAutoPath(string(text))
	if !ok {
		return fmt.Errorf("unknown auto path %q", text)
	}
	*a = v
	return nil
}

// Configuration holds the document-wide settings of a replacement database.
type Configuration struct {
	AutoPath             AutoPath `json:"autoPath"`
	ConfigurationVersion uint32   `json:"configurationVersion"`
	HashVersion          uint32   `json:"hashVersion"`
}

// DefaultConfiguration returns the configuration used for new databases and
// for documents that omit it.
func DefaultConfiguration() Configuration {
	return Configuration{
		AutoPath:             DefaultAutoPath,
		ConfigurationVersion: DefaultConfigurationVersion,
		HashVersion:          DefaultHashVersion,
	}
}

// Hashes identifies a texture under each supported hashing scheme. RT64 is
// the primary key; Rice is optional.
type Hashes struct {
	RT64 string `json:"rt64"`
	Rice string `json:"rice"`
}

// Texture describes one replacement asset. The zero value carries the default
// load and life policies and no hashes.
type Texture struct {
	Path   string `json:"path"`
	Load   Load   `json:"load"`
	Life   Life   `json:"life"`
	Hashes Hashes `json:"hashes"`
}

// IsEmpty reports whether the texture has no primary hash. Lookups return an
// empty texture on a miss.
func (t Texture) IsEmpty() bool {
	return t.Hashes.RT64 == ""
}
