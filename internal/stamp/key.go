package stamp

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// Marker distinguishes the kinds of event that can be recorded at a
// scoped key. Start/End markers live in their own namespace: they are
// only ever paired into durations and never compare equal to a
// Description event at the same path.
type Marker uint8

const (
	// Description tags an ad-hoc labeled event.
	Description Marker = iota
	// Start marks the entry into one call of the frame named by the path.
	Start
	// End marks the exit from the most recently started call at the path.
	End
	// Duration is the synthetic marker under which a matched Start/End
	// pair's elapsed time is stored. It is internal: raw keys carrying it
	// are rejected.
	Duration
)

func (m Marker) String() string {
	switch m {
	case Description:
		return "description"
	case Start:
		return "start"
	case End:
		return "end"
	case Duration:
		return "duration"
	}
	return fmt.Sprintf("marker(%d)", uint8(m))
}

// Key is the canonical identity of one recorded series.
//
// A free key has an empty Path and carries only a description. A scoped
// key names the ordered chain of enclosing frames, outermost first, plus
// either a description or a Start/End/Duration marker.
type Key struct {
	Path        []string
	Marker      Marker
	Description string
}

// FreeKey builds the key for an event not attributed to any frame.
func FreeKey(description string) Key {
	return Key{Marker: Description, Description: description}
}

// ScopedKey builds the key for a described event inside the given frame path.
func ScopedKey(path []string, description string) Key {
	return Key{Path: path, Marker: Description, Description: description}
}

// DurationKey builds the synthetic key under which completed calls of
// the given frame path store their elapsed times.
func DurationKey(path ...string) Key {
	return Key{Path: path, Marker: Duration}
}

func markerKey(m Marker, path []string) Key {
	return Key{Path: path, Marker: m}
}

// Equal reports whether two keys denote the same canonical series:
// element-wise equal paths, the same marker, and (for Description
// markers) the same description string.
func (k Key) Equal(other Key) bool {
	if k.Marker != other.Marker || !slices.Equal(k.Path, other.Path) {
		return false
	}
	return k.Marker != Description || k.Description == other.Description
}

// Hash returns the 64-bit lookup handle for the key. It is computed
// over a length-prefixed encoding so that path boundaries can never
// alias ("a/b" vs "a", "b") and markers never collide with descriptions.
func (k Key) Hash() uint64 {
	buf := make([]byte, 0, 16+len(k.Description)+16*len(k.Path))
	buf = binary.AppendUvarint(buf, uint64(len(k.Path)))
	for _, frame := range k.Path {
		buf = binary.AppendUvarint(buf, uint64(len(frame)))
		buf = append(buf, frame...)
	}
	buf = append(buf, byte(k.Marker))
	buf = append(buf, k.Description...)
	return xxh3.Hash(buf)
}

// String renders the key for reports and error messages.
func (k Key) String() string {
	if len(k.Path) == 0 {
		return fmt.Sprintf("%q", k.Description)
	}
	joined := strings.Join(k.Path, "/")
	if k.Marker == Description {
		return fmt.Sprintf("%s:%q", joined, k.Description)
	}
	return fmt.Sprintf("%s[%s]", joined, k.Marker)
}

func (k Key) validate() error {
	for _, frame := range k.Path {
		if frame == "" {
			return fmt.Errorf("%w: empty frame name in path", ErrInvalidKey)
		}
	}
	switch k.Marker {
	case Description:
		if k.Description == "" {
			return fmt.Errorf("%w: empty description", ErrInvalidKey)
		}
	case Start, End, Duration:
		if len(k.Path) == 0 {
			return fmt.Errorf("%w: %s marker without a frame path", ErrInvalidKey, k.Marker)
		}
		if k.Description != "" {
			return fmt.Errorf("%w: %s marker cannot carry a description", ErrInvalidKey, k.Marker)
		}
	default:
		return fmt.Errorf("%w: unknown marker %d", ErrInvalidKey, uint8(k.Marker))
	}
	return nil
}

// Canonicalize normalizes a raw key into its canonical Key form.
//
// Accepted shapes:
//   - a non-empty string: a free description key;
//   - a []string of frame names whose final element is the description;
//   - a []any whose non-final elements are frame name strings and whose
//     final element is a description string or the Start/End marker;
//   - an already-canonical Key (validated and passed through).
//
// Anything else fails with ErrInvalidKey.
func Canonicalize(raw any) (Key, error) {
	switch v := raw.(type) {
	case Key:
		if err := v.validate(); err != nil {
			return Key{}, err
		}
		if v.Marker == Duration {
			return Key{}, fmt.Errorf("%w: duration keys are synthetic", ErrInvalidKey)
		}
		return v, nil
	case string:
		if v == "" {
			return Key{}, fmt.Errorf("%w: empty description", ErrInvalidKey)
		}
		return FreeKey(v), nil
	case []string:
		if len(v) == 0 {
			return Key{}, fmt.Errorf("%w: empty key sequence", ErrInvalidKey)
		}
		elems := make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
		return canonicalizeSeq(elems)
	case []any:
		if len(v) == 0 {
			return Key{}, fmt.Errorf("%w: empty key sequence", ErrInvalidKey)
		}
		return canonicalizeSeq(v)
	}
	return Key{}, fmt.Errorf("%w: unsupported raw key type %T", ErrInvalidKey, raw)
}

func canonicalizeSeq(elems []any) (Key, error) {
	path := make([]string, 0, len(elems)-1)
	for _, e := range elems[:len(elems)-1] {
		frame, ok := e.(string)
		if !ok || frame == "" {
			return Key{}, fmt.Errorf("%w: frame name must be a non-empty string, got %v", ErrInvalidKey, e)
		}
		path = append(path, frame)
	}
	k := Key{Path: path}
	switch last := elems[len(elems)-1].(type) {
	case string:
		if last == "" {
			return Key{}, fmt.Errorf("%w: empty description", ErrInvalidKey)
		}
		k.Marker = Description
		k.Description = last
	case Marker:
		if last != Start && last != End {
			return Key{}, fmt.Errorf("%w: only start/end markers may appear in raw keys", ErrInvalidKey)
		}
		if len(path) == 0 {
			return Key{}, fmt.Errorf("%w: %s marker without a frame path", ErrInvalidKey, last)
		}
		k.Marker = last
	default:
		return Key{}, fmt.Errorf("%w: key must end in a description or marker, got %T", ErrInvalidKey, last)
	}
	return k, nil
}

// KeyRegistry tracks the set of canonical keys seen so far. Register is
// idempotent: structurally equal keys map to the same stored identity,
// usable as a lookup handle.
type KeyRegistry struct {
	mu   sync.RWMutex
	keys map[uint64]Key
}

// NewKeyRegistry creates an empty registry.
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{keys: make(map[uint64]Key)}
}

// Register records the key and returns its canonical stored identity.
func (r *KeyRegistry) Register(k Key) Key {
	h := k.Hash()
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.keys[h]; ok {
		return stored
	}
	r.keys[h] = k
	return k
}

// Known reports whether a structurally equal key has been registered.
func (r *KeyRegistry) Known(k Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[k.Hash()]
	return ok
}

// Keys returns a snapshot of every registered key.
func (r *KeyRegistry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Key, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, k)
	}
	return out
}
