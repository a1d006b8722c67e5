package svn

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"
)

// Properties is an insertion-ordered table of property values.
type Properties struct {
	table *linkedhashmap.Map
}

func NewProperties() *Properties {
	return &Properties{table: linkedhashmap.New()}
}

// PropertiesFromMap builds Properties from a map, ordered by name.
func PropertiesFromMap(m map[string][]byte) *Properties {
	p := NewProperties()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.Set(name, m[name])
	}
	return p
}

func (p *Properties) Set(name string, value []byte) {
	p.table.Put(name, value)
}

func (p *Properties) Get(name string) ([]byte, bool) {
	value, ok := p.table.Get(name)
	if !ok {
		return nil, false
	}
	return value.([]byte), true
}

func (p *Properties) Has(name string) bool {
	_, ok := p.table.Get(name)
	return ok
}

func (p *Properties) Remove(name string) {
	p.table.Remove(name)
}

func (p *Properties) Len() int {
	return p.table.Size()
}

// Names returns the property names in insertion order.
func (p *Properties) Names() []string {
	keys := p.table.Keys()
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key.(string)
	}
	return names
}

// Map returns a plain copy of the table.
func (p *Properties) Map() map[string][]byte {
	m := make(map[string][]byte, p.Len())
	it := p.table.Iterator()
	for it.Next() {
		m[it.Key().(string)] = it.Value().([]byte)
	}
	return m
}

func (p *Properties) Clone() *Properties {
	c := NewProperties()
	it := p.table.Iterator()
	for it.Next() {
		c.table.Put(it.Key(), it.Value())
	}
	return c
}

// Equal compares contents, ignoring order. A nil Properties is empty.
func (p *Properties) Equal(other *Properties) bool {
	if p.size() != other.size() {
		return false
	}
	if p.size() == 0 {
		return true
	}
	it := p.table.Iterator()
	for it.Next() {
		value, ok := other.Get(it.Key().(string))
		if !ok || !bytes.Equal(value, it.Value().([]byte)) {
			return false
		}
	}
	return true
}

func (p *Properties) size() int {
	if p == nil {
		return 0
	}
	return p.Len()
}

// AppendTo encodes every property as a K/V pair and terminates the block
// with PROPS-END.
func (p *Properties) AppendTo(buffer []byte) []byte {
	if p != nil {
		it := p.table.Iterator()
		for it.Next() {
			buffer = AppendProperty(buffer, it.Key().(string), it.Value().([]byte))
		}
	}
	return AppendPropsEnd(buffer)
}

// AppendDeltaTo encodes the changes needed to turn old into p: K/V pairs for
// new or different values and D entries for removed ones.
func (p *Properties) AppendDeltaTo(buffer []byte, old *Properties) []byte {
	if p != nil {
		it := p.table.Iterator()
		for it.Next() {
			name, value := it.Key().(string), it.Value().([]byte)
			if prev, ok := old.lookup(name); ok && bytes.Equal(prev, value) {
				continue
			}
			buffer = AppendProperty(buffer, name, value)
		}
	}
	if old != nil {
		for _, name := range old.Names() {
			if _, ok := p.lookup(name); !ok {
				buffer = AppendPropertyDeletion(buffer, name)
			}
		}
	}
	return AppendPropsEnd(buffer)
}

func (p *Properties) lookup(name string) ([]byte, bool) {
	if p == nil {
		return nil, false
	}
	return p.Get(name)
}

func appendSized(buffer []byte, prefix byte, data []byte) []byte {
	buffer = append(buffer, prefix, ' ')
	buffer = strconv.AppendInt(buffer, int64(len(data)), 10)
	buffer = append(buffer, '\n')
	buffer = append(buffer, data...)
	return append(buffer, '\n')
}

// AppendProperty encodes one K/V pair.
func AppendProperty(buffer []byte, name string, value []byte) []byte {
	buffer = appendSized(buffer, 'K', []byte(name))
	return appendSized(buffer, 'V', value)
}

// AppendPropertyDeletion encodes a D entry, used in property deltas.
func AppendPropertyDeletion(buffer []byte, name string) []byte {
	return appendSized(buffer, 'D', []byte(name))
}

func AppendPropsEnd(buffer []byte) []byte {
	return append(append(buffer, PropsEnd...), '\n')
}

// PropertyEntry is one entry of a property block. Deleted entries only occur
// in property deltas.
type PropertyEntry struct {
	Name    string
	Value   []byte
	Deleted bool
}

// ParsePropertyBlock decodes a complete property block, including the
// PROPS-END terminator.
func ParsePropertyBlock(block []byte) ([]PropertyEntry, error) {
	r := newBlockReader(block)
	entries := make([]PropertyEntry, 0, 4)
	for {
		if _, ok := r.LineAfter(PropsEnd); ok {
			return entries, nil
		}
		if r.AtEOF() {
			return nil, errors.Wrap(ErrIncompleteData, "property block missing "+PropsEnd)
		}
		if r.HasPrefix("D ") {
			name, err := r.ReadSized('D')
			if err != nil {
				return nil, err
			}
			entries = append(entries, PropertyEntry{Name: string(name), Deleted: true})
			continue
		}
		name, err := r.ReadSized('K')
		if err != nil {
			return nil, err
		}
		value, err := r.ReadSized('V')
		if err != nil {
			return nil, errors.Wrapf(err, "property '%s'", name)
		}
		entries = append(entries, PropertyEntry{Name: string(name), Value: value})
	}
}
