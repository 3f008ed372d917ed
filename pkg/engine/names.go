package engine

import "sort"

// NameSet is a set of entry names. Treat it as read-only once a run has
// started; concurrent runs may share one.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

func (s NameSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// ContainsBytes looks name up without allocating.
func (s NameSet) ContainsBytes(name []byte) bool {
	_, ok := s[string(name)]
	return ok
}

func (s NameSet) Len() int {
	return len(s)
}

// Without returns a new set holding the names of s that are not in other.
func (s NameSet) Without(other NameSet) NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		if !other.Contains(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Names returns the members in sorted order.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
