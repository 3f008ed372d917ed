// Package names loads the name lists that drive a filtering policy.
//
// A list holds one entry name per line. Surrounding whitespace is trimmed;
// blank lines and lines starting with '#' are ignored.
package names

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"facet/pkg/engine"
)

// Parse reads a name list. The returned set is never nil.
func Parse(r io.Reader) (engine.NameSet, error) {
	set := engine.NewNameSet()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		set.Add(name)
	}
	if err := sc.Err(); err != nil {
		return set, errors.Wrap(err, "read name list")
	}
	return set, nil
}

// LoadFile parses the name list at path.
func LoadFile(path string) (engine.NameSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open name list %s", path)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return set, nil
}

// Source produces a name set on demand.
type Source interface {
	Load(ctx context.Context) (engine.NameSet, error)
}

// FileSource reads a local name list on every Load.
type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) (engine.NameSet, error) {
	return LoadFile(s.Path)
}

func (s FileSource) String() string {
	return "file:" + s.Path
}

// Getter fetches an object by key.
type Getter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectSource reads a name list stored under Key.
type ObjectSource struct {
	Getter Getter
	Key    string
}

func (s ObjectSource) Load(ctx context.Context) (engine.NameSet, error) {
	body, err := s.Getter.Get(ctx, s.Key)
	if err != nil {
		return nil, errors.WithMessagef(err, "fetch name list %s", s.Key)
	}
	defer body.Close()

	set, err := Parse(body)
	if err != nil {
		return nil, errors.WithMessage(err, s.Key)
	}
	return set, nil
}

func (s ObjectSource) String() string {
	return "object:" + s.Key
}

// Resolve combines an allow list and a block list into a policy. A nil set
// means the list is not configured. With both lists present the blocked
// names are removed from the allowed ones.
func Resolve(allow, block engine.NameSet) engine.Policy {
	switch {
	case allow != nil && block != nil:
		return engine.AllowPolicy(allow.Without(block))
	case allow != nil:
		return engine.AllowPolicy(allow)
	case block != nil:
		return engine.BlockPolicy(block)
	default:
		return engine.PassthroughPolicy()
	}
}

// LoadPolicy loads the configured lists and resolves them. Either source may
// be nil.
func LoadPolicy(ctx context.Context, allow, block Source) (engine.Policy, error) {
	var allowSet, blockSet engine.NameSet
	var err error

	if allow != nil {
		if allowSet, err = allow.Load(ctx); err != nil {
			return engine.Policy{}, err
		}
	}
	if block != nil {
		if blockSet, err = block.Load(ctx); err != nil {
			return engine.Policy{}, err
		}
	}
	return Resolve(allowSet, blockSet), nil
}
