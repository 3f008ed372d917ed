package engine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PolicyKind selects how a Policy treats its name set.
type PolicyKind int

const (
	// Passthrough keeps every record.
	Passthrough PolicyKind = iota
	// Allow keeps a record iff its name is in the set.
	Allow
	// Block keeps a record iff its name is not in the set.
	Block
)

func (k PolicyKind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ParsePolicyKind is the inverse of PolicyKind.String.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "passthrough":
		return Passthrough, nil
	case "allow":
		return Allow, nil
	case "block":
		return Block, nil
	default:
		return Passthrough, errors.Wrapf(ErrUnknownPolicy, "%q", s)
	}
}

// Policy decides which records survive a run.
// The zero value is a Passthrough policy.
type Policy struct {
	Kind  PolicyKind
	Names NameSet
}

func PassthroughPolicy() Policy {
	return Policy{Kind: Passthrough}
}

func AllowPolicy(names NameSet) Policy {
	return Policy{Kind: Allow, Names: names}
}

func BlockPolicy(names NameSet) Policy {
	return Policy{Kind: Block, Names: names}
}

// Validate rejects policy kinds outside the three known variants.
func (p Policy) Validate() error {
	switch p.Kind {
	case Passthrough, Allow, Block:
		return nil
	default:
		return errors.Wrapf(ErrUnknownPolicy, "kind %d", int(p.Kind))
	}
}

// Matcher resolves the policy variant once and returns the per-record test.
func (p Policy) Matcher() (func(name []byte) bool, error) {
	names := p.Names
	switch p.Kind {
	case Passthrough:
		return func([]byte) bool { return true }, nil
	case Allow:
		return names.ContainsBytes, nil
	case Block:
		return func(name []byte) bool { return !names.ContainsBytes(name) }, nil
	default:
		return nil, p.Validate()
	}
}

// Keep reports whether a record named name would be kept.
func (p Policy) Keep(name string) bool {
	switch p.Kind {
	case Allow:
		return p.Names.Contains(name)
	case Block:
		return !p.Names.Contains(name)
	default:
		return p.Kind == Passthrough
	}
}

func (p Policy) String() string {
	if p.Kind == Passthrough {
		return p.Kind.String()
	}
	return p.Kind.String() + "(" + strconv.Itoa(p.Names.Len()) + " names)"
}

// MembershipProcessor drops records whose name the policy rejects.
type MembershipProcessor struct {
	name string
	keep func(name []byte) bool
}

func NewMembershipProcessor(name string, p Policy) (*MembershipProcessor, error) {
	keep, err := p.Matcher()
	if err != nil {
		return nil, err
	}
	return &MembershipProcessor{name: name, keep: keep}, nil
}

func (m *MembershipProcessor) Name() string {
	return m.name
}

func (m *MembershipProcessor) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	if m.keep(ctx.Name) {
		return entry, false, nil
	}
	return entry, true, nil // DROP
}

// recordName returns the bytes of a trimmed record line before the first
// space or tab. ok is false when the line has no such separator.
func recordName(record []byte) (name []byte, ok bool) {
	for i, c := range record {
		if c == ' ' || c == '\t' {
			return record[:i], i > 0
		}
	}
	return nil, false
}
