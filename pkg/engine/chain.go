package engine

import "github.com/pkg/errors"

// ProcessorChain runs processors in order.
type ProcessorChain struct {
	processors []Processor
}

func NewProcessorChain(processors ...Processor) *ProcessorChain {
	return &ProcessorChain{
		processors: processors,
	}
}

// Process runs the entry through all processors in the chain.
// It stops at the first processor that drops the entry or fails.
func (c *ProcessorChain) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	var drop bool
	var err error

	for _, p := range c.processors {
		entry, drop, err = p.Process(ctx, entry)
		if err != nil {
			return entry, false, errors.Wrapf(err, "processor %s", p.Name())
		}
		if drop {
			return entry, true, nil
		}
	}

	return entry, false, nil
}

// Names lists the processors in order.
func (c *ProcessorChain) Names() []string {
	out := make([]string, len(c.processors))
	for i, p := range c.processors {
		out[i] = p.Name()
	}
	return out
}
