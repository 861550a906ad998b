package inject

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type runCall struct {
	name string
	args []string
}

func (c runCall) String() string {
	return c.name + " " + strings.Join(c.args, " ")
}

// fakeRunner records every command and answers with respond, if set.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	respond func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{name: name, args: slices.Clone(args)})
	respond := f.respond
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if respond == nil {
		return nil, nil
	}
	return respond(name, args)
}

func (f *fakeRunner) Calls() []runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}
