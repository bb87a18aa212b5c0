// Package testutil holds the shared fakes and helpers used by package tests:
// a thread-safe log buffer, a scripted tool invoker, and a fake provisioner
// that counts releases.
package testutil

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/vk/installgrid/internal/environ"
	"github.com/vk/installgrid/internal/toolexec"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Response scripts the outcome of a fake invocation.
type Response struct {
	ExitCode int
	Output   string
	Err      error
	// Block, when true, makes the call wait until the context is canceled
	// and then return ctx.Err(). Used to test cancellation mid-phase.
	Block bool
}

// rule pairs a substring pattern with its scripted response.
type rule struct {
	pattern string
	resp    Response
}

// FakeInvoker is a scripted toolexec.Invoker. Responses are matched by
// substring against the joined argv, first match wins; unmatched commands
// succeed with exit 0.
type FakeInvoker struct {
	mu    sync.Mutex
	rules []rule
	calls []string
}

// Respond registers a scripted response for commands containing pattern.
func (f *FakeInvoker) Respond(pattern string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{pattern: pattern, resp: resp})
}

// Calls returns the joined argv of every invocation, in call order.
func (f *FakeInvoker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsMatching returns the recorded commands containing pattern.
func (f *FakeInvoker) CallsMatching(pattern string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.Contains(c, pattern) {
			out = append(out, c)
		}
	}
	return out
}

// Run implements toolexec.Invoker.
func (f *FakeInvoker) Run(ctx context.Context, dir string, argv []string) (*toolexec.Result, error) {
	if len(argv) == 0 {
		return nil, toolexec.ErrEmptyArgv
	}
	cmd := strings.Join(argv, " ")

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var matched *Response
	for i := range f.rules {
		if strings.Contains(cmd, f.rules[i].pattern) {
			matched = &f.rules[i].resp
			break
		}
	}
	f.mu.Unlock()

	res := &toolexec.Result{Argv: argv}
	if matched == nil {
		return res, nil
	}
	if matched.Block {
		<-ctx.Done()
		return res, ctx.Err()
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	res.ExitCode = matched.ExitCode
	res.Output = matched.Output
	return res, matched.Err
}

// FakeProvisioner hands out environments backed by a FakeInvoker and counts
// how many times each environment's release ran.
type FakeProvisioner struct {
	Invoker toolexec.Invoker
	// FailFor maps "os/version" to an error returned instead of provisioning.
	FailFor map[string]error

	mu       sync.Mutex
	released map[string]int
}

// Provision implements environ.Provisioner.
func (p *FakeProvisioner) Provision(ctx context.Context, osName, version string) (*environ.Environment, error) {
	if err, ok := p.FailFor[osName+"/"+version]; ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var env *environ.Environment
	env = environ.New(osName, version, "", p.Invoker, nil, func(context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.released == nil {
			p.released = make(map[string]int)
		}
		p.released[env.ID]++
		return nil
	})
	return env, nil
}

// ReleaseCount returns how many times the environment with the given ID was
// actually torn down.
func (p *FakeProvisioner) ReleaseCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released[id]
}

// TotalReleases sums teardown executions across all environments.
func (p *FakeProvisioner) TotalReleases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.released {
		total += n
	}
	return total
}
