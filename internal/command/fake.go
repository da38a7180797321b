package command

import (
	"fmt"
	"strings"
	"sync"
)

// Call is one invocation recorded by Fake.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Reply is the canned outcome Fake returns for a command line.
type Reply struct {
	Result Result
	Err    error
}

// Fake is a scripted Runner for tests. Replies are keyed by the full
// command line ("ss -H -t ..."); lines without a reply fail to start.
type Fake struct {
	mu      sync.Mutex
	Replies map[string]Reply
	Calls   []Call
}

func (f *Fake) Run(name string, args ...string) (Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)

	reply, ok := f.Replies[call.String()]
	if !ok {
		return Result{}, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return reply.Result, reply.Err
}

// Invoked returns the recorded command lines in order.
func (f *Fake) Invoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.String()
	}
	return out
}
