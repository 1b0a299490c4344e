package unit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultCommand runs a notebook through papermill, writing the executed
// notebook to the work artifact.
var DefaultCommand = []string{
	"papermill", "{unit}", "{artifact}",
	"-p", "input_path", "{input}",
	"-p", "output_path", "{output}",
	"{params}",
}

// ErrCommandFailed reports a unit process that exited unsuccessfully.
var ErrCommandFailed = errors.New("unit command failed")

// outputTail bounds how much process output is carried in an error.
const outputTail = 2048

// Command runs a unit as an external process built from an argv template.
//
// Template elements may contain {unit}, {input}, {output}, {artifact} and
// {stage}. An element that is exactly {params} expands to "-p key value"
// triples in key order. The same values are exported to the child as
// INSURAFLOW_* environment variables.
type Command struct {
	argv    []string
	dir     string
	timeout time.Duration
}

// CommandOption configures a Command.
type CommandOption func(*Command)

// WithDir sets the working directory of the child process.
func WithDir(dir string) CommandOption { return func(c *Command) { c.dir = dir } }

// WithTimeout bounds every invocation. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) CommandOption { return func(c *Command) { c.timeout = d } }

// NewCommand validates the template and checks that its program is on PATH.
// An empty template selects DefaultCommand.
func NewCommand(argv []string, opts ...CommandOption) (*Command, error) {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	bin := strings.TrimSpace(argv[0])
	if bin == "" {
		return nil, errors.New("unit command: empty program name")
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("unit command %q not found: %w", bin, err)
	}
	c := &Command{argv: append([]string(nil), argv...)}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Args expands the template for inv.
func (c *Command) Args(inv Invocation) []string {
	r := strings.NewReplacer(
		"{unit}", inv.Unit,
		"{input}", inv.Input,
		"{output}", inv.Output,
		"{artifact}", inv.WorkArtifact,
		"{stage}", inv.Stage,
	)
	out := make([]string, 0, len(c.argv)+3*len(inv.Params))
	for _, a := range c.argv {
		if a == "{params}" {
			for _, k := range sortedKeys(inv.Params) {
				out = append(out, "-p", k, inv.Params[k])
			}
			continue
		}
		out = append(out, r.Replace(a))
	}
	return out
}

// Env returns the variables exported to the child in addition to os.Environ.
func (c *Command) Env(inv Invocation) []string {
	env := []string{
		"INSURAFLOW_STAGE=" + inv.Stage,
		"INSURAFLOW_INPUT_PATH=" + inv.Input,
		"INSURAFLOW_OUTPUT_PATH=" + inv.Output,
		"INSURAFLOW_WORK_ARTIFACT=" + inv.WorkArtifact,
	}
	for _, k := range sortedKeys(inv.Params) {
		env = append(env, "INSURAFLOW_PARAM_"+envKey(k)+"="+inv.Params[k])
	}
	return env
}

// Run executes the expanded command and waits for it.
func (c *Command) Run(ctx context.Context, inv Invocation) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	args := c.Args(inv)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.dir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), c.Env(inv)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrCommandFailed, args[0], ctxErr)
		}
		return fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, args[0], err, tail(out))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// envKey upper-cases k and maps anything outside [A-Z0-9_] to '_'.
func envKey(k string) string {
	b := []byte(strings.ToUpper(k))
	for i, ch := range b {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}
