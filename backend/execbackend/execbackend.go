// Package execbackend implements a resolution backend that is an external
// command, run once per share URL.
//
// The command is invoked as
//
//	<command> [args...] <share URL>
//
// and is expected to print either a JSON document or a bare direct link on
// stdout, exiting zero on success.
package execbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mccutchen/directlink"
	"github.com/mccutchen/directlink/bufferpool"
)

const maxOutputSize = 1 << 20

var buffers = bufferpool.New()

// ErrOutputTooLarge is returned instead of decoding partial output.
var ErrOutputTooLarge = errors.New("resolver backend output exceeds 1 MiB")

// Command runs an external resolver command.
type Command struct {
	path string
	args []string
}

var _ directlink.Caller = &Command{} // Command implements directlink.Caller

// New creates a Command that runs the executable at path with args followed
// by the share URL.
func New(path string, args ...string) *Command {
	return &Command{path: path, args: args}
}

// Strategy returns a directlink.Strategy that looks up name on PATH.
func Strategy(name string, args ...string) directlink.Strategy {
	return directlink.Strategy{
		Name: "exec:" + name,
		Acquire: func(ctx context.Context) (any, error) {
			if name == "" {
				return nil, fmt.Errorf("no command configured: %w", directlink.ErrMissing)
			}
			path, err := exec.LookPath(name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", err, directlink.ErrMissing)
			}
			return New(path, args...), nil
		},
	}
}

// Installed reports whether the named command can be found on PATH.
func Installed(name string) bool {
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// SearchPath returns up to n entries of the PATH the command is looked up
// in.
func SearchPath(n int) []string {
	dirs := filepath.SplitList(os.Getenv("PATH"))
	if len(dirs) > n {
		dirs = dirs[:n]
	}
	return dirs
}

// Call runs the command for shareURL and decodes its output.
func (c *Command) Call(ctx context.Context, shareURL string) (directlink.Value, error) {
	args := append(append([]string{}, c.args...), shareURL)
	cmd := exec.CommandContext(ctx, c.path, args...)

	stdout, stderr := buffers.Get(), buffers.Get()
	defer buffers.Put(stdout)
	defer buffers.Put(stderr)
	out := &limitedWriter{w: stdout, n: maxOutputSize}
	cmd.Stdout = out
	cmd.Stderr = &limitedWriter{w: stderr, n: maxOutputSize}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := lastLine(stderr.String()); msg != "" {
				return directlink.Value{}, fmt.Errorf("%s: %s", filepath.Base(c.path), msg)
			}
		}
		return directlink.Value{}, fmt.Errorf("%s: %w", filepath.Base(c.path), err)
	}

	if out.truncated {
		return directlink.Value{}, fmt.Errorf("%s: %w", filepath.Base(c.path), ErrOutputTooLarge)
	}
	return decodeOutput(stdout.Bytes()), nil
}

func decodeOutput(out []byte) directlink.Value {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return directlink.Value{}
	}

	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err == nil && !dec.More() {
		return directlink.FromAny(raw)
	}
	return directlink.Text(string(out))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// limitedWriter discards anything written past its first n bytes and
// records that it did.
type limitedWriter struct {
	w         io.Writer
	n         int
	truncated bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if total > l.n {
		l.truncated = true
	}
	if l.n <= 0 {
		return total, nil
	}
	if len(p) > l.n {
		p = p[:l.n]
	}
	n, err := l.w.Write(p)
	l.n -= n
	if err != nil {
		return n, err
	}
	return total, nil
}
