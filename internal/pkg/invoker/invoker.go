// Package invoker runs the shell commands that make up an install recipe
// (apt update, add-apt-repository, install.sh, ...) under a pseudo-tty so
// interactive tooling behaves the same way it would on a terminal, and
// streams the child's output back out re-encoded as UTF-8. This is the one
// place nanolayer shells out to the system; every installer funnels its
// commands through it.
package invoker

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/creack/pty"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/hostfacts"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
	"github.com/devcontainers-contrib/nanolayer/pkg/sylog"
)

// Options configures a single Run call.
type Options struct {
	// Env overlays additional environment variables on top of os.Environ().
	Env map[string]string
	// RaiseOnFailure, when true, causes Run to return a *nerrors.CommandFailed
	// if the child exits non-zero.
	RaiseOnFailure bool
	// CleanHistory forces HISTFILE=/dev/null so an interactive bash does not
	// write install-time commands into a shell history file baked into the
	// image layer. Defaults to true via DefaultOptions.
	CleanHistory bool
}

// DefaultOptions returns the common case: raise on failure, clean history.
func DefaultOptions() Options {
	return Options{RaiseOnFailure: true, CleanHistory: true}
}

// Run executes command in `sh -c` under a pseudo-tty, streaming its output
// (stdout and stderr, merged by the pty) to this process's stdout, and returns
// its exit code.
//
// Run requires root: either effective uid 0, or invocation through sudo
// (SUDO_UID set). Every shell command an installer runs goes through here,
// so the root precondition is enforced here for all of them; installers that
// write files directly check root themselves.
func Run(ctx context.Context, command string, opts Options) (int, error) {
	if !hostfacts.IsRoot() {
		return -1, &nerrors.PermissionDenied{Msg: "this operation requires root; run with sudo or as uid 0"}
	}

	env := os.Environ()
	if opts.CleanHistory {
		env = append(env, "HISTFILE=/dev/null")
	}
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = env

	sylog.Debugf("+ %s", command)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, err
	}
	defer ptmx.Close()

	stop := forwardInterrupt(cmd)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		copyUTF8(os.Stdout, ptmx)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return -1, waitErr
		}
	}

	if opts.RaiseOnFailure && exitCode != 0 {
		return exitCode, &nerrors.CommandFailed{Command: command, ReturnCode: exitCode}
	}
	return exitCode, nil
}

// forwardInterrupt relays SIGINT delivered to this process on to the child,
// so Ctrl-C during a long apt/install.sh run propagates the way it would for
// a foreground shell command. The returned func stops forwarding.
func forwardInterrupt(cmd *exec.Cmd) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			if cmd.Process != nil {
				_ = cmd.Process.Signal(os.Interrupt)
			}
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

// copyUTF8 streams src to dst, replacing any byte sequence that isn't valid
// UTF-8 with the replacement rune rather than propagating a decode error -
// some installers (apt in particular) emit Latin-1 bytes in rare locales,
// and this process's stdout is always UTF-8.
func copyUTF8(dst io.Writer, src io.Reader) {
	buf := make([]byte, 32*1024)
	var pending []byte
	for {
		n, err := src.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			valid := validUTF8Prefix(pending)
			if valid > 0 {
				_, _ = dst.Write(pending[:valid])
				pending = pending[valid:]
			}
		}
		if err != nil {
			if len(pending) > 0 {
				_, _ = dst.Write([]byte(strings.ToValidUTF8(string(pending), "�")))
			}
			return
		}
	}
}

// validUTF8Prefix returns the length of the longest prefix of b that is
// guaranteed valid UTF-8, holding back any trailing partial multi-byte
// sequence until more bytes arrive.
func validUTF8Prefix(b []byte) int {
	if utf8.Valid(b) {
		return len(b)
	}
	// walk back from the end until the tail decodes cleanly or is empty
	for i := len(b); i > 0; i-- {
		if utf8.Valid(b[:i]) {
			return i
		}
	}
	return 0
}
