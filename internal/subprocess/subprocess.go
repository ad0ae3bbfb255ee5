// Package subprocess implements SubprocessBridge (§4.1): running an
// external media tool with an out-of-band timeout and mandatory
// concurrent stdout/stderr draining. Draining is started on background
// goroutines before Wait() is ever called, since single-threaded draining
// after Wait() deadlocks once the OS pipe buffer (~64 KiB) fills during a
// multi-megabyte progress log.
package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

// Result is the outcome of a single Run call.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

type Bridge struct {
	log            *logger.Logger
	defaultTimeout time.Duration
}

func New(log *logger.Logger, defaultTimeoutSecs int) *Bridge {
	return &Bridge{
		log:            log.With("component", "SubprocessBridge"),
		defaultTimeout: time.Duration(defaultTimeoutSecs) * time.Second,
	}
}

// Run executes bin with args, enforcing timeout (0 = use the bridge's
// default). stdout/stderr are drained concurrently on separate goroutines;
// both drains and the process exit are joined before Run returns.
func (b *Bridge) Run(ctx context.Context, bin string, args []string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	if _, err := exec.LookPath(bin); err != nil {
		if !isAbsExecutable(bin) {
			return nil, &indexerrors.ExecutableNotFoundError{Path: bin}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, indexerrors.NewStorageError("subprocess.stdout-pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, indexerrors.NewStorageError("subprocess.stderr-pipe", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var mu sync.Mutex

	var g errgroup.Group

	if err := cmd.Start(); err != nil {
		return nil, &indexerrors.ExecutableNotFoundError{Path: bin}
	}

	// Drains must be started before Wait(); they run in parallel with the
	// process and with each other (§5 ordering guarantee).
	g.Go(func() error {
		drain(stdoutPipe, &stdoutBuf, &mu)
		return nil
	})
	g.Go(func() error {
		drain(stderrPipe, &stderrBuf, &mu)
		return nil
	})

	waitErr := cmd.Wait()
	_ = g.Wait() // drains always finish once the pipes close on process exit

	timedOut := runCtx.Err() == context.DeadlineExceeded

	res := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		TimedOut: timedOut,
	}

	if timedOut {
		return res, &indexerrors.TimeoutError{Seconds: timeout.Seconds()}
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return res, indexerrors.NewStorageError("subprocess.wait", waitErr)
		}
	}
	return res, nil
}

// RunValidated behaves like Run but fails fast with ExecutableNotFoundError
// if the tool cannot be resolved on PATH.
func (b *Bridge) RunValidated(ctx context.Context, bin string, args []string, timeout time.Duration) (*Result, error) {
	if _, err := exec.LookPath(bin); err != nil && !isAbsExecutable(bin) {
		return nil, &indexerrors.ExecutableNotFoundError{Path: bin}
	}
	return b.Run(ctx, bin, args, timeout)
}

func isAbsExecutable(bin string) bool {
	fi, err := os.Stat(bin)
	return err == nil && !fi.IsDir()
}

func drain(r interface{ Read([]byte) (int, error) }, buf *bytes.Buffer, mu *sync.Mutex) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		mu.Lock()
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
		mu.Unlock()
	}
}

var durationLineRe = regexp.MustCompile(`Duration:\s*(\d{2}):(\d{2}):(\d{2})\.(\d{1,2})`)

// ExtractDurationFromLog parses a "Duration: HH:MM:SS.ss" line out of a
// tool's stderr log, as emitted by the probe-duration call.
func ExtractDurationFromLog(stderr string) (float64, bool) {
	m := durationLineRe.FindStringSubmatch(stderr)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac := m[4]
	for len(frac) < 2 {
		frac += "0"
	}
	hundredths, _ := strconv.Atoi(frac[:2])
	total := float64(hours*3600+minutes*60+seconds) + float64(hundredths)/100.0
	return total, true
}

// IsMissingAudioStreamError re-exports the stderr classifier so callers in
// this package don't need a second import.
func IsMissingAudioStreamError(stderr string) bool {
	return indexerrors.IsMissingAudioStreamError(stderr)
}

// StderrTail returns up to the last 500 characters of stderr, per §6's
// process exit taxonomy ("anything else = fail with exit code + tail 500
// chars of stderr").
func StderrTail(stderr string) string {
	if len(stderr) <= 500 {
		return stderr
	}
	return stderr[len(stderr)-500:]
}

func NewProcessExitedError(code int, stderr string) error {
	return &indexerrors.ProcessExitedWithErrorError{Code: code, StderrTail: StderrTail(stderr)}
}
