package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Preprocessor wraps one external conversion tool. Implementations validate
// input, pipe the raw bytes through the tool's stdin, and read final
// browser-ready bytes from its stdout in a single step. No temporary files
// are written and no shell is involved: the argument list is fully
// enumerated, never concatenated with caller-controlled data.
type Preprocessor interface {
	// Name identifies the implementation ("imagemagick", "graphicsmagick").
	Name() string
	// Supports reports whether the implementation handles the token.
	Supports(token FormatToken) bool
	// Available probes whether the external tool is installed and
	// executable. Probe failures are swallowed into false, never raised.
	Available(ctx context.Context) bool
	// Convert produces final encoded bytes for the target format.
	Convert(ctx context.Context, data []byte, filename string, target TargetFormat) ([]byte, error)
}

// validateInput enforces the shared preconditions of every preprocessor:
// non-empty input, input under the size limit, and a supported token.
func validateInput(data []byte, filename string, supported map[FormatToken]bool, limits ResourceLimits) error {
	if len(data) == 0 {
		return invalidInputErr("empty input data")
	}
	if int64(len(data)) > limits.MaxInputSize {
		return invalidInputErr(fmt.Sprintf("input too large: %d bytes (max %d)", len(data), limits.MaxInputSize))
	}
	token := Token(filename)
	if token == "" {
		return invalidInputErr("filename has no extension")
	}
	if !supported[token] {
		return invalidInputErr(fmt.Sprintf("format %q not supported by this preprocessor", token))
	}
	return nil
}

// stderrLimit caps how much diagnostic output is retained from a failed
// subprocess.
const stderrLimit = 4 * 1024

// runTool executes an external conversion command with the input piped to
// stdin and the result captured from stdout. The process is hard-killed when
// the timeout elapses. Returned stderr is diagnostic detail only; callers
// must not surface it to end users.
func runTool(ctx context.Context, timeout time.Duration, stdin []byte, name string, args ...string) (out []byte, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	diag := stderrBuf.String()
	if len(diag) > stderrLimit {
		diag = diag[len(diag)-stderrLimit:]
	}
	diag = strings.TrimSpace(diag)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return nil, diag, timeoutErr(
			fmt.Sprintf("conversion timed out after %s", timeout),
			diag, ctxErr)
	}
	if runErr != nil {
		return nil, diag, runErr
	}
	return stdoutBuf.Bytes(), diag, nil
}

// probeTool runs a tool's version command and reports whether it succeeded.
// Any failure, including the binary being absent, maps to false.
func probeTool(ctx context.Context, timeout time.Duration, name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
