// Package notify runs a user command when a run reaches a terminal outcome.
//
// The command line is split with shell quoting rules (no shell is
// invoked). Arguments may contain {placeholders} which are substituted
// from the outcome; the same values are exported as DROPWATCH_*
// environment variables, and the outcome summary is written to stdin
// as JSON.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/pipeline"
)

// DefaultTimeout bounds a notify command when none is configured
const DefaultTimeout = 10 * time.Second

// Hook is a parsed notify command. A nil *Hook is valid and does nothing.
type Hook struct {
	argv    []string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New parses command. An empty command yields a nil hook.
func New(command string, timeout time.Duration, log *zap.SugaredLogger) (*Hook, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, nil
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.WithHint(
			errors.Mark(errors.Wrapf(err, "invalid notify command %q", command), errors.ErrInvalidRequest),
			"check quoting in notify.command",
		)
	}
	if len(argv) == 0 {
		return nil, nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hook{argv: argv, timeout: timeout, log: log}, nil
}

// Argv returns the parsed command before placeholder substitution
func (h *Hook) Argv() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.argv...)
}

// Run executes the command for a terminal outcome
func (h *Hook) Run(ctx context.Context, out pipeline.Outcome) error {
	if h == nil {
		return nil
	}
	if !out.Terminal() {
		return errors.NewInvalidRequestError("notify requires a terminal outcome, got %s", out.Stage)
	}

	vars := Vars(out)
	args := make([]string, len(h.argv))
	for i, a := range h.argv {
		args[i] = expand(a, vars)
	}

	stdin, err := json.Marshal(out.Summary())
	if err != nil {
		return errors.Wrap(err, "failed to encode outcome for notify")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), environ(vars)...)
	cmd.Stdin = bytes.NewReader(stdin)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	h.log.Debugw("Notify command finished",
		"command", args[0],
		"duration_ms", time.Since(start).Milliseconds(),
		"output", strings.TrimSpace(output.String()),
	)
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Mark(errors.Wrapf(runErr, "notify command timed out after %s", h.timeout), errors.ErrTimeout)
		}
		return errors.Wrapf(runErr, "notify command failed: %s", strings.TrimSpace(output.String()))
	}
	return nil
}

// Vars returns the placeholder values for an outcome, keyed by lower-case name
func Vars(out pipeline.Outcome) map[string]string {
	v := map[string]string{
		"run_id":    out.RunID,
		"kind":      out.TargetKind,
		"target":    out.Target,
		"stage":     out.Stage.String(),
		"reason":    string(out.Reason),
		"message":   out.Message,
		"exit_code": strconv.Itoa(out.ExitCode()),
		"confirmed": strconv.FormatBool(out.Confirmed),
		"manual":    strconv.FormatBool(out.ManualCompletion),
	}
	if out.Stage == pipeline.StageFailed {
		v["failed_stage"] = out.FailedStage.String()
	} else {
		v["failed_stage"] = ""
	}
	v["item_id"], v["item_url"] = "", ""
	if out.Signal.Item != nil {
		v["item_id"] = out.Signal.Item.ID
		v["item_url"] = out.Signal.Item.URL
	}
	return v
}

func expand(arg string, vars map[string]string) string {
	if !strings.Contains(arg, "{") {
		return arg
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, val := range vars {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(arg)
}

func environ(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, val := range vars {
		env = append(env, "DROPWATCH_"+strings.ToUpper(k)+"="+val)
	}
	return env
}
