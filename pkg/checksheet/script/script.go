// Package script hosts user JavaScript used as template helpers while
// sheets are laid out.
//
// A script may define any of the following global functions:
//
//	formatLabel(node, depth)         -> string
//	formatValue(column, value, node) -> any
//
// Missing functions pass labels and values through unchanged. A Host is not
// safe for concurrent use; the renderer calls it from a single goroutine.
package script

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/ukaji3/checksheet-go/pkg/checksheet/models"
)

const (
	fnFormatLabel = "formatLabel"
	fnFormatValue = "formatValue"
)

// ErrTimeout is returned when a script call exceeds the host timeout.
var ErrTimeout = errors.New("script timed out")

// ScriptError wraps an exception raised by a script.
type ScriptError struct {
	Script   string
	Function string
	Err      error
}

func (e *ScriptError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("script %s: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("script %s: %s: %v", e.Script, e.Function, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Host is a JavaScript runtime with the helper library installed.
type Host struct {
	name    string
	vm      *goja.Runtime
	logger  *slog.Logger
	timeout time.Duration

	formatLabel goja.Callable
	formatValue goja.Callable
}

// Option configures a Host.
type Option func(*Host)

// WithTimeout bounds the run time of each script call. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Host) { h.timeout = d }
}

// New compiles and runs source, then resolves the formatter functions.
func New(name, source string, logger *slog.Logger, opts ...Option) (*Host, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Host{
		name:    name,
		vm:      goja.New(),
		logger:  logger.With("script", name),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.installHelpers(); err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}

	program, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}
	if err := h.guard(func() error {
		_, err := h.vm.RunProgram(program)
		return err
	}); err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}

	h.formatLabel, _ = goja.AssertFunction(h.vm.Get(fnFormatLabel))
	h.formatValue, _ = goja.AssertFunction(h.vm.Get(fnFormatValue))
	return h, nil
}

// Load reads a script file and creates a Host for it.
func Load(path string, logger *slog.Logger, opts ...Option) (*Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return New(path, string(data), logger, opts...)
}

// Has reports whether the script defines a global function name.
func (h *Host) Has(name string) bool {
	_, ok := goja.AssertFunction(h.vm.Get(name))
	return ok
}

// Call invokes a global function and exports its result to Go.
func (h *Host) Call(name string, args ...interface{}) (interface{}, error) {
	fn, ok := goja.AssertFunction(h.vm.Get(name))
	if !ok {
		return nil, &ScriptError{Script: h.name, Function: name, Err: errors.New("not a function")}
	}
	return h.call(name, fn, args...)
}

// FormatLabel implements layout.Formatter.
func (h *Host) FormatLabel(n *models.TreeNode, depth int) (string, error) {
	if h.formatLabel == nil {
		return n.Label(), nil
	}
	out, err := h.call(fnFormatLabel, h.formatLabel, nodeObject(n), depth)
	if err != nil {
		return "", err
	}
	if out == nil {
		return n.Label(), nil
	}
	return fmt.Sprint(out), nil
}

// FormatValue implements layout.Formatter.
func (h *Host) FormatValue(column string, value interface{}, n *models.TreeNode) (interface{}, error) {
	if h.formatValue == nil {
		return value, nil
	}
	return h.call(fnFormatValue, h.formatValue, column, value, nodeObject(n))
}

func (h *Host) call(name string, fn goja.Callable, args ...interface{}) (interface{}, error) {
	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = h.vm.ToValue(a)
	}

	var result goja.Value
	err := h.guard(func() error {
		var err error
		result, err = fn(goja.Undefined(), values...)
		return err
	})
	if err != nil {
		return nil, &ScriptError{Script: h.name, Function: name, Err: err}
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// guard runs fn, interrupting the runtime when the timeout elapses.
func (h *Host) guard(fn func() error) error {
	if h.timeout <= 0 {
		return fn()
	}
	timer := time.AfterFunc(h.timeout, func() {
		h.vm.Interrupt(ErrTimeout)
	})

	err := fn()
	if !timer.Stop() {
		// The interrupt fired; clear it so the next call starts clean.
		h.vm.ClearInterrupt()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	return err
}

// nodeObject exposes a node to scripts without its children.
func nodeObject(n *models.TreeNode) map[string]interface{} {
	values := make(map[string]interface{}, len(n.Values))
	for k, v := range n.Values {
		values[k] = v
	}
	return map[string]interface{}{
		"id":     n.ID,
		"text":   n.Text,
		"kind":   n.Kind,
		"image":  n.Image,
		"values": values,
		"leaf":   n.IsLeaf(),
	}
}

func (h *Host) installHelpers() error {
	console := h.vm.NewObject()
	for level, log := range map[string]func(string, ...any){
		"log":   h.logger.Info,
		"warn":  h.logger.Warn,
		"error": h.logger.Error,
	} {
		log := log
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log(strings.Join(parts, " "))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	if err := h.vm.Set("console", console); err != nil {
		return err
	}

	helpers := map[string]interface{}{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"pad": func(s string, n int) string {
			if r := n - len([]rune(s)); r > 0 {
				return s + strings.Repeat(" ", r)
			}
			return s
		},
		"repeat": strings.Repeat,
	}
	for name, fn := range helpers {
		if err := h.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}
