package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/pathflow/internal/logging"
	"golang.org/x/term"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})
	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger on Stderr, keeping Stdout for
// command output. Quiet discards everything below Error.
func NewLogger(level string, quiet bool) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if quiet && lvl < slog.LevelError {
		lvl = slog.LevelError
	}
	return logging.New(lvl), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// parseJSON decodes raw, keeping numbers as json.Number like the context does.
func parseJSON(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// ReadPayload resolves the payload argument of run. "-" reads Stdin; an empty
// value reads Stdin only when it is piped. The text is decoded as JSON when
// possible and used as a plain string otherwise.
func ReadPayload(raw string, stdin *os.File) (any, error) {
	if raw == "-" || (raw == "" && stdin != nil && !term.IsTerminal(int(stdin.Fd()))) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("error reading payload from stdin: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, nil
	}
	raw, err := SanitizeInput(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := parseJSON(raw, &v); err != nil {
		return raw, nil
	}
	return v, nil
}

// ParseContext decodes the --context flag.
func ParseContext(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var seed map[string]any
	if err := parseJSON(raw, &seed); err != nil {
		return nil, fmt.Errorf("error parsing --context JSON: %w", err)
	}
	return seed, nil
}
