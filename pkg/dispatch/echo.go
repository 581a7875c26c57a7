// Package dispatch provides the built-in request dispatchers shipped with
// the servicehost daemon. Production deployments plug in their own
// host.Dispatcher; the echo dispatcher exists so the daemon is usable
// standalone.
package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/firstsee/servicehost/internal/logger"
	"github.com/firstsee/servicehost/pkg/host"
)

// Echo is a line-oriented dispatcher: every received line is written back
// to the client. When an operation set has been propagated at
// initialization, the first word of each line must name a recognized
// operation; an unrecognized one fails the request.
type Echo struct {
	mu  sync.RWMutex
	ops map[string]struct{}
}

// NewEcho creates an echo dispatcher with no operation restrictions.
func NewEcho() *Echo {
	return &Echo{}
}

// SetOperations installs the recognized operation set.
func (e *Echo) SetOperations(ops []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ops = make(map[string]struct{}, len(ops))
	for _, op := range ops {
		e.ops[op] = struct{}{}
	}
}

// Process echoes lines back until the client closes the connection.
func (e *Echo) Process(ctx context.Context, req *host.Request) error {
	scanner := bufio.NewScanner(req)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := e.checkOperation(line); err != nil {
			return err
		}

		if _, err := fmt.Fprintln(req, line); err != nil {
			return fmt.Errorf("echo write: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.DebugCtx(ctx, "echo read ended", logger.Err(err))
	}
	return nil
}

func (e *Echo) checkOperation(line string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.ops) == 0 {
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if _, ok := e.ops[fields[0]]; !ok {
		return fmt.Errorf("unrecognized operation %q", fields[0])
	}
	return nil
}
