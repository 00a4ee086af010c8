// Package i3block nudges a running i3blocks to refresh the lyric block
// whenever the displayed line changes.
package i3block

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// sigRTMin is SIGRTMIN on Linux; i3blocks maps block signal N to SIGRTMIN+N.
	sigRTMin       = 34
	refreshPeriod  = 10 * time.Second
	processPattern = "i3blocks"
)

var ErrNotFound = errors.New("i3blocks process not found")

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Controller tracks the i3blocks PID and signals it.
type Controller struct {
	signal syscall.Signal
	logger zerolog.Logger
	run    commandFunc
	kill   func(pid int, sig syscall.Signal) error

	mu  sync.RWMutex
	pid int
}

// NewController signals block number blockSignal.
func NewController(blockSignal int) *Controller {
	return &Controller{
		signal: syscall.Signal(sigRTMin + blockSignal),
		logger: log.With().Str("component", "i3block").Logger(),
		run:    runCommand,
		kill:   syscall.Kill,
		pid:    -1,
	}
}

// Start refreshes the PID now and then every ten seconds until ctx ends.
func (c *Controller) Start(ctx context.Context) {
	if err := c.refreshPID(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("i3blocks not running yet")
	}
	go func() {
		ticker := time.NewTicker(refreshPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.refreshPID(ctx); err != nil && ctx.Err() == nil {
					c.logger.Debug().Err(err).Msg("Failed to refresh i3blocks PID")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	c.logger.Info().Int("signal", int(c.signal)).Msg("i3block controller started")
}

func (c *Controller) refreshPID(ctx context.Context) error {
	pid, err := c.findPID(ctx)
	c.mu.Lock()
	old := c.pid
	if err != nil {
		c.pid = -1
	} else {
		c.pid = pid
	}
	c.mu.Unlock()

	if err == nil && old != pid {
		c.logger.Info().Int("old_pid", old).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return err
}

// findPID asks pgrep first and falls back to scanning ps.
func (c *Controller) findPID(ctx context.Context) (int, error) {
	if out, err := c.run(ctx, "pgrep", "-x", processPattern); err == nil {
		return parsePgrep(string(out))
	}
	out, err := c.run(ctx, "ps", "-eo", "pid,comm")
	if err != nil {
		return -1, fmt.Errorf("failed to run ps: %w", err)
	}
	return parsePS(string(out))
}

// parsePgrep takes the first PID pgrep printed.
func parsePgrep(out string) (int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return -1, ErrNotFound
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID %q: %w", fields[0], err)
	}
	return pid, nil
}

// parsePS reads `ps -eo pid,comm` output.
func parsePS(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != processPattern {
			continue
		}
		if pid, err := strconv.Atoi(fields[0]); err == nil {
			return pid, nil
		}
	}
	return -1, ErrNotFound
}

func (c *Controller) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pid
}

// Notify signals i3blocks to re-run the lyric block.
func (c *Controller) Notify() error {
	pid := c.PID()
	if pid <= 0 {
		return ErrNotFound
	}
	if err := c.kill(pid, c.signal); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", c.signal, pid, err)
	}
	return nil
}
