// Package interval produces randomized waits and runs a chain of delayed
// actions, each one scheduled only after the previous one has returned.
//
// Randomness comes from crypto/rand rather than math/rand so the spacing of
// requests carries no predictable pattern.
package interval

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

// ErrStop is returned by an action to end a Schedule loop cleanly.
var ErrStop = errors.New("interval: stop")

// Config bounds the random interval, in minutes.
type Config struct {
	MinMinutes float64
	MaxMinutes float64
}

// Validate checks that 0 <= MinMinutes <= MaxMinutes.
func (c Config) Validate() error {
	if math.IsNaN(c.MinMinutes) || math.IsNaN(c.MaxMinutes) || c.MinMinutes < 0 || c.MaxMinutes < c.MinMinutes {
		return fmt.Errorf("invalid interval range [%v, %v] minutes", c.MinMinutes, c.MaxMinutes)
	}
	return nil
}

// Generator draws random intervals and drives the action chain.
type Generator struct {
	cfg  Config
	rand io.Reader
	wait WaitFunc
	log  *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces crypto/rand.Reader as the source of randomness.
func WithRand(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

// WithWaiter replaces the real-time wait between actions.
func WithWaiter(w WaitFunc) Option {
	return func(g *Generator) { g.wait = w }
}

// WithLogger sets the logger used for interval announcements.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// New returns a Generator for cfg. It fails if cfg is invalid or the random
// source cannot be read.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		cfg:  cfg,
		rand: rand.Reader,
		wait: Sleeper(clock.New()),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if _, err := Fraction(g.rand); err != nil {
		return nil, fmt.Errorf("random source unavailable: %w", err)
	}
	return g, nil
}

// NextInterval draws the next wait, floored to whole milliseconds. The
// result lies in [MinMinutes, MaxMinutes) minutes.
func (g *Generator) NextInterval() time.Duration {
	r, err := Fraction(g.rand)
	if err != nil {
		g.log.Warn("random source read failed, using midpoint", zap.Error(err))
		r = 0.5
	}
	minutes := g.cfg.MinMinutes + r*(g.cfg.MaxMinutes-g.cfg.MinMinutes)
	ms := math.Floor(minutes * 60_000)

	g.log.Info("next request scheduled",
		zap.Float64("minutes", math.Round(minutes*100)/100),
	)
	return time.Duration(ms) * time.Millisecond
}

// Schedule waits a fresh random interval, runs action, and repeats. It
// returns nil when action returns ErrStop, the action's error for any other
// failure, and ctx.Err() when the context ends during a wait.
func (g *Generator) Schedule(ctx context.Context, action func(context.Context) error) error {
	for {
		if err := g.wait(ctx, g.NextInterval()); err != nil {
			return err
		}
		if err := action(ctx); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}
