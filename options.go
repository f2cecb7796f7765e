// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package threadloop

import (
	"github.com/joeycumines/logiface"
)

// loopConfig holds configuration options for loop creation.
type loopConfig struct {
	engine Engine
	native NativeLoop
	logger *logiface.Logger[logiface.Event]
}

// --- Loop Options ---

// Option configures loop creation. Options are only observed by the Get
// call that actually creates the calling goroutine's loop.
type Option interface {
	applyLoop(*loopConfig) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopConfig) error
}

func (o *optionImpl) applyLoop(cfg *loopConfig) error {
	return o.applyLoopFunc(cfg)
}

// WithEngine selects the native engine used to create the loop.
// Defaults to the built-in engine for the platform.
func WithEngine(engine Engine) Option {
	return &optionImpl{func(cfg *loopConfig) error {
		cfg.engine = engine
		return nil
	}}
}

// WithNativeLoop wraps an existing host-supplied native loop instead of
// creating one. The resulting Loop is borrowed: Free tears down the
// extension state and clears the goroutine's slot, but the native handle
// stays with the host that supplied it.
func WithNativeLoop(native NativeLoop) Option {
	return &optionImpl{func(cfg *loopConfig) error {
		cfg.native = native
		return nil
	}}
}

// WithLogger attaches a structured logger to the loop. Lifecycle events log
// at debug level; fatal contract violations emit a critical event before
// the process terminates. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(cfg *loopConfig) error {
		cfg.logger = logger
		return nil
	}}
}

// resolveLoopConfig applies Option instances to a fresh loopConfig.
func resolveLoopConfig(opts []Option) (*loopConfig, error) {
	cfg := &loopConfig{
		engine: DefaultEngine(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
