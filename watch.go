package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watch regenerates once, then again after every burst of source changes,
// until ctx is done.
func (c *cli) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	c.log.Info("watching package for changes",
		zap.String("dir", c.dir),
		zap.Duration("debounce", c.cfg.Watch.Debounce))

	c.regenerate()

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !c.relevant(event) {
				continue
			}
			c.log.Debug("source changed",
				zap.String("event", event.Op.String()),
				zap.String("file", event.Name))

			if timer == nil {
				timer = time.AfterFunc(c.cfg.Watch.Debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(c.cfg.Watch.Debounce)
			}

		case <-fire:
			c.regenerate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Error("file watcher error", zap.Error(err))
		}
	}
}

func (c *cli) regenerate() {
	err := c.generate()
	switch {
	case err == nil:
	case errors.Is(err, errReported):
		c.log.Warn("package has invalid heapsize annotations", zap.String("dir", c.dir))
	default:
		c.log.Error("regeneration failed", zap.Error(err))
	}
}

// relevant reports whether event touches a source file of the package. Test
// files and the generated file are ignored.
func (c *cli) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || name == c.cfg.Output {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
