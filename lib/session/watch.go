// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the session whenever the session file is replaced or
// written, until ctx is done. The directory is watched rather than the
// file because Save replaces the file by rename.
//
// onChange, if non-nil, is called after each reload that changed the
// session.
func (p *Provider) Watch(ctx context.Context, onChange func(*Session)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(p.store.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("session: watching %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			changed, err := p.Reload()
			if err != nil {
				if errors.Is(err, ErrNoSession) {
					continue
				}
				p.logger.Warn("reloading session failed", "path", target, "error", err)
				continue
			}
			if changed && onChange != nil {
				current, err := p.Current(ctx)
				if err != nil {
					p.logger.Warn("reading reloaded session failed", "error", err)
					continue
				}
				onChange(current)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("session watcher error", "error", err)
		}
	}
}
