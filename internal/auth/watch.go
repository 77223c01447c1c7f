// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/wattchat/internal/storage"
)

// ErrWatchUnsupported is returned by WatchLogout for stores that cannot
// report changes made by other processes.
var ErrWatchUnsupported = errors.New("session store cannot be watched")

type watchable interface {
	Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error)
}

type wrapper interface {
	Inner() storage.Storage
}

// WatchLogout sends on the returned channel whenever the stored token
// disappears, e.g. after `wattchat logout` in another terminal. The
// channel is closed when ctx is done.
func (g *Gate) WatchLogout(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	store := g.store
	for {
		if w, ok := store.(wrapper); ok {
			store = w.Inner()
			continue
		}
		break
	}
	w, ok := store.(watchable)
	if !ok {
		return nil, ErrWatchUnsupported
	}

	changes, err := w.Watch(ctx, debounce)
	if err != nil {
		return nil, err
	}

	had := g.LoggedIn(ctx)
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range changes {
			has := g.LoggedIn(ctx)
			if had && !has {
				select {
				case out <- struct{}{}:
				default:
				}
			}
			had = has
		}
	}()
	return out, nil
}
