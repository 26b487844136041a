package userinput

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
)

// Key identifies one pending wait.
type Key struct {
	UserID    string
	ChannelID string
}

type waiter struct {
	answer     chan *discordgo.Message
	superseded chan struct{}
}

// Registry routes inbound messages to pending waits.
// The zero value is not usable; use NewRegistry.
type Registry struct {
	mu      sync.Mutex
	waiters map[Key]*waiter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		waiters: make(map[Key]*waiter),
	}
}

// Wait registers a wait for the next message from userID in channelID and blocks until it arrives.
// An older wait for the same pair is superseded and returns ErrSuperseded.
// When ctx is canceled first, the wait is unregistered and ctx.Err() is returned.
func (r *Registry) Wait(ctx context.Context, userID string, channelID string) (*discordgo.Message, error) {
	key := Key{UserID: userID, ChannelID: channelID}
	w := &waiter{
		answer:     make(chan *discordgo.Message, 1),
		superseded: make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.waiters[key]; ok {
		logger.Debugf("Superseding pending input wait for user %s in channel %s", userID, channelID)
		close(prev.superseded)
	}
	r.waiters[key] = w
	r.mu.Unlock()

	select {
	case m := <-w.answer:
		return m, nil

	case <-w.superseded:
		return nil, ErrSuperseded

	case <-ctx.Done():
		r.remove(key, w)
		// A message may have been handed over right before the removal.
		select {
		case m := <-w.answer:
			return m, nil
		default:
			return nil, ctx.Err()
		}
	}
}

// Deliver hands the message to the wait registered for its author and channel.
// It returns false when no such wait exists, in which case the message is left untouched.
func (r *Registry) Deliver(message *discordgo.Message) bool {
	if message == nil || message.Author == nil {
		return false
	}

	key := Key{UserID: message.Author.ID, ChannelID: message.ChannelID}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiters[key]
	if !ok {
		return false
	}
	delete(r.waiters, key)

	// The slot is always empty here: a waiter is removed from the map on its first delivery.
	w.answer <- message
	return true
}

// Pending reports whether a wait for the given user and channel is registered.
func (r *Registry) Pending(userID string, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.waiters[Key{UserID: userID, ChannelID: channelID}]
	return ok
}

func (r *Registry) remove(key Key, w *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.waiters[key]; ok && current == w {
		delete(r.waiters, key)
	}
}
