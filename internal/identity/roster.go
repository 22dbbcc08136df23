package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/rest"
)

// UserLister searches the server's user directory.
type UserLister interface {
	ListUsers(ctx context.Context, emailFilter, selfID string) ([]rest.WireUser, error)
}

// IdentityCache keeps contacts available across restarts. Optional.
type IdentityCache interface {
	UpsertIdentity(id chat.Identity) error
	ListIdentities() ([]chat.Identity, error)
}

// Roster resolves chat partners. Lookups go to the server; every hit
// is written through to the local cache so the contact list survives
// offline starts.
type Roster struct {
	self   chat.Identity
	rest   UserLister
	cache  IdentityCache
	logger *zap.Logger
}

func NewRoster(self chat.Identity, rest UserLister, cache IdentityCache, logger *zap.Logger) *Roster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roster{self: self, rest: rest, cache: cache, logger: logger}
}

// Self returns the logged-in user.
func (r *Roster) Self() chat.Identity {
	return r.self
}

// Search queries the directory by email fragment. The server already
// excludes the searching user from results.
func (r *Roster) Search(ctx context.Context, email string) ([]chat.Identity, error) {
	wire, err := r.rest.ListUsers(ctx, email, r.self.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	users := make([]chat.Identity, 0, len(wire))
	for _, w := range wire {
		users = append(users, w.ToIdentity())
	}
	if r.cache != nil {
		for _, u := range users {
			if err := r.cache.UpsertIdentity(u); err != nil {
				r.logger.Warn("identity cache write failed", zap.Error(err))
			}
		}
	}
	return users, nil
}

// Contacts returns everyone seen so far, preferring the server list
// and falling back to the cache when the server is unreachable.
func (r *Roster) Contacts(ctx context.Context) ([]chat.Identity, error) {
	users, err := r.Search(ctx, "")
	if err == nil {
		return users, nil
	}
	if r.cache == nil {
		return nil, err
	}
	cached, cerr := r.cache.ListIdentities()
	if cerr != nil {
		return nil, err
	}
	r.logger.Warn("user directory unreachable, serving cached contacts", zap.Error(err))
	return cached, nil
}

// Conversation pairs the local user with a chosen partner.
func (r *Roster) Conversation(remote chat.Identity) chat.Conversation {
	return chat.Conversation{Local: r.self, Remote: remote}
}

var _ UserLister = (*rest.Client)(nil)
