package model

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/store"
)

const listLimit = 100

// Remote lists the conversations the server knows about.
type Remote interface {
	Conversations(ctx context.Context, limit, offset int) ([]chat.Conversation, error)
}

// Archive is the part of the local archive the TUI reads and writes.
type Archive interface {
	UpsertConversation(c *store.Conversation) error
	ListConversations(limit, offset int) ([]store.Conversation, error)
	SearchMessages(query, conversationID string, limit int) ([]store.SearchResult, error)
	GetState(key string) (string, error)
}

// ViewModel holds the conversation list and the one mounted conversation view.
type ViewModel struct {
	mu sync.RWMutex

	archive Archive
	remote  Remote
	factory *conversation.Factory
	logger  *zap.Logger

	conversations []store.Conversation
	active        *conversation.View
}

// NewViewModel creates a view model. remote may be nil when no server is
// configured.
func NewViewModel(archive Archive, remote Remote, factory *conversation.Factory, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		archive: archive,
		remote:  remote,
		factory: factory,
		logger:  logger,
	}
}

// LoadConversations refreshes the list from the server when reachable, then
// reads it back from the archive, which carries previews and unread counts.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	var remoteErr error
	if vm.remote != nil {
		convs, err := vm.remote.Conversations(ctx, listLimit, 0)
		if err != nil {
			remoteErr = err
			vm.logger.Warn("listing remote conversations failed", zap.Error(err))
		}
		for _, c := range convs {
			err := vm.archive.UpsertConversation(&store.Conversation{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				IsGroup:     c.IsGroup,
			})
			if errors.Is(err, store.ErrReadOnly) {
				break
			}
			if err != nil {
				return err
			}
		}
	}

	if err := vm.Reload(); err != nil {
		return err
	}
	return remoteErr
}

// Reload reads the conversation list from the archive only.
func (vm *ViewModel) Reload() error {
	convs, err := vm.archive.ListConversations(listLimit, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = convs
	vm.mu.Unlock()
	return nil
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []store.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// Title returns the display name of a listed conversation.
func (vm *ViewModel) Title(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.ID == id && c.Name != "" {
			return c.Name
		}
	}
	return id
}

// LastConversation returns the conversation opened most recently, if any.
func (vm *ViewModel) LastConversation() string {
	id, err := vm.archive.GetState(store.StateLastConversation)
	if err != nil {
		return ""
	}
	return id
}

// Open unmounts the current view and mounts one for id.
func (vm *ViewModel) Open(ctx context.Context, id string) (*conversation.View, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.active != nil {
		if vm.active.ID() == id {
			return vm.active, nil
		}
		vm.active.Unmount()
		vm.active = nil
	}
	v, err := vm.factory.View(id)
	if err != nil {
		return nil, err
	}
	if err := v.Mount(ctx); err != nil {
		return nil, err
	}
	vm.active = v
	return v, nil
}

// Active returns the mounted view, or nil.
func (vm *ViewModel) Active() *conversation.View {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Self returns the local identity.
func (vm *ViewModel) Self() chat.Identity {
	return vm.factory.Self()
}

// Leave unmounts v if it is still the active view.
func (vm *ViewModel) Leave(v *conversation.View) {
	vm.mu.Lock()
	if vm.active != v || v == nil {
		vm.mu.Unlock()
		return
	}
	vm.active = nil
	vm.mu.Unlock()
	v.Unmount()
}

// Close unmounts the active view.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.active != nil {
		vm.active.Unmount()
		vm.active = nil
	}
}

// Search runs a full-text query over the archive.
func (vm *ViewModel) Search(query string) ([]store.SearchResult, error) {
	return vm.archive.SearchMessages(query, "", 50)
}
