// Package reconcile holds the ordered message collection of one open
// conversation and merges optimistic sends, server echoes, broadcasts,
// receipts and REST history into exactly one record per logical message.
package reconcile

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/pulse/internal/chat"
)

// Rule names which slot-matching step an upsert landed on.
type Rule string

const (
	RuleID          Rule = "id"
	RuleTempID      Rule = "temp_id"
	RulePlaceholder Rule = "placeholder"
	RuleDuplicate   Rule = "duplicate"
	RuleAppended    Rule = "appended"
)

// Result describes the outcome of an Upsert.
type Result struct {
	Rule           Rule
	ResolvedTempID string
	Message        chat.Message
}

// PreviewFunc receives preview text for the owning conversation.
type PreviewFunc func(conversationID, text string)

// Option configures a Store.
type Option func(*Store)

// WithPolicy overrides the match windows.
func WithPolicy(p MatchPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPreview registers the preview side channel.
func WithPreview(fn PreviewFunc) Option {
	return func(s *Store) { s.onPreview = fn }
}

// Store is the single-writer message collection of one conversation view.
// Every mutation holds mu for its whole duration so no caller ever observes
// a pending entry removed but not yet merged.
type Store struct {
	mu             sync.Mutex
	conversationID string
	self           chat.Identity
	policy         MatchPolicy
	pending        *PendingRing
	messages       []entry
	now            func() time.Time
	onPreview      PreviewFunc
}

// entry is a stored message plus its local arrival time, which stands in
// for a missing CreatedAt during window matching but never affects ordering.
type entry struct {
	chat.Message
	seen time.Time
}

func (e entry) stamp() time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.seen
}

// NewStore creates an empty store for conversationID.
func NewStore(conversationID string, self chat.Identity, opts ...Option) *Store {
	s := &Store{
		conversationID: conversationID,
		self:           self,
		policy:         DefaultPolicy(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pending = NewPendingRing(s.policy.PendingLimit)
	return s
}

// AddOptimistic records an outgoing send in the pending ring and inserts its
// placeholder, identified by the temp id until the echo arrives.
func (s *Store) AddOptimistic(tempID, content string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.pending.Add(chat.PendingOutgoing{TempID: tempID, Content: content, CreatedAt: now})
	m := chat.Message{
		ID:             tempID,
		TempID:         tempID,
		ConversationID: s.conversationID,
		Content:        content,
		SenderID:       s.self.ID,
		SenderName:     firstNonEmpty(s.self.Username, s.self.Email),
		CreatedAt:      now,
		Status:         chat.StatusSending,
	}
	s.messages = append(s.messages, entry{Message: m, seen: now})
	return m
}

// MarkFailed flags a placeholder whose frame could not be written and drops
// its pending entry.
func (s *Store) MarkFailed(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Remove(tempID)
	if i := s.indexByKey(tempID); i >= 0 && s.messages[i].IsPlaceholder() {
		s.messages[i].Status = chat.StatusFailed
	}
}

// Upsert merges one normalized inbound message.
func (s *Store) Upsert(in chat.Message) Result {
	s.mu.Lock()
	res := s.upsertLocked(in)
	s.mu.Unlock()

	if s.onPreview != nil && strings.TrimSpace(in.Content) != "" {
		s.onPreview(s.conversationID, in.Content)
	}
	return res
}

// LoadHistory merges a REST snapshot. Entries go through the same matching
// as live frames so history racing the socket never duplicates.
func (s *Store) LoadHistory(msgs []chat.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	appended := 0
	for _, m := range msgs {
		if s.upsertLocked(m).Rule == RuleAppended {
			appended++
		}
	}
	return appended
}

func (s *Store) upsertLocked(in chat.Message) Result {
	if in.ConversationID == "" {
		in.ConversationID = s.conversationID
	}
	at := in.CreatedAt
	if at.IsZero() {
		at = s.now().UTC()
	}

	resolved := s.resolveTempID(in, at)
	idx, rule := s.findSlot(in, resolved, at)

	if idx >= 0 {
		s.messages[idx].Message = merge(s.messages[idx].Message, in, resolved)
		return Result{Rule: rule, ResolvedTempID: resolved, Message: s.messages[idx].Message}
	}

	m := in
	if m.ID == "" {
		m.ID = resolved
	}
	if m.TempID == "" {
		m.TempID = resolved
	}
	m.Status = chat.RicherStatus(m.Status, chat.StatusSent, impliedStatus(m))
	s.messages = append(s.messages, entry{Message: m, seen: s.now().UTC()})
	return Result{Rule: RuleAppended, ResolvedTempID: resolved, Message: m}
}

// resolveTempID implements echo correlation: an echoed temp id confirms its
// pending entry directly, otherwise the closest same-content pending send
// within the echo window is taken when the sender is the local user or
// unattributed.
func (s *Store) resolveTempID(in chat.Message, at time.Time) string {
	if in.TempID != "" {
		s.pending.Remove(in.TempID)
		return in.TempID
	}
	if strings.TrimSpace(in.Content) == "" {
		return ""
	}
	if !in.Unattributed() && !s.self.IsSelf(in) {
		return ""
	}
	p, ok := s.pending.Closest(in.Content, at, s.policy.EchoWindow)
	if !ok {
		return ""
	}
	s.pending.Remove(p.TempID)
	return p.TempID
}

func (s *Store) findSlot(in chat.Message, resolved string, at time.Time) (int, Rule) {
	if in.ID != "" {
		for i := range s.messages {
			if s.messages[i].ID == in.ID {
				return i, RuleID
			}
		}
	}

	if resolved != "" {
		for i := range s.messages {
			if s.messages[i].TempID == resolved || s.messages[i].ID == resolved {
				return i, RuleTempID
			}
		}
	}

	content := strings.TrimSpace(in.Content)
	if content != "" && s.self.IsSelf(in) {
		for i, m := range s.messages {
			if m.IsPlaceholder() && strings.TrimSpace(m.Content) == content && s.policy.withinEcho(m.stamp(), at) {
				return i, RulePlaceholder
			}
		}
	}

	if in.ID == "" && in.TempID == "" {
		for i, m := range s.messages {
			if m.ID == "" && sameSender(m.Message, in) && m.Content == in.Content && s.policy.withinDuplicate(m.stamp(), at) {
				return i, RuleDuplicate
			}
		}
	}
	return -1, RuleAppended
}

// merge folds in into existing. Server fields win over placeholder fields,
// the temp id is kept, status only moves forward and nullable receipt
// timestamps are only filled when unset.
func merge(existing, in chat.Message, resolved string) chat.Message {
	out := existing
	if in.ID != "" {
		out.ID = in.ID
	}
	if out.TempID == "" {
		out.TempID = firstNonEmpty(in.TempID, resolved)
	}
	if in.ConversationID != "" {
		out.ConversationID = in.ConversationID
	}
	if in.Content != "" {
		out.Content = in.Content
	}
	if in.SenderID != "" {
		out.SenderID = in.SenderID
	}
	if in.SenderName != "" {
		out.SenderName = in.SenderName
	}
	if !in.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	if !in.UpdatedAt.IsZero() {
		out.UpdatedAt = in.UpdatedAt
	}
	if out.DeliveredAt == nil && in.DeliveredAt != nil {
		out.DeliveredAt = in.DeliveredAt
	}
	if out.ReadAt == nil && in.ReadAt != nil {
		out.ReadAt = in.ReadAt
	}
	out.Edited = out.Edited || in.Edited
	out.Deleted = out.Deleted || in.Deleted

	// Any server copy confirms the send.
	base := out.Status
	if base == chat.StatusFailed {
		base = ""
	}
	out.Status = chat.RicherStatus(base, in.Status, chat.StatusSent, impliedStatus(out))
	return out
}

// ApplyReceipt mutates an existing message in place. It never creates one
// and never moves status backward.
func (s *Store) ApplyReceipt(r chat.ReceiptUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByKey(r.MessageID)
	if i < 0 {
		return false
	}
	m := &s.messages[i]
	if m.DeliveredAt == nil && r.DeliveredAt != nil {
		m.DeliveredAt = r.DeliveredAt
	}
	if m.ReadAt == nil && r.ReadAt != nil {
		m.ReadAt = r.ReadAt
	}
	m.Status = chat.RicherStatus(m.Status, r.ImpliedStatus())
	return true
}

// MarkRead sets status read and readAt=now on the given messages locally.
// It returns how many messages were found.
func (s *Store) MarkRead(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	n := 0
	for _, id := range ids {
		i := s.indexByKey(id)
		if i < 0 {
			continue
		}
		m := &s.messages[i]
		if m.ReadAt == nil {
			t := now
			m.ReadAt = &t
		}
		m.Status = chat.RicherStatus(m.Status, chat.StatusRead)
		n++
	}
	return n
}

// MarkDeleted applies a soft delete broadcast.
func (s *Store) MarkDeleted(id, content string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByKey(id)
	if i < 0 {
		return false
	}
	m := &s.messages[i]
	m.Deleted = true
	if content != "" {
		m.Content = content
	}
	if !at.IsZero() {
		m.UpdatedAt = at
	}
	return true
}

// Lookup returns the message with the given id or temp id.
func (s *Store) Lookup(id string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByKey(id)
	if i < 0 {
		return chat.Message{}, false
	}
	return s.messages[i].Message, true
}

// Messages returns a copy sorted by CreatedAt ascending. Messages without a
// timestamp sort first; equal timestamps keep insertion order.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	out := make([]chat.Message, len(s.messages))
	for i, e := range s.messages {
		out[i] = e.Message
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b chat.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// PendingLen returns the number of unmatched optimistic sends.
func (s *Store) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Reset clears messages and pending sends.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.pending = NewPendingRing(s.policy.PendingLimit)
}

// ConversationID returns the conversation this store belongs to.
func (s *Store) ConversationID() string {
	return s.conversationID
}

// indexByKey prefers an id match over a temp id match.
func (s *Store) indexByKey(key string) int {
	if key == "" {
		return -1
	}
	for i := range s.messages {
		if s.messages[i].ID == key {
			return i
		}
	}
	for i := range s.messages {
		if s.messages[i].TempID == key {
			return i
		}
	}
	return -1
}

func impliedStatus(m chat.Message) string {
	switch {
	case m.ReadAt != nil:
		return chat.StatusRead
	case m.DeliveredAt != nil:
		return chat.StatusDelivered
	}
	return ""
}

func sameSender(a, b chat.Message) bool {
	if a.SenderID != "" || b.SenderID != "" {
		return a.SenderID == b.SenderID
	}
	return a.SenderName == b.SenderName
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
