package widget

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

const (
	tempIDPrefix    = "temp-"
	welcomeIDPrefix = "welcome-"
)

// ErrLogNotEmpty is returned by SeedWelcome once the log has messages.
var ErrLogNotEmpty = errors.New("message log is not empty")

// MessageLog is the locally held list of chat messages. It mixes optimistic
// user entries with server-confirmed assistant replies; every optimistic
// entry is either kept by a confirmation or removed by a rollback.
type MessageLog struct {
	mu       sync.Mutex
	messages []domain.Message
	now      func() time.Time
}

// LogOption configures a MessageLog.
type LogOption func(*MessageLog)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) LogOption {
	return func(l *MessageLog) { l.now = now }
}

// NewMessageLog returns an empty log.
func NewMessageLog(opts ...LogOption) *MessageLog {
	l := &MessageLog{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SeedWelcome inserts the synthetic welcome bubble. Only valid on an empty log.
func (l *MessageLog) SeedWelcome(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) > 0 {
		return ErrLogNotEmpty
	}
	now := l.now()
	l.messages = append(l.messages, domain.Message{
		MessageID: welcomeIDPrefix + strconv.FormatInt(now.UnixMilli(), 10),
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: now,
	})
	return nil
}

// AppendOptimisticUserMessage appends a user message with a temporary ID and
// returns it so the caller can roll it back.
func (l *MessageLog) AppendOptimisticUserMessage(text string) domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	msg := domain.Message{
		MessageID: l.uniqueIDLocked(tempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: now,
	}
	l.messages = append(l.messages, msg)
	return msg
}

func (l *MessageLog) uniqueIDLocked(base string) string {
	id := base
	for n := 1; l.indexLocked(id) >= 0; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func (l *MessageLog) indexLocked(id string) int {
	return slices.IndexFunc(l.messages, func(m domain.Message) bool { return m.MessageID == id })
}

// ConfirmAssistantReply appends a server-returned assistant message. The
// optimistic user message it answers stays as a separate entry.
func (l *MessageLog) ConfirmAssistantReply(msg domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// confirmAfter appends reply as the answer to the user message userID. The
// user message is stamped from the local clock and reply from the server's,
// so when the local clock runs ahead the user message is moved to 1ms
// before the reply to keep the pair in order.
func (l *MessageLog) confirmAfter(userID string, reply domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(userID); i >= 0 && !reply.Timestamp.IsZero() &&
		!reply.Timestamp.After(l.messages[i].Timestamp) {
		l.messages[i].Timestamp = reply.Timestamp.Add(-time.Millisecond)
	}
	l.messages = append(l.messages, reply)
}

// Rollback removes the message with the given ID. Unknown IDs are ignored.
func (l *MessageLog) Rollback(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		l.messages = slices.Delete(l.messages, i, i+1)
	}
}

// Replace swaps the whole log for a fetched history, which may be unsorted.
func (l *MessageLog) Replace(messages []domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = slices.Clone(messages)
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Messages returns a copy in insertion order.
func (l *MessageLog) Messages() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.messages)
}

// Sorted returns a copy ordered for display.
func (l *MessageLog) Sorted() []domain.Message {
	return SortMessages(l.Messages())
}

// SortMessages orders messages by timestamp ascending, breaking ties by
// message ID so the result does not depend on arrival order.
func SortMessages(messages []domain.Message) []domain.Message {
	out := slices.Clone(messages)
	slices.SortFunc(out, func(a, b domain.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.MessageID < b.MessageID:
			return -1
		case a.MessageID > b.MessageID:
			return 1
		}
		return 0
	})
	return out
}

// PendingSend is an optimistic user message waiting for the backend.
type PendingSend struct {
	log     *MessageLog
	message domain.Message
	once    sync.Once
}

// Begin appends an optimistic user message and returns the handle used to
// commit or abort it.
func (l *MessageLog) Begin(text string) *PendingSend {
	return &PendingSend{log: l, message: l.AppendOptimisticUserMessage(text)}
}

// Message returns the optimistic message.
func (p *PendingSend) Message() domain.Message {
	return p.message
}

// Commit keeps the optimistic message and appends the assistant reply,
// re-stamping the optimistic message if it would sort after the reply.
// Only the first Commit or Abort has an effect.
func (p *PendingSend) Commit(reply domain.Message) {
	p.once.Do(func() {
		p.log.confirmAfter(p.message.MessageID, reply)
	})
}

// Abort removes the optimistic message. Only the first Commit or Abort has
// an effect.
func (p *PendingSend) Abort() {
	p.once.Do(func() {
		p.log.Rollback(p.message.MessageID)
	})
}
