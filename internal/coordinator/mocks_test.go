package coordinator

import (
	"context"
	"sync"

	"github.com/benvon/capture/internal/auth"
	"github.com/benvon/capture/internal/gateway"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/pending"
	"github.com/benvon/capture/internal/queue"
)

// mockRemote records calls; unset funcs succeed.
type mockRemote struct {
	FetchAllFunc           func(ctx context.Context, userID string) (gateway.State, error)
	ReplayPendingFunc      func(ctx context.Context, userID string, src gateway.PendingSource, known []models.Project) error
	InsertProjectFunc      func(ctx context.Context, userID string, p models.Project) error
	RenameProjectFunc      func(ctx context.Context, userID, id, name string) error
	DeleteProjectFunc      func(ctx context.Context, userID, id string) error
	InsertTaskFunc         func(ctx context.Context, userID string, t models.Task) error
	UpdateTaskTextFunc     func(ctx context.Context, userID, id, text string) error
	UpdateTaskPriorityFunc func(ctx context.Context, userID, id string, p models.Priority) error
	DeleteTaskFunc         func(ctx context.Context, userID, id string) error
	InsertHistoryFunc      func(ctx context.Context, userID string, h models.HistoryItem) error
	DeleteHistoryFunc      func(ctx context.Context, userID, id string) error

	mu    sync.Mutex
	calls []string
}

func (m *mockRemote) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockRemote) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockRemote) FetchAll(ctx context.Context, userID string) (gateway.State, error) {
	m.record("FetchAll")
	if m.FetchAllFunc != nil {
		return m.FetchAllFunc(ctx, userID)
	}
	return gateway.State{}, nil
}

func (m *mockRemote) ReplayPending(ctx context.Context, userID string, src gateway.PendingSource, known []models.Project) error {
	m.record("ReplayPending")
	if m.ReplayPendingFunc != nil {
		return m.ReplayPendingFunc(ctx, userID, src, known)
	}
	return nil
}

func (m *mockRemote) InsertProject(ctx context.Context, userID string, p models.Project) error {
	m.record("InsertProject")
	if m.InsertProjectFunc != nil {
		return m.InsertProjectFunc(ctx, userID, p)
	}
	return nil
}

func (m *mockRemote) RenameProject(ctx context.Context, userID, id, name string) error {
	m.record("RenameProject")
	if m.RenameProjectFunc != nil {
		return m.RenameProjectFunc(ctx, userID, id, name)
	}
	return nil
}

func (m *mockRemote) DeleteProject(ctx context.Context, userID, id string) error {
	m.record("DeleteProject")
	if m.DeleteProjectFunc != nil {
		return m.DeleteProjectFunc(ctx, userID, id)
	}
	return nil
}

func (m *mockRemote) InsertTask(ctx context.Context, userID string, t models.Task) error {
	m.record("InsertTask")
	if m.InsertTaskFunc != nil {
		return m.InsertTaskFunc(ctx, userID, t)
	}
	return nil
}

func (m *mockRemote) UpdateTaskText(ctx context.Context, userID, id, text string) error {
	m.record("UpdateTaskText")
	if m.UpdateTaskTextFunc != nil {
		return m.UpdateTaskTextFunc(ctx, userID, id, text)
	}
	return nil
}

func (m *mockRemote) UpdateTaskPriority(ctx context.Context, userID, id string, p models.Priority) error {
	m.record("UpdateTaskPriority")
	if m.UpdateTaskPriorityFunc != nil {
		return m.UpdateTaskPriorityFunc(ctx, userID, id, p)
	}
	return nil
}

func (m *mockRemote) DeleteTask(ctx context.Context, userID, id string) error {
	m.record("DeleteTask")
	if m.DeleteTaskFunc != nil {
		return m.DeleteTaskFunc(ctx, userID, id)
	}
	return nil
}

func (m *mockRemote) InsertHistory(ctx context.Context, userID string, h models.HistoryItem) error {
	m.record("InsertHistory")
	if m.InsertHistoryFunc != nil {
		return m.InsertHistoryFunc(ctx, userID, h)
	}
	return nil
}

func (m *mockRemote) DeleteHistory(ctx context.Context, userID, id string) error {
	m.record("DeleteHistory")
	if m.DeleteHistoryFunc != nil {
		return m.DeleteHistoryFunc(ctx, userID, id)
	}
	return nil
}

type mockPublisher struct {
	mu      sync.Mutex
	notices []queue.ChangeNotice
}

func (m *mockPublisher) Publish(ctx context.Context, n queue.ChangeNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, n)
	return nil
}

// replayInto is a ReplayPending that behaves like the gateway: upsert then clear.
func replayInto(upserted *[]string) func(ctx context.Context, userID string, src gateway.PendingSource, known []models.Project) error {
	return func(ctx context.Context, userID string, src gateway.PendingSource, known []models.Project) error {
		for _, p := range src.DrainProjects() {
			*upserted = append(*upserted, p.ID)
		}
		for _, t := range src.DrainTasks() {
			*upserted = append(*upserted, t.ID)
		}
		if err := src.Clear(pending.KindProject); err != nil {
			return err
		}
		return src.Clear(pending.KindTask)
	}
}

var (
	_ Remote          = (*mockRemote)(nil)
	_ queue.Publisher = (*mockPublisher)(nil)
)

type mockMessage struct {
	notice *queue.ChangeNotice
	acked  bool
	nacked bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	return nil
}

func (m *mockMessage) GetNotice() *queue.ChangeNotice {
	return m.notice
}

// mockFeed delivers a fixed set of messages and then ends the subscription.
type mockFeed struct {
	queue.NopFeed
	messages     []*mockMessage
	SubscribeErr error
	subscribedAs string
}

func (m *mockFeed) Subscribe(ctx context.Context, userID string) (<-chan queue.MessageInterface, <-chan error, error) {
	if m.SubscribeErr != nil {
		return nil, nil, m.SubscribeErr
	}
	m.subscribedAs = userID
	msgs := make(chan queue.MessageInterface, len(m.messages))
	for _, msg := range m.messages {
		msgs <- msg
	}
	close(msgs)
	return msgs, make(chan error), nil
}

var (
	_ queue.MessageInterface = (*mockMessage)(nil)
	_ queue.Feed             = (*mockFeed)(nil)
)

// mockProvider emits the given events once subscribed.
type mockProvider struct {
	events []auth.Event
}

func (m *mockProvider) Subscribe() (<-chan auth.Event, func()) {
	ch := make(chan auth.Event, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	return ch, func() {}
}

func (m *mockProvider) Session(context.Context) (*auth.Session, error) {
	return nil, nil
}

func (m *mockProvider) SignIn(context.Context, string, string) (*auth.Session, error) {
	return nil, auth.ErrNotConfigured
}

func (m *mockProvider) SignUp(context.Context, string, string) (*auth.Session, error) {
	return nil, auth.ErrNotConfigured
}

func (m *mockProvider) SignOut(context.Context) error {
	return nil
}

var _ auth.Provider = (*mockProvider)(nil)
