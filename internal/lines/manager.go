// Package lines owns the messaging lines: their lifecycle, their inbound
// dispatch loops and the transport used to answer on each of them.
package lines

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// MaxLines is the number of line slots, line001..line030
const MaxLines = 30

const defaultQueueSize = 64

type Status string

const (
	StatusStopped  Status = "STOPPED"
	StatusStarting Status = "STARTING"
	StatusReady    Status = "READY"
	StatusStopping Status = "STOPPING"
	StatusError    Status = "ERROR"
)

var (
	ErrUnknownLine       = errors.New("unknown line")
	ErrLineNotConfigured = errors.New("line has no number configured")
	ErrLineNotActive     = errors.New("line is not active")
	ErrQueueFull         = errors.New("line queue is full")
)

// Handler consumes one inbound event. Calls for the same contact are
// sequential; different contacts on a line may be handled concurrently.
type Handler func(ctx context.Context, ev models.InboundEvent)

// TransportFactory opens the transport for a line number
type TransportFactory func(lineID, number string) (Transport, error)

// LineStatus is the admin view of one slot
type LineStatus struct {
	ID        string     `json:"id"`
	Number    string     `json:"number,omitempty"`
	Status    Status     `json:"status"`
	Queued    int        `json:"queued"`
	Handled   int64      `json:"handled"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type line struct {
	id     string
	number string
	status Status

	transport Transport
	events    chan models.InboundEvent
	cancel    context.CancelFunc
	done      chan struct{}

	handled   int64
	startedAt *time.Time
	lastError string
}

// Manager is the registry of lines. It implements the engine's sender.
type Manager struct {
	mu      sync.RWMutex
	lines   map[string]*line
	handler Handler
	open    TransportFactory
	logger  *zap.Logger

	queueSize int
}

func NewManager(open TransportFactory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		lines:     make(map[string]*line, MaxLines),
		open:      open,
		logger:    logger.With(zap.String("component", "lines")),
		queueSize: defaultQueueSize,
	}
	for _, id := range Slots() {
		m.lines[id] = &line{id: id, status: StatusStopped}
	}
	return m
}

// Slots returns every valid line id in order
func Slots() []string {
	ids := make([]string, MaxLines)
	for i := range ids {
		ids[i] = SlotID(i + 1)
	}
	return ids
}

// SlotID formats slot n (1-based) as a line id
func SlotID(n int) string {
	return fmt.Sprintf("line%03d", n)
}

// SetHandler installs the consumer of inbound events. Call before Start.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Register binds a phone number to a slot
func (m *Manager) Register(id, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, id)
	}
	l.number = number
	return nil
}

// Start opens the line transport and begins dispatching its events
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	l, ok := m.lines[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLine, id)
	}
	if l.number == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLineNotConfigured, id)
	}
	if l.status == StatusReady || l.status == StatusStarting {
		m.mu.Unlock()
		return nil
	}
	l.status = StatusStarting
	l.lastError = ""
	number := l.number
	m.mu.Unlock()

	m.logger.Info("starting line", zap.String("line_id", id))
	transport, err := m.open(id, number)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		l.status = StatusError
		l.lastError = err.Error()
		m.logger.Error("line failed to start", zap.String("line_id", id), zap.Error(err))
		return fmt.Errorf("start %s: %w", id, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	l.transport = transport
	l.events = make(chan models.InboundEvent, m.queueSize)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.startedAt = &now
	l.status = StatusReady

	go m.dispatch(ctx, l, l.events, l.done)

	m.refreshGauge()
	m.logger.Info("line ready", zap.String("line_id", id))
	return nil
}

// Stop ends the dispatch loop once every in-flight handler returns. Queued events are dropped.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	l, ok := m.lines[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLine, id)
	}
	if l.status != StatusReady {
		if l.status == StatusError {
			l.status = StatusStopped
		}
		m.mu.Unlock()
		return nil
	}
	l.status = StatusStopping
	cancel, done := l.cancel, l.done
	dropped := len(l.events)
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	l.status = StatusStopped
	l.transport = nil
	l.events = nil
	l.startedAt = nil
	m.refreshGauge()
	m.mu.Unlock()

	m.logger.Info("line stopped", zap.String("line_id", id), zap.Int("dropped", dropped))
	return nil
}

// Restart stops and starts the line again
func (m *Manager) Restart(id string) error {
	if err := m.Stop(id); err != nil {
		return err
	}
	return m.Start(id)
}

// StartConfigured starts every line with a number. Failures are logged.
func (m *Manager) StartConfigured() int {
	started := 0
	for _, id := range m.Configured() {
		if err := m.Start(id); err == nil {
			started++
		}
	}
	return started
}

// StopAll stops every running line concurrently
func (m *Manager) StopAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, id := range Slots() {
		id := id
		g.Go(func() error { return m.Stop(id) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configured returns the ids that have a number bound
func (m *Manager) Configured() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, l := range m.lines {
		if l.number != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Deliver queues an inbound event on its line
func (m *Manager) Deliver(ev models.InboundEvent) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lines[ev.LineID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, ev.LineID)
	}
	if l.status != StatusReady {
		return fmt.Errorf("%w: %s is %s", ErrLineNotActive, ev.LineID, l.status)
	}
	select {
	case l.events <- ev:
		metrics.MessagesReceivedTotal.WithLabelValues(ev.LineID, ev.Kind).Inc()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, ev.LineID)
	}
}

// Status returns the view of one line
func (m *Manager) Status(id string) (LineStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lines[id]
	if !ok {
		return LineStatus{}, fmt.Errorf("%w: %s", ErrUnknownLine, id)
	}
	return l.view(), nil
}

// Statuses returns every slot in order
func (m *Manager) Statuses() []LineStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LineStatus, 0, len(m.lines))
	for _, id := range Slots() {
		out = append(out, m.lines[id].view())
	}
	return out
}

// SendText implements the engine sender
func (m *Manager) SendText(ctx context.Context, lineID, contactID, text string) error {
	t, err := m.activeTransport(lineID)
	if err != nil {
		return err
	}
	return t.SendText(ctx, contactID, text)
}

// SendImage implements the engine sender
func (m *Manager) SendImage(ctx context.Context, lineID, contactID, path, caption string) error {
	t, err := m.activeTransport(lineID)
	if err != nil {
		return err
	}
	return t.SendImage(ctx, contactID, path, caption)
}

func (m *Manager) activeTransport(lineID string) (Transport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLine, lineID)
	}
	if l.status != StatusReady || l.transport == nil {
		return nil, fmt.Errorf("%w: %s", ErrLineNotActive, lineID)
	}
	return l.transport, nil
}

// dispatch fans events out to one worker per contact. A contact's events are
// handled in arrival order while other contacts proceed concurrently.
func (m *Manager) dispatch(ctx context.Context, l *line, events <-chan models.InboundEvent, done chan<- struct{}) {
	var (
		inflight sync.WaitGroup
		mu       sync.Mutex
		pending  = make(map[models.ContactKey][]models.InboundEvent)
	)
	defer close(done)
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			key := ev.Key()
			mu.Lock()
			if queue, busy := pending[key]; busy {
				pending[key] = append(queue, ev)
				mu.Unlock()
				continue
			}
			pending[key] = nil
			mu.Unlock()

			inflight.Add(1)
			go func(next models.InboundEvent) {
				defer inflight.Done()
				for {
					m.handle(ctx, l, next)

					mu.Lock()
					queue := pending[key]
					if len(queue) == 0 || ctx.Err() != nil {
						delete(pending, key)
						mu.Unlock()
						return
					}
					next, pending[key] = queue[0], queue[1:]
					mu.Unlock()
				}
			}(ev)
		}
	}
}

func (m *Manager) handle(ctx context.Context, l *line, ev models.InboundEvent) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		m.logger.Warn("no handler installed, dropping event", zap.String("line_id", l.id))
		return
	}
	// stopping the line must not abort a creation or send already in flight
	h(context.WithoutCancel(ctx), ev)

	m.mu.Lock()
	l.handled++
	m.mu.Unlock()
}

// refreshGauge must be called with m.mu held
func (m *Manager) refreshGauge() {
	ready := 0
	for _, l := range m.lines {
		if l.status == StatusReady {
			ready++
		}
	}
	metrics.LinesReady.Set(float64(ready))
}

func (l *line) view() LineStatus {
	return LineStatus{
		ID:        l.id,
		Number:    l.number,
		Status:    l.status,
		Queued:    len(l.events),
		Handled:   l.handled,
		StartedAt: l.startedAt,
		LastError: l.lastError,
	}
}
