package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mapnav/navclient/internal/core/domain"
)

// OpKind names a surface operation streamed to renderers.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpRemove OpKind = "remove"
	OpMove   OpKind = "move"
	OpFit    OpKind = "fit"
	OpStyle  OpKind = "style"
	OpNotice OpKind = "notice"
	OpEvent  OpKind = "event"
)

// Op is one change to the rendered map, in the order it was applied.
type Op struct {
	Seq      uint64             `json:"seq"`
	Kind     OpKind             `json:"op"`
	Handle   domain.ShapeHandle `json:"handle,omitempty"`
	Shape    *domain.Shape      `json:"shape,omitempty"`
	Position *domain.Coordinate `json:"position,omitempty"`
	Viewport *domain.Viewport   `json:"viewport,omitempty"`
	Style    domain.MapStyle    `json:"style,omitempty"`
	Notice   *domain.Notice     `json:"notice,omitempty"`
	Event    *domain.Event      `json:"event,omitempty"`
}

// State is a full picture of the surface, sent to renderers on connect.
type State struct {
	Seq      uint64           `json:"seq"`
	Style    domain.MapStyle  `json:"style"`
	Viewport *domain.Viewport `json:"viewport,omitempty"`
	Shapes   []domain.Shape   `json:"shapes"`
	Notices  []domain.Notice  `json:"notices,omitempty"`
}

const maxNotices = 20

// Surface is an in-memory map surface. It keeps the authoritative picture
// and fans every change out to subscribed renderers. It implements
// ports.MapSurface and ports.Notifier.
type Surface struct {
	mu       sync.Mutex
	shapes   map[domain.ShapeHandle]domain.Shape
	order    []domain.ShapeHandle
	viewport *domain.Viewport
	style    domain.MapStyle
	notices  []domain.Notice
	seq      uint64

	subs   map[int]chan Op
	nextID int
}

// New creates an empty surface with the standard base style.
func New() *Surface {
	return &Surface{
		shapes: make(map[domain.ShapeHandle]domain.Shape),
		style:  domain.StyleStandard,
		subs:   make(map[int]chan Op),
	}
}

func (s *Surface) AddShape(shape domain.Shape) error {
	if shape.Handle == "" {
		return fmt.Errorf("add shape: empty handle")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shapes[shape.Handle]; ok {
		return fmt.Errorf("add shape: duplicate handle %s", shape.Handle)
	}
	s.shapes[shape.Handle] = shape
	s.order = append(s.order, shape.Handle)
	s.emitLocked(Op{Kind: OpAdd, Handle: shape.Handle, Shape: &shape})
	return nil
}

func (s *Surface) RemoveShape(h domain.ShapeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shapes[h]; !ok {
		return fmt.Errorf("remove shape: unknown handle %s", h)
	}
	delete(s.shapes, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.emitLocked(Op{Kind: OpRemove, Handle: h})
	return nil
}

func (s *Surface) MoveShape(h domain.ShapeHandle, to domain.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shape, ok := s.shapes[h]
	if !ok {
		return fmt.Errorf("move shape: unknown handle %s", h)
	}
	shape.Position = to
	s.shapes[h] = shape
	s.emitLocked(Op{Kind: OpMove, Handle: h, Position: &to})
	return nil
}

func (s *Surface) FitBounds(v domain.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = &v
	s.emitLocked(Op{Kind: OpFit, Viewport: &v})
	return nil
}

func (s *Surface) SetBaseStyle(style domain.MapStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
	s.emitLocked(Op{Kind: OpStyle, Style: style})
	return nil
}

// Notify records a user notice and pushes it to renderers.
func (s *Surface) Notify(ctx context.Context, n domain.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.emitLocked(Op{Kind: OpNotice, Notice: &n})
}

// Relay forwards a domain event from another process to renderers.
func (s *Surface) Relay(ctx context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(Op{Kind: OpEvent, Event: &e})
	return nil
}

// Snapshot returns the current picture in drawing order.
func (s *Surface) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Surface) snapshotLocked() State {
	st := State{
		Seq:     s.seq,
		Style:   s.style,
		Shapes:  make([]domain.Shape, 0, len(s.order)),
		Notices: append([]domain.Notice(nil), s.notices...),
	}
	if s.viewport != nil {
		v := *s.viewport
		st.Viewport = &v
	}
	for _, h := range s.order {
		st.Shapes = append(st.Shapes, s.shapes[h])
	}
	return st
}

// Subscribe returns the current state and a channel of every later op.
// A subscriber that falls more than buffer ops behind is dropped and its
// channel closed; it should reconnect and take a fresh snapshot.
func (s *Surface) Subscribe(buffer int) (State, <-chan Op, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Op, buffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	st := s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return st, ch, cancel
}

func (s *Surface) emitLocked(op Op) {
	s.seq++
	op.Seq = s.seq
	for id, ch := range s.subs {
		select {
		case ch <- op:
		default:
			slog.Warn("dropping slow surface subscriber", "subscriber", id)
			delete(s.subs, id)
			close(ch)
		}
	}
}
