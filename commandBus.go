package eventcore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HandlerFunc validates one command kind against current aggregate state and,
// on success, returns the durably appended events.
type HandlerFunc func(ctx context.Context, cmd Command) ([]Event, error)

// CommandHandler is implemented by aggregate handlers; it declares which
// command kinds the handler accepts and the function for each.
type CommandHandler interface {
	SubscribedTo() map[CommandKind]HandlerFunc
}

// CommandBus routes commands to their registered handlers. It is the single
// entry point through which all state changes are requested. The bus performs
// no validation of its own and owns no state beyond the registry; it is safe
// for concurrent dispatch.
type CommandBus interface {
	// Register binds one handler function to a command kind.
	Register(kind CommandKind, handler HandlerFunc) error
	// Subscribe registers every kind each handler declares.
	Subscribe(handlers ...CommandHandler) error
	// Dispatch invokes the handler for the command's kind synchronously and
	// returns whatever events it produced.
	Dispatch(ctx context.Context, cmd Command) ([]Event, error)
}

// BusOption configures a command bus.
type BusOption func(*commandBus)

// WithOverride makes re-registration of a command kind replace the existing
// handler instead of failing. Intended for tests swapping in doubles; leaving
// it off catches accidental double registration at startup.
func WithOverride() BusOption {
	return func(b *commandBus) {
		b.allowOverride = true
	}
}

type commandBus struct {
	mu            sync.RWMutex
	handlers      map[CommandKind]HandlerFunc
	logger        *zap.Logger
	allowOverride bool
}

// NewCommandBus creates a command bus. Construct one per process (or per
// test) and pass it by reference; the registry is expected to be populated at
// startup and read-mostly thereafter.
func NewCommandBus(logger *zap.Logger, opts ...BusOption) CommandBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &commandBus{
		handlers: make(map[CommandKind]HandlerFunc),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

func (b *commandBus) Register(kind CommandKind, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("nil handler for command kind %s", kind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[kind]; exists {
		if !b.allowOverride {
			return fmt.Errorf("handler already registered for command kind %s", kind)
		}
		b.logger.Warn("overriding command handler", zap.String("kind", string(kind)))
	}
	b.handlers[kind] = handler
	return nil
}

func (b *commandBus) Subscribe(handlers ...CommandHandler) error {
	for _, handler := range handlers {
		for kind, fn := range handler.SubscribedTo() {
			if err := b.Register(kind, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *commandBus) Dispatch(ctx context.Context, cmd Command) ([]Event, error) {
	b.mu.RLock()
	handler, exists := b.handlers[cmd.Kind]
	b.mu.RUnlock()

	if !exists {
		return nil, &UnregisteredCommandError{Kind: cmd.Kind}
	}

	b.logger.Debug("dispatching command",
		zap.String("kind", string(cmd.Kind)),
		zap.String("command_id", cmd.CommandID.String()),
		zap.String("correlation_id", cmd.CorrelationID.String()))

	return handler(ctx, cmd)
}
