package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentworld/core"
)

// CallbackType represents the different hook points of a turn.
type CallbackType string

const (
	// CallbackBeforeModel runs before an agent's model call. An error aborts
	// the turn and propagates to the caller.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after a successful model call has been charged.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackOnDispatch runs after a message has been recorded and replicated.
	CallbackOnDispatch CallbackType = "on_dispatch"

	// CallbackOnTurnLimit runs when an agent emits a turn-limit redirect.
	CallbackOnTurnLimit CallbackType = "on_turn_limit"

	// CallbackOnError runs when a model call fails or times out.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext provides the data available to a callback.
type CallbackContext struct {
	WorldID      string
	ChatID       string
	AgentID      string
	CallbackType CallbackType

	// Message is the message being dispatched, or the trigger of a turn.
	Message *core.Message

	// Err is set for CallbackOnError.
	Err error

	Metadata map[string]any
}

// Callback defines the interface for turn hooks.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute runs the callback function.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager manages and executes callbacks. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback registers a callback for its declared type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks of a specific type in registration
// order, stopping at the first error. A nil manager executes nothing.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback logs callback executions.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type returns the callback type.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the callback execution.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	content := ""
	if callbackCtx.Message != nil {
		content = callbackCtx.Message.Content
	}

	c.logger(fmt.Sprintf("[%s] world=%s agent=%s message=%q", c.callbackType, callbackCtx.WorldID, callbackCtx.AgentID, content))

	return nil
}
