package sim

import "sync"

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Now    VTimeInSec
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook. The returned subscription removes the
	// hook again.
	AcceptHook(hook Hook) *Subscription
}

// HookPosBeforeEvent is a hook position that triggers before handling an event
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A Subscription is the registration of one hook on one hookable object.
type Subscription struct {
	once   sync.Once
	owner  *HookableBase
	hookID uint64
}

// Unsubscribe removes the hook. Calling it more than once is safe.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.owner.removeHook(s.hookID)
	})
}

type registeredHook struct {
	id   uint64
	hook Hook
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	lock   sync.RWMutex
	hooks  []registeredHook
	nextID uint64
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hooks = make([]registeredHook, 0)

	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) *Subscription {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.nextID++
	h.hooks = append(h.hooks, registeredHook{id: h.nextID, hook: hook})

	return &Subscription{owner: h, hookID: h.nextID}
}

// NumHooks returns the number of hooks currently registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

func (h *HookableBase) removeHook(id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for i, r := range h.hooks {
		if r.id == id {
			h.hooks = append(h.hooks[:i:i], h.hooks[i+1:]...)
			return
		}
	}
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, r := range hooks {
		r.hook.Func(ctx)
	}
}
