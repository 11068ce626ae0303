// Package nav holds the typed routes between screens and the stack that
// tracks them.
package nav

import (
	"strings"
	"sync"

	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/selection"
)

// Route is one of ListRoute, CameraRoute or SelectionRoute.
type Route interface {
	Name() string
	route()
}

// ListRoute is the registry management screen.
type ListRoute struct{}

// CameraRoute shows one camera.
type CameraRoute struct {
	Camera camera.Record
}

// SelectionRoute shows every camera of a session.
type SelectionRoute struct {
	Session selection.Session
}

func (ListRoute) Name() string      { return "list" }
func (CameraRoute) Name() string    { return "camera" }
func (SelectionRoute) Name() string { return "selection" }

func (ListRoute) route()      {}
func (CameraRoute) route()    {}
func (SelectionRoute) route() {}

// ChangeFunc is called after the current route changed. from is nil for the
// initial route.
type ChangeFunc func(from, to Route)

// Router is a navigation stack. ChangeFuncs run outside the router lock, in
// the goroutine that navigated.
type Router struct {
	mu        sync.Mutex
	stack     []Route
	listeners []ChangeFunc
}

// NewRouter starts a stack at root.
func NewRouter(root Route) *Router {
	return &Router{stack: []Route{root}}
}

// OnChange registers fn for every future navigation.
func (r *Router) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Current returns the top of the stack.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stack[len(r.stack)-1]
}

// Depth returns the stack size.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Push navigates forward to to.
func (r *Router) Push(to Route) {
	r.mu.Lock()
	from := r.stack[len(r.stack)-1]
	r.stack = append(r.stack, to)
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, from, to)
}

// Replace swaps the top of the stack for to.
func (r *Router) Replace(to Route) {
	r.mu.Lock()
	from := r.stack[len(r.stack)-1]
	r.stack[len(r.stack)-1] = to
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, from, to)
}

// Back pops the top route. The root is never popped; Back reports whether
// anything changed.
func (r *Router) Back() bool {
	r.mu.Lock()
	if len(r.stack) == 1 {
		r.mu.Unlock()
		return false
	}
	from := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	to := r.stack[len(r.stack)-1]
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, from, to)
	return true
}

// Home pops everything above the root.
func (r *Router) Home() {
	r.mu.Lock()
	if len(r.stack) == 1 {
		r.mu.Unlock()
		return
	}
	from := r.stack[len(r.stack)-1]
	r.stack = r.stack[:1]
	to := r.stack[0]
	listeners := r.listeners
	r.mu.Unlock()
	notify(listeners, from, to)
}

func notify(listeners []ChangeFunc, from, to Route) {
	for _, fn := range listeners {
		fn(from, to)
	}
}

// EmptySelectionPolicy decides what the multi view shows for an empty selection.
type EmptySelectionPolicy string

const (
	// ShowAll falls back to every registered camera.
	ShowAll EmptySelectionPolicy = "all"
	// ShowPlaceholder renders a message instead of any player.
	ShowPlaceholder EmptySelectionPolicy = "placeholder"
)

// ParseEmptySelectionPolicy accepts "all" or "placeholder"; empty means ShowAll.
func ParseEmptySelectionPolicy(s string) (EmptySelectionPolicy, error) {
	switch EmptySelectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShowAll:
		return ShowAll, nil
	case ShowPlaceholder:
		return ShowPlaceholder, nil
	}
	return ShowAll, errors.NotValidf("empty selection policy %q", s)
}

// MultiView is what the multi-camera screen should render.
type MultiView struct {
	Session     selection.Session
	Placeholder bool
	// FellBack is set when the registry replaced an empty selection.
	FellBack bool
}

// ResolveMultiView applies policy to session. registry is only consulted
// when the session is empty and the policy is ShowAll.
func ResolveMultiView(session selection.Session, registry []camera.Record, policy EmptySelectionPolicy) MultiView {
	if !session.Empty() {
		return MultiView{Session: session}
	}
	if policy == ShowAll && len(registry) > 0 {
		return MultiView{Session: selection.NewSession(registry), FellBack: true}
	}
	return MultiView{Session: session, Placeholder: true}
}
