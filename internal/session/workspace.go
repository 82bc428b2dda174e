package session

import (
	"sync"
	"time"

	"github.com/slidewizard/backend/internal/binder"
	"github.com/slidewizard/backend/internal/events"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/slideshow"
	"github.com/slidewizard/backend/internal/wizard"
)

// Generator is the generator service as used by a workspace: batch
// generation plus the session settings endpoint.
type Generator interface {
	wizard.Generator
	settings.SessionSubmitter
}

// CacheProvider hands out the settings cache slot of a browser client.
type CacheProvider interface {
	For(clientID string) (settings.LocalCache, error)
}

// Services are shared by every workspace.
type Services struct {
	Analyzer  wizard.Analyzer
	Generator Generator
	Caches    CacheProvider
	Hub       *events.Hub
	Now       func() time.Time
}

// Workspace is the server-side state of one wizard in one browser tab.
type Workspace struct {
	ID        string
	ClientID  string
	CreatedAt time.Time

	Store      *placeholder.Store
	Binder     *binder.Binder
	Navigator  *slideshow.Navigator
	Settings   *settings.Persistence
	Controller *wizard.Controller

	mu           sync.Mutex
	lastAccessed time.Time
	closeOnce    sync.Once
	unsubscribe  func()
	hub          *events.Hub
}

// Info is the JSON view of a workspace.
type Info struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastAccessed time.Time    `json:"lastAccessed"`
	Wizard       wizard.State `json:"wizard"`
}

func newWorkspace(id, clientID string, svc Services) (*Workspace, error) {
	var cache settings.LocalCache
	if svc.Caches != nil {
		c, err := svc.Caches.For(clientID)
		if err != nil {
			return nil, err
		}
		cache = c
	}

	now := time.Now
	if svc.Now != nil {
		now = svc.Now
	}

	store := placeholder.NewStore()
	var opts []binder.Option
	if svc.Now != nil {
		opts = append(opts, binder.WithClock(svc.Now))
	}
	b := binder.New(store, opts...)
	nav := slideshow.NewNavigator()

	var submitter settings.SessionSubmitter
	if svc.Generator != nil {
		submitter = svc.Generator
	}
	persist := settings.New(cache, submitter)

	var gen wizard.Generator
	if svc.Generator != nil {
		gen = svc.Generator
	}
	ctrl := wizard.New(wizard.Deps{
		Store:     store,
		Binder:    b,
		Navigator: nav,
		Settings:  persist,
		Analyzer:  svc.Analyzer,
		Generator: gen,
	})

	ws := &Workspace{
		ID:           id,
		ClientID:     clientID,
		CreatedAt:    now(),
		Store:        store,
		Binder:       b,
		Navigator:    nav,
		Settings:     persist,
		Controller:   ctrl,
		lastAccessed: now(),
		hub:          svc.Hub,
	}
	if svc.Hub != nil {
		ws.attach(svc.Hub)
	}
	return ws, nil
}

// attach forwards the workspace's change streams to hub.
func (w *Workspace) attach(hub *events.Hub) {
	w.unsubscribe = w.Store.Subscribe(func(c placeholder.Change) {
		hub.Publish(w.ID, events.TypeStoreChange, c)
	})
	w.Binder.OnRender(func(ev binder.SurfaceEvent) {
		if ev.Surface == binder.SurfaceNotice && ev.Notification != nil {
			hub.Publish(w.ID, events.TypeNotification, ev.Notification)
			return
		}
		hub.Publish(w.ID, events.TypeSurfaceRender, ev)
	})
	w.Controller.OnStep(func(st wizard.State) {
		hub.Publish(w.ID, events.TypeWizardStep, st)
	})
	w.Controller.OnNotify(func(n models.Notification) {
		hub.Publish(w.ID, events.TypeNotification, n)
	})
}

// Touch marks the workspace as used now.
func (w *Workspace) Touch(now time.Time) {
	w.mu.Lock()
	w.lastAccessed = now
	w.mu.Unlock()
}

// LastAccessed returns the last time the workspace was used.
func (w *Workspace) LastAccessed() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastAccessed
}

// Info returns a snapshot for the API.
func (w *Workspace) Info() Info {
	return Info{
		ID:           w.ID,
		CreatedAt:    w.CreatedAt,
		LastAccessed: w.LastAccessed(),
		Wizard:       w.Controller.State(),
	}
}

// Close detaches listeners and drops event subscribers.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		w.Binder.Detach()
		w.Controller.Detach()
		if w.unsubscribe != nil {
			w.unsubscribe()
		}
		if w.hub != nil {
			w.hub.CloseSession(w.ID)
		}
	})
}
