// Package slideshow browses the preview slides of a generation run.
package slideshow

import (
	"fmt"
	"sync"

	"github.com/slidewizard/backend/internal/models"
)

// View is one rendering of the navigator.
type View string

const (
	ViewInline     View = "inline"
	ViewFullscreen View = "fullscreen"
)

// State is what a view renders.
type State struct {
	View       View                 `json:"view"`
	Index      int                  `json:"index"`
	Count      int                  `json:"count"`
	Counter    string               `json:"counter"`
	Fullscreen bool                 `json:"fullscreen"`
	HasPrev    bool                 `json:"hasPrevious"`
	HasNext    bool                 `json:"hasNext"`
	Slide      *models.SlidePreview `json:"slide,omitempty"`
}

// Navigator is a bounded index over slides. The inline and fullscreen views
// render the same index.
type Navigator struct {
	mu         sync.RWMutex
	slides     []models.SlidePreview
	index      int
	fullscreen bool
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

// Load replaces the slides and rewinds to the first one.
func (n *Navigator) Load(slides []models.SlidePreview) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slides = append([]models.SlidePreview(nil), slides...)
	n.index = 0
	n.fullscreen = false
}

// Next advances one slide. No-op on the last slide.
func (n *Navigator) Next() State {
	n.mu.Lock()
	if n.index < len(n.slides)-1 {
		n.index++
	}
	n.mu.Unlock()
	return n.currentView()
}

// Previous goes back one slide. No-op on the first slide.
func (n *Navigator) Previous() State {
	n.mu.Lock()
	if n.index > 0 {
		n.index--
	}
	n.mu.Unlock()
	return n.currentView()
}

func (n *Navigator) OpenFullscreen() State {
	n.mu.Lock()
	n.fullscreen = len(n.slides) > 0
	n.mu.Unlock()
	return n.View(ViewFullscreen)
}

func (n *Navigator) CloseFullscreen() State {
	n.mu.Lock()
	n.fullscreen = false
	n.mu.Unlock()
	return n.View(ViewInline)
}

// Index returns the current position, 0 when empty.
func (n *Navigator) Index() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.index
}

// Counter renders "{index+1} / {count}".
func (n *Navigator) Counter() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.counterLocked()
}

// View renders the navigator for v.
func (n *Navigator) View(v View) State {
	n.mu.RLock()
	defer n.mu.RUnlock()

	st := State{
		View:       v,
		Index:      n.index,
		Count:      len(n.slides),
		Counter:    n.counterLocked(),
		Fullscreen: n.fullscreen,
		HasPrev:    n.index > 0,
		HasNext:    n.index < len(n.slides)-1,
	}
	if len(n.slides) > 0 {
		slide := n.slides[n.index]
		st.Slide = &slide
	}
	return st
}

func (n *Navigator) currentView() State {
	n.mu.RLock()
	v := ViewInline
	if n.fullscreen {
		v = ViewFullscreen
	}
	n.mu.RUnlock()
	return n.View(v)
}

func (n *Navigator) counterLocked() string {
	if len(n.slides) == 0 {
		return "0 / 0"
	}
	return fmt.Sprintf("%d / %d", n.index+1, len(n.slides))
}
