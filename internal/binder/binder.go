// Package binder models the two surfaces that edit a placeholder slot: the
// side panel card and the modal dialog. Both render from the store and never
// write to each other.
package binder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
)

var (
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrNotConfigurable    = errors.New("title placeholders are not configurable")
	ErrModalClosed        = errors.New("modal is not open")
	ErrUnknownControl     = errors.New("unknown control")
	ErrInvalidReason      = errors.New("invalid close reason")
)

// CloseReason says how the modal was dismissed.
type CloseReason string

const (
	CloseExplicit CloseReason = "close"
	CloseOutside  CloseReason = "outside"
	CloseCancel   CloseReason = "cancel"
	CloseSave     CloseReason = "save"
)

// ParseCloseReason validates a reason sent by the browser. Empty means close.
func ParseCloseReason(s string) (CloseReason, error) {
	switch r := CloseReason(s); r {
	case CloseExplicit, CloseOutside, CloseCancel, CloseSave:
		return r, nil
	case "":
		return CloseExplicit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
	}
}

// Card is one entry of the side panel. Title cards carry no controls.
type Card struct {
	Placeholder models.Placeholder `json:"placeholder"`
	Selected    bool               `json:"selected"`
	Image       *ImageControls     `json:"image,omitempty"`
	Text        *TextControls      `json:"text,omitempty"`
}

// Region is a clickable placeholder area on the slide canvas.
type Region struct {
	ID       int                    `json:"id"`
	Kind     models.PlaceholderKind `json:"kind"`
	Top      float64                `json:"top"`
	Left     float64                `json:"left"`
	Width    float64                `json:"width"`
	Height   float64                `json:"height"`
	Selected bool                   `json:"selected"`
}

// Modal is the dialog state. Controls are nil while closed.
type Modal struct {
	Open          bool                   `json:"open"`
	Target        int                    `json:"target,omitempty"`
	Kind          models.PlaceholderKind `json:"kind,omitempty"`
	Placeholder   *models.Placeholder    `json:"placeholder,omitempty"`
	GeometryKnown bool                   `json:"geometryKnown"`
	Image         *ImageControls         `json:"image,omitempty"`
	Text          *TextControls          `json:"text,omitempty"`
}

// Surface identifies what a SurfaceEvent re-renders.
type Surface string

const (
	SurfacePanel   Surface = "panel"
	SurfaceModal   Surface = "modal"
	SurfaceSummary Surface = "summary"
	SurfaceNotice  Surface = "notification"
)

// SurfaceEvent tells a renderer which part of the page changed.
type SurfaceEvent struct {
	Surface      Surface              `json:"surface"`
	Cards        []Card               `json:"cards,omitempty"`
	Modal        *Modal               `json:"modal,omitempty"`
	Summary      *placeholder.Summary `json:"summary,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Option configures a Binder.
type Option func(*Binder)

// WithClock overrides the time source used for default custom dates.
func WithClock(now func() time.Time) Option {
	return func(b *Binder) { b.now = now }
}

// Binder keeps both surfaces consistent with the store.
//
// The binder never holds its own lock while calling a store method that can
// mutate, because store listeners (including the binder's) run while the
// store is mid-mutation.
type Binder struct {
	store *placeholder.Store
	now   func() time.Time

	mu        sync.Mutex
	order     []int
	cards     map[int]*Card
	modal     Modal
	selected  int
	hasActive bool
	renderers []func(SurfaceEvent)

	unsubscribe func()
}

// New creates a binder over store and subscribes to its changes.
func New(store *placeholder.Store, opts ...Option) *Binder {
	b := &Binder{
		store: store,
		now:   time.Now,
		cards: make(map[int]*Card),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.unsubscribe = store.Subscribe(b.onChange)
	return b
}

// Detach unsubscribes the binder from the store.
func (b *Binder) Detach() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// OnRender registers a renderer. Renderers run synchronously and must not
// edit through the binder.
func (b *Binder) OnRender(fn func(SurfaceEvent)) {
	b.mu.Lock()
	b.renderers = append(b.renderers, fn)
	b.mu.Unlock()
}

func (b *Binder) dispatch(events []SurfaceEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	fns := append([]func(SurfaceEvent){}, b.renderers...)
	b.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Mount rebuilds the panel for a freshly analyzed template: one card per
// placeholder in detection order, nothing selected, modal closed.
func (b *Binder) Mount(analysis *models.Analysis) {
	var all []models.Placeholder
	if analysis != nil {
		all = analysis.All()
	}

	b.mu.Lock()
	b.order = b.order[:0]
	b.cards = make(map[int]*Card, len(all))
	for _, p := range all {
		card := &Card{Placeholder: p}
		b.fillCardLocked(card)
		b.cards[p.ID] = card
		b.order = append(b.order, p.ID)
	}
	b.modal = Modal{}
	b.hasActive = false
	events := []SurfaceEvent{
		{Surface: SurfacePanel, Cards: b.cardsLocked()},
		{Surface: SurfaceModal, Modal: b.modalLocked()},
	}
	b.mu.Unlock()

	b.dispatch(events)
}

// Select makes id the single active placeholder and opens the modal on it.
// Reading the slot creates its default if none exists yet.
func (b *Binder) Select(id int) (Modal, error) {
	b.mu.Lock()
	card, ok := b.cards[id]
	var p models.Placeholder
	if ok {
		p = card.Placeholder
	}
	b.mu.Unlock()

	if !ok {
		return Modal{}, fmt.Errorf("%w: %d", ErrUnknownPlaceholder, id)
	}

	modal := Modal{
		Open:   true,
		Target: id,
		Kind:   p.Kind,
	}
	switch p.Kind {
	case models.KindImage:
		modal.Image = imageControls(b.store.ImageSlot(id))
	case models.KindText:
		modal.Text = textControls(b.store.TextSlot(id))
	default:
		return Modal{}, fmt.Errorf("%w: %d", ErrNotConfigurable, id)
	}
	if meta, ok := b.store.Placeholder(id); ok {
		modal.Placeholder = &meta
		modal.GeometryKnown = true
	} else {
		modal.Placeholder = &p
	}

	b.mu.Lock()
	var changed []Card
	if b.hasActive && b.selected != id {
		if prev, ok := b.cards[b.selected]; ok {
			prev.Selected = false
			changed = append(changed, *prev)
		}
	}
	if c, ok := b.cards[id]; ok {
		c.Selected = true
		changed = append(changed, *c)
	}
	b.selected = id
	b.hasActive = true
	b.modal = modal
	events := []SurfaceEvent{
		{Surface: SurfacePanel, Cards: changed},
		{Surface: SurfaceModal, Modal: b.modalLocked()},
	}
	out := *b.modalLocked()
	b.mu.Unlock()

	b.dispatch(events)
	return out, nil
}

// EditModal applies a control change made inside the open modal.
func (b *Binder) EditModal(control Control, value any) error {
	b.mu.Lock()
	if !b.modal.Open {
		b.mu.Unlock()
		return ErrModalClosed
	}
	id, kind := b.modal.Target, b.modal.Kind
	b.mu.Unlock()

	return b.apply(id, kind, control, value)
}

// EditPanel applies a control change made on the panel card of id. The modal
// follows only while it targets the same placeholder.
func (b *Binder) EditPanel(id int, control Control, value any) error {
	b.mu.Lock()
	card, ok := b.cards[id]
	var kind models.PlaceholderKind
	if ok {
		kind = card.Placeholder.Kind
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlaceholder, id)
	}
	return b.apply(id, kind, control, value)
}

func (b *Binder) apply(id int, kind models.PlaceholderKind, control Control, value any) error {
	switch kind {
	case models.KindImage:
		switch control {
		case ControlUse:
			return b.store.SetImageProperty(id, placeholder.ImageUse, value)
		case ControlOrder:
			n, err := placeholder.ToInt(value)
			if err != nil {
				return err
			}
			return b.store.SetImageProperty(id, placeholder.ImageOrder, clampOrder(n))
		}
	case models.KindText:
		switch control {
		case ControlFillMode:
			return b.store.SetTextProperty(id, placeholder.TextFillMode, value)
		case ControlLiteral, ControlDateValue:
			return b.store.SetTextProperty(id, placeholder.TextValue, value)
		case ControlKeepOriginal:
			return b.store.SetTextProperty(id, placeholder.TextKeepOriginal, value)
		case ControlDateType:
			return b.applyDateType(id, value)
		}
	default:
		return fmt.Errorf("%w: %d", ErrNotConfigurable, id)
	}
	return fmt.Errorf("%w: %q for %s placeholder", ErrUnknownControl, control, kind)
}

// applyDateType writes the sentinel for "today". Switching to "custom" with no
// date chosen yet writes today's date so the picker starts somewhere.
func (b *Binder) applyDateType(id int, value any) error {
	s, _ := value.(string)
	switch DateType(s) {
	case DateTypeToday:
		return b.store.SetTextProperty(id, placeholder.TextValue, models.DateToday)
	case DateTypeCustom:
		slot := b.store.TextSlot(id)
		if slot.Value != nil && *slot.Value != models.DateToday && placeholder.ValidateDate(*slot.Value) == nil {
			return nil
		}
		return b.store.SetTextProperty(id, placeholder.TextValue, placeholder.FormatDate(b.now()))
	default:
		return fmt.Errorf("%w: date type %v", placeholder.ErrInvalidValue, value)
	}
}

// CloseModal dismisses the modal. Edits already made stay in the store; only
// a save produces a notification and a summary refresh.
func (b *Binder) CloseModal(reason CloseReason) error {
	if _, err := ParseCloseReason(string(reason)); err != nil {
		return err
	}

	b.mu.Lock()
	var events []SurfaceEvent
	if b.hasActive {
		if c, ok := b.cards[b.selected]; ok {
			c.Selected = false
			events = append(events, SurfaceEvent{Surface: SurfacePanel, Cards: []Card{*c}})
		}
	}
	b.hasActive = false
	b.modal = Modal{}
	events = append(events, SurfaceEvent{Surface: SurfaceModal, Modal: b.modalLocked()})
	b.mu.Unlock()

	if reason == CloseSave {
		sum := b.store.Summarize()
		events = append(events,
			SurfaceEvent{Surface: SurfaceNotice, Notification: &models.Notification{
				Level:   models.NotifySuccess,
				Message: "Settings saved",
			}},
			SurfaceEvent{Surface: SurfaceSummary, Summary: &sum},
		)
	}

	b.dispatch(events)
	return nil
}

// Panel returns the current cards in detection order.
func (b *Binder) Panel() []Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cardsLocked()
}

// Canvas returns the clickable regions in detection order.
func (b *Binder) Canvas() []Region {
	b.mu.Lock()
	defer b.mu.Unlock()

	regions := make([]Region, 0, len(b.order))
	for _, id := range b.order {
		c := b.cards[id]
		p := c.Placeholder
		regions = append(regions, Region{
			ID:       p.ID,
			Kind:     p.Kind,
			Top:      p.Top,
			Left:     p.Left,
			Width:    p.Width,
			Height:   p.Height,
			Selected: c.Selected,
		})
	}
	return regions
}

// Modal returns the dialog state.
func (b *Binder) Modal() Modal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.modalLocked()
}

// Selected returns the active placeholder id, if any.
func (b *Binder) Selected() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected, b.hasActive
}

// onChange is the store listener. It only reads from the store.
func (b *Binder) onChange(c placeholder.Change) {
	var events []SurfaceEvent

	b.mu.Lock()
	switch c.Kind {
	case placeholder.ChangeCreated, placeholder.ChangeUpdated:
		var image *ImageControls
		var text *TextControls
		if c.Image != nil {
			image = imageControls(*c.Image)
		}
		if c.Text != nil {
			text = textControls(*c.Text)
		}

		if b.modal.Open && b.modal.Target == c.ID && b.modal.Kind == c.SlotKind {
			b.modal.Image, b.modal.Text = image, text
			events = append(events, SurfaceEvent{Surface: SurfaceModal, Modal: b.modalLocked()})
		}
		if card, ok := b.cards[c.ID]; ok && card.Placeholder.Kind == c.SlotKind {
			card.Image, card.Text = image, text
			events = append(events, SurfaceEvent{Surface: SurfacePanel, Cards: []Card{*card}})
		}
	case placeholder.ChangeReplaced, placeholder.ChangeReset:
		for _, id := range b.order {
			b.fillCardLocked(b.cards[id])
		}
		if b.modal.Open {
			if card, ok := b.cards[b.modal.Target]; ok {
				b.modal.Image, b.modal.Text = card.Image, card.Text
			}
		}
		events = append(events,
			SurfaceEvent{Surface: SurfaceModal, Modal: b.modalLocked()},
			SurfaceEvent{Surface: SurfacePanel, Cards: b.cardsLocked()},
		)
	}
	b.mu.Unlock()

	sum := b.store.Summarize()
	events = append(events, SurfaceEvent{Surface: SurfaceSummary, Summary: &sum})
	b.dispatch(events)
}

// fillCardLocked derives card controls from the stored slot, or from the
// slot's defaults when nothing is stored yet. It never creates slots.
func (b *Binder) fillCardLocked(card *Card) {
	id := card.Placeholder.ID
	card.Image, card.Text = nil, nil
	switch card.Placeholder.Kind {
	case models.KindImage:
		slot, ok := b.store.LookupImageSlot(id)
		if !ok {
			slot = b.store.DefaultImageSlot(id)
		}
		card.Image = imageControls(slot)
	case models.KindText:
		slot, ok := b.store.LookupTextSlot(id)
		if !ok {
			slot = models.TextSlot{FillMode: models.FillEmpty}
		}
		card.Text = textControls(slot)
	}
}

func (b *Binder) cardsLocked() []Card {
	out := make([]Card, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.cards[id])
	}
	return out
}

func (b *Binder) modalLocked() *Modal {
	m := b.modal
	return &m
}
