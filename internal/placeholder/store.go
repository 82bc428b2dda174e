// Package placeholder owns the per-template configuration model: one slot per
// detected placeholder, mutated only through Store setters.
package placeholder

import (
	"errors"
	"sync"

	"github.com/slidewizard/backend/internal/models"
)

var (
	ErrInvalidOrder    = errors.New("image order must be a positive integer")
	ErrInvalidFillMode = errors.New("invalid fill mode")
	ErrInvalidDate     = errors.New(`date must be "today" or YYYY-MM-DD`)
	ErrInvalidValue    = errors.New("invalid property value")
	ErrUnknownProperty = errors.New("unknown property")
)

// ChangeKind describes what happened to the configuration.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeReplaced ChangeKind = "replaced"
	ChangeReset    ChangeKind = "reset"
)

// Change is emitted after every mutation. Slot changes carry a copy of the new value.
type Change struct {
	Kind     ChangeKind             `json:"kind"`
	Key      string                 `json:"key,omitempty"`
	ID       int                    `json:"id"`
	SlotKind models.PlaceholderKind `json:"slotKind,omitempty"`
	Property string                 `json:"property,omitempty"`
	Image    *models.ImageSlot      `json:"image,omitempty"`
	Text     *models.TextSlot       `json:"text,omitempty"`
}

// Store holds the configuration of the current template.
//
// Mutations and the notifications they trigger run one at a time through
// queue, so listeners observe changes in the order they were applied.
// Listeners run synchronously and must not write to the store.
type Store struct {
	queue sync.Mutex
	mu    sync.RWMutex

	config    *models.Configuration
	meta      map[int]models.Placeholder
	imageRank map[int]int
	titles    int

	listeners    map[int]func(Change)
	nextListener int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		config:    models.NewConfiguration(),
		meta:      make(map[int]models.Placeholder),
		imageRank: make(map[int]int),
		listeners: make(map[int]func(Change)),
	}
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) emit(changes ...Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Reset drops the configuration and the placeholder metadata.
// Used when a new template is analyzed.
func (s *Store) Reset() {
	s.queue.Lock()
	defer s.queue.Unlock()

	s.mu.Lock()
	s.config = models.NewConfiguration()
	s.meta = make(map[int]models.Placeholder)
	s.imageRank = make(map[int]int)
	s.titles = 0
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeReset})
}

// Seed records placeholder metadata and creates a default slot for every
// image and text placeholder that has none yet. Existing slots are kept, so
// seeding twice is a no-op for the configuration.
func (s *Store) Seed(analysis *models.Analysis) {
	if analysis == nil {
		return
	}

	s.queue.Lock()
	defer s.queue.Unlock()

	var created []Change

	s.mu.Lock()
	for i, p := range analysis.ImagePlaceholders {
		p.Kind = models.KindImage
		s.meta[p.ID] = p
		s.imageRank[p.ID] = i + 1
	}
	for _, p := range analysis.TextPlaceholders {
		p.Kind = models.KindText
		s.meta[p.ID] = p
	}
	for _, p := range analysis.TitlePlaceholders {
		p.Kind = models.KindTitle
		s.meta[p.ID] = p
	}
	s.titles = len(analysis.TitlePlaceholders)

	for _, p := range analysis.ImagePlaceholders {
		key := models.ImageKey(p.ID)
		if _, ok := s.config.Images[key]; ok {
			continue
		}
		slot := s.defaultImageSlotLocked(p.ID)
		s.config.Images[key] = slot
		created = append(created, imageChange(ChangeCreated, p.ID, "", slot))
	}
	for _, p := range analysis.TextPlaceholders {
		key := models.TextKey(p.ID)
		if _, ok := s.config.Texts[key]; ok {
			continue
		}
		slot := defaultTextSlot()
		s.config.Texts[key] = slot
		created = append(created, textChange(ChangeCreated, p.ID, "", slot))
	}
	s.mu.Unlock()

	s.emit(created...)
}

// Replace supersedes the whole configuration. Placeholder metadata of the
// current template is left alone; slots that match no placeholder are inert.
func (s *Store) Replace(cfg *models.Configuration) {
	s.queue.Lock()
	defer s.queue.Unlock()

	next := cfg.Clone()
	if next == nil {
		next = models.NewConfiguration()
	}
	if next.Images == nil {
		next.Images = make(map[string]models.ImageSlot)
	}
	if next.Texts == nil {
		next.Texts = make(map[string]models.TextSlot)
	}

	s.mu.Lock()
	s.config = next
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeReplaced})
}

// Snapshot returns a deep copy of the configuration.
func (s *Store) Snapshot() *models.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Placeholder returns the analyzer metadata for id, if the current template has it.
func (s *Store) Placeholder(id int) (models.Placeholder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.meta[id]
	return p, ok
}

// TitleCount returns the number of title placeholders of the current template.
func (s *Store) TitleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.titles
}

// ImageSlot returns the slot for image placeholder id, creating the default on first access.
func (s *Store) ImageSlot(id int) models.ImageSlot {
	key := models.ImageKey(id)

	s.mu.RLock()
	slot, ok := s.config.Images[key]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.queue.Lock()
	defer s.queue.Unlock()

	s.mu.Lock()
	slot, ok = s.config.Images[key]
	if !ok {
		slot = s.defaultImageSlotLocked(id)
		s.config.Images[key] = slot
	}
	s.mu.Unlock()

	if !ok {
		s.emit(imageChange(ChangeCreated, id, "", slot))
	}
	return slot
}

// TextSlot returns the slot for text placeholder id, creating the default on first access.
func (s *Store) TextSlot(id int) models.TextSlot {
	key := models.TextKey(id)

	s.mu.RLock()
	slot, ok := s.config.Texts[key]
	s.mu.RUnlock()
	if ok {
		return cloneText(slot)
	}

	s.queue.Lock()
	defer s.queue.Unlock()

	s.mu.Lock()
	slot, ok = s.config.Texts[key]
	if !ok {
		slot = defaultTextSlot()
		s.config.Texts[key] = slot
	}
	s.mu.Unlock()

	if !ok {
		s.emit(textChange(ChangeCreated, id, "", slot))
	}
	return cloneText(slot)
}

// LookupImageSlot returns the stored slot without creating one. Safe to call from listeners.
func (s *Store) LookupImageSlot(id int) (models.ImageSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.config.Images[models.ImageKey(id)]
	return slot, ok
}

// LookupTextSlot returns the stored slot without creating one. Safe to call from listeners.
func (s *Store) LookupTextSlot(id int) (models.TextSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.config.Texts[models.TextKey(id)]
	return cloneText(slot), ok
}

// DefaultImageSlot returns the slot id would get if created now.
func (s *Store) DefaultImageSlot(id int) models.ImageSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultImageSlotLocked(id)
}

// SetImageProperty validates value and writes it to the image slot of id.
// A missing slot is created with defaults first. Invalid input leaves the
// configuration untouched.
func (s *Store) SetImageProperty(id int, prop ImageProperty, value any) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	key := models.ImageKey(id)

	s.mu.Lock()
	slot, ok := s.config.Images[key]
	if !ok {
		slot = s.defaultImageSlotLocked(id)
	}
	if err := applyImageProperty(&slot, prop, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.config.Images[key] = slot
	s.mu.Unlock()

	s.emit(imageChange(ChangeUpdated, id, string(prop), slot))
	return nil
}

// SetTextProperty validates value and writes it to the text slot of id.
// A missing slot is created with defaults first. Invalid input leaves the
// configuration untouched.
func (s *Store) SetTextProperty(id int, prop TextProperty, value any) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	key := models.TextKey(id)

	s.mu.Lock()
	slot, ok := s.config.Texts[key]
	if !ok {
		slot = defaultTextSlot()
	}
	slot = cloneText(slot)
	if err := applyTextProperty(&slot, prop, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.config.Texts[key] = slot
	s.mu.Unlock()

	s.emit(textChange(ChangeUpdated, id, string(prop), slot))
	return nil
}

// Summarize projects the configuration into summary lines.
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RenderSummary(s.config, s.titles)
}

// defaultImageSlotLocked ranks the image by its detection position when the
// metadata is known, falling back to 1.
func (s *Store) defaultImageSlotLocked(id int) models.ImageSlot {
	order := s.imageRank[id]
	if order < 1 {
		order = 1
	}
	return models.ImageSlot{Use: true, Order: order}
}

func defaultTextSlot() models.TextSlot {
	return models.TextSlot{FillMode: models.FillEmpty}
}

func cloneText(t models.TextSlot) models.TextSlot {
	if t.Value != nil {
		v := *t.Value
		t.Value = &v
	}
	return t
}

func imageChange(kind ChangeKind, id int, prop string, slot models.ImageSlot) Change {
	return Change{
		Kind:     kind,
		Key:      models.ImageKey(id),
		ID:       id,
		SlotKind: models.KindImage,
		Property: prop,
		Image:    &slot,
	}
}

func textChange(kind ChangeKind, id int, prop string, slot models.TextSlot) Change {
	slot = cloneText(slot)
	return Change{
		Kind:     kind,
		Key:      models.TextKey(id),
		ID:       id,
		SlotKind: models.KindText,
		Property: prop,
		Text:     &slot,
	}
}
