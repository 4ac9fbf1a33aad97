package canvas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	"github.com/MePride/pin/internal/lock"
)

// Display is the sink a rendered, nibble-packed frame is pushed to. Nil is
// allowed on a Manager running in render-only mode.
type Display interface {
	ShowFrame(frame []byte) error
}

// Lock bounds. Mutations are quick; Display covers a full panel refresh.
const (
	mutateWait  = time.Second
	displayWait = 35 * time.Second
)

// Manager is the facade over the canvas store, the render engine and the
// display sink. One coarse lock serializes every operation: the single
// physical panel is the bottleneck anyway, so simplicity wins over
// throughput here.
type Manager struct {
	mu    *lock.Timed
	store *Store
	disp  Display
	w, h  int
}

// NewManager wires a manager over store, rendering at w×h. disp may be nil
// for render-only operation; Display then fails with ErrInvalidState.
func NewManager(store *Store, disp Display, w, h int) *Manager {
	return &Manager{
		mu:    lock.New(),
		store: store,
		disp:  disp,
		w:     w,
		h:     h,
	}
}

// Size returns the render target dimensions.
func (m *Manager) Size() (w, h int) { return m.w, m.h }

// Create makes a new empty canvas: white background, both timestamps set
// to now. An existing canvas with the same id is overwritten.
func (m *Manager) Create(id, name string) (*Canvas, error) {
	now := time.Now().Unix()
	c := &Canvas{
		ID:         id,
		Name:       name,
		Background: gfx.White,
		Created:    now,
		Modified:   now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, err
	}
	defer m.mu.Release()
	if err := m.store.Save(c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Delete removes a canvas. Missing id surfaces ErrNotFound.
func (m *Manager) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	return m.store.Delete(id)
}

// Get returns a deep copy of a canvas; mutating it does not touch the
// stored state.
func (m *Manager) Get(id string) (*Canvas, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, err
	}
	defer m.mu.Release()
	c, err := m.store.Load(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Update replaces a canvas wholesale and stamps its modified time. There
// is no partial-field patching.
func (m *Manager) Update(c *Canvas) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	cp := c.Clone()
	cp.Modified = time.Now().Unix()
	return m.store.Save(cp)
}

// AddElement appends an element to a canvas. A duplicate element id fails
// with ErrAlreadyExists; a full canvas with ErrExhausted.
func (m *Manager) AddElement(canvasID string, e Element) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return m.mutate(canvasID, func(c *Canvas) error {
		if len(c.Elements) >= MaxElements {
			return fmt.Errorf("canvas %q: element limit %d reached: %w", canvasID, MaxElements, errs.ErrExhausted)
		}
		if c.FindElement(e.ID) >= 0 {
			return fmt.Errorf("canvas %q: element %q: %w", canvasID, e.ID, errs.ErrAlreadyExists)
		}
		c.Elements = append(c.Elements, e)
		return nil
	})
}

// UpdateElement replaces an element in place, keeping its position in the
// insertion order.
func (m *Manager) UpdateElement(canvasID string, e Element) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return m.mutate(canvasID, func(c *Canvas) error {
		i := c.FindElement(e.ID)
		if i < 0 {
			return fmt.Errorf("canvas %q: element %q: %w", canvasID, e.ID, errs.ErrNotFound)
		}
		c.Elements[i] = e
		return nil
	})
}

// RemoveElement deletes an element, shifting the remainder left so their
// relative order is preserved.
func (m *Manager) RemoveElement(canvasID, elementID string) error {
	if err := ValidateID(elementID); err != nil {
		return err
	}
	return m.mutate(canvasID, func(c *Canvas) error {
		i := c.FindElement(elementID)
		if i < 0 {
			return fmt.Errorf("canvas %q: element %q: %w", canvasID, elementID, errs.ErrNotFound)
		}
		c.Elements = append(c.Elements[:i], c.Elements[i+1:]...)
		return nil
	})
}

// mutate loads a canvas, applies f and persists the result with a fresh
// modified timestamp, all under the manager lock.
func (m *Manager) mutate(canvasID string, f func(*Canvas) error) error {
	if err := ValidateID(canvasID); err != nil {
		return err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	c, err := m.store.Load(canvasID)
	if err != nil {
		return err
	}
	if err := f(c); err != nil {
		return err
	}
	c.Modified = time.Now().Unix()
	return m.store.Save(c)
}

// StoreImage persists an image payload (non-empty, at most 64 KiB) plus
// its metadata record.
func (m *Manager) StoreImage(id string, data []byte, format ImageFormat) error {
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	return m.store.PutImage(id, data, format)
}

// GetImage returns a stored image payload and its metadata.
func (m *Manager) GetImage(id string) ([]byte, *ImageMeta, error) {
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, nil, err
	}
	defer m.mu.Release()
	return m.store.GetImage(id)
}

// DeleteImage removes a stored image. Elements referencing it keep their
// reference and render a placeholder.
func (m *Manager) DeleteImage(id string) error {
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	return m.store.DeleteImage(id)
}

// Render loads a canvas and rasterizes it. The stored canvas is left
// untouched.
func (m *Manager) Render(id string) (*gfx.Indexed, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, err
	}
	defer m.mu.Release()
	c, err := m.store.Load(id)
	if err != nil {
		return nil, err
	}
	return Render(c, m.w, m.h), nil
}

// Display renders a canvas and pushes the packed frame to the panel. Both
// stages surface their failures; nothing is swallowed.
func (m *Manager) Display(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if m.disp == nil {
		return fmt.Errorf("canvas: no display attached: %w", errs.ErrInvalidState)
	}
	if err := m.mu.Acquire(displayWait); err != nil {
		return err
	}
	defer m.mu.Release()
	c, err := m.store.Load(id)
	if err != nil {
		return err
	}
	buf := Render(c, m.w, m.h)
	return m.disp.ShowFrame(gfx.PackFrame(buf))
}

// List enumerates up to limit persisted canvas ids.
func (m *Manager) List(limit int) ([]string, error) {
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, err
	}
	defer m.mu.Release()
	return m.store.List(limit)
}

// Export serializes a canvas to its wire JSON.
func (m *Manager) Export(id string) ([]byte, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("canvas: export %q: %w", id, err)
	}
	return b, nil
}

// Import decodes a wire JSON canvas and stores it, fully replacing any
// canvas with the same id.
func (m *Manager) Import(data []byte) (*Canvas, error) {
	var c Canvas
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("canvas: import: %v: %w", err, errs.ErrInvalidArgument)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.mu.Acquire(mutateWait); err != nil {
		return nil, err
	}
	defer m.mu.Release()
	if err := m.store.Save(&c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}
