package canvas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/kv"
)

// Storage namespaces. Canvases are one JSON blob per id; images are two
// linked records, payload under the id and metadata under id+"_meta".
const (
	nsCanvas = "canvas"
	nsImages = "images"

	metaSuffix = "_meta"
)

// Store persists canvases and images in a kv.Store.
type Store struct {
	kv kv.Store
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Save writes the canvas as a single serialized blob under its id.
func (s *Store) Save(c *Canvas) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("canvas: serialize %q: %w", c.ID, err)
	}
	return s.kv.Put(nsCanvas, c.ID, b)
}

// Load reads and decodes one canvas. Missing id surfaces ErrNotFound.
func (s *Store) Load(id string) (*Canvas, error) {
	b, err := s.kv.Get(nsCanvas, id)
	if err != nil {
		return nil, err
	}
	var c Canvas
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("canvas: decode %q: %w", id, err)
	}
	return &c, nil
}

// Delete removes one canvas record.
func (s *Store) Delete(id string) error {
	return s.kv.Erase(nsCanvas, id)
}

// List returns up to limit persisted canvas ids, sorted. limit <= 0 means
// no cap.
func (s *Store) List(limit int) ([]string, error) {
	ids, err := s.kv.Keys(nsCanvas)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// PutImage stores an image payload and its metadata record. Empty or
// oversized payloads are rejected.
func (s *Store) PutImage(id string, data []byte, format ImageFormat) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("canvas: image %q: empty payload: %w", id, errs.ErrInvalidArgument)
	}
	if len(data) > MaxImageSize {
		return fmt.Errorf("canvas: image %q: %d bytes exceeds %d: %w", id, len(data), MaxImageSize, errs.ErrInvalidArgument)
	}
	meta, err := json.Marshal(ImageMeta{Format: format, Size: len(data), Stored: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("canvas: image %q meta: %w", id, err)
	}
	if err := s.kv.Put(nsImages, id, data); err != nil {
		return err
	}
	return s.kv.Put(nsImages, id+metaSuffix, meta)
}

// GetImage returns the payload and metadata of a stored image.
func (s *Store) GetImage(id string) ([]byte, *ImageMeta, error) {
	data, err := s.kv.Get(nsImages, id)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.kv.Get(nsImages, id+metaSuffix)
	if err != nil {
		return nil, nil, err
	}
	var meta ImageMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("canvas: image %q meta: %w", id, err)
	}
	return data, &meta, nil
}

// DeleteImage removes both image records. Elements referencing the id are
// left alone; they render a placeholder from then on.
func (s *Store) DeleteImage(id string) error {
	if err := s.kv.Erase(nsImages, id); err != nil {
		return err
	}
	return s.kv.Erase(nsImages, id+metaSuffix)
}
