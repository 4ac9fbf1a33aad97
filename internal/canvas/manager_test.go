package canvas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	"github.com/MePride/pin/internal/kv"
)

func newTestManager(t *testing.T, disp Display) *Manager {
	t.Helper()
	s, err := kv.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("kv.OpenFile: %v", err)
	}
	return NewManager(NewStore(s), disp, 64, 32)
}

func rectElement(id string, z uint8) Element {
	return Element{
		ID: id, Type: TypeRect, Visible: true, ZIndex: z,
		Bounds: Bounds{X: 0, Y: 0, Width: 8, Height: 8},
		Shape:  &ShapeProps{FillColor: gfx.Red, BorderColor: gfx.Black, Filled: true},
	}
}

func TestCreateGetDelete(t *testing.T) {
	m := newTestManager(t, nil)

	c, err := m.Create("c1", "First")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Background != gfx.White || c.Created == 0 || c.Created != c.Modified {
		t.Errorf("fresh canvas = %+v, want white background and equal timestamps", c)
	}

	got, err := m.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("Get mismatch (-created +got):\n%s", diff)
	}

	// Create overwrites an existing canvas wholesale.
	if err := m.AddElement("c1", rectElement("r1", 0)); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if _, err := m.Create("c1", "Replaced"); err != nil {
		t.Fatalf("Create overwrite: %v", err)
	}
	got, _ = m.Get("c1")
	if got.Name != "Replaced" || len(got.Elements) != 0 {
		t.Errorf("overwritten canvas = %+v, want empty %q", got, "Replaced")
	}

	if err := m.Delete("c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get("c1"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := m.Delete("c1"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("double Delete = %v, want ErrNotFound", err)
	}
}

func TestAddElementLimits(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Create("c1", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.AddElement("c1", rectElement("dup", 0)); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if err := m.AddElement("c1", rectElement("dup", 1)); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("duplicate AddElement = %v, want ErrAlreadyExists", err)
	}

	for i := 1; i < MaxElements; i++ {
		if err := m.AddElement("c1", rectElement(fmt.Sprintf("e%d", i), 0)); err != nil {
			t.Fatalf("AddElement #%d: %v", i, err)
		}
	}
	if err := m.AddElement("c1", rectElement("overflow", 0)); !errors.Is(err, errs.ErrExhausted) {
		t.Errorf("AddElement on full canvas = %v, want ErrExhausted", err)
	}

	if err := m.AddElement("missing", rectElement("r1", 0)); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("AddElement on missing canvas = %v, want ErrNotFound", err)
	}
}

func TestElementUpdateAndRemove(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Create("c1", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := m.AddElement("c1", rectElement(id, 0)); err != nil {
			t.Fatalf("AddElement %q: %v", id, err)
		}
	}

	upd := rectElement("b", 9)
	upd.Shape.FillColor = gfx.Blue
	if err := m.UpdateElement("c1", upd); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	if err := m.UpdateElement("c1", rectElement("nope", 0)); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("UpdateElement missing = %v, want ErrNotFound", err)
	}

	c, _ := m.Get("c1")
	if i := c.FindElement("b"); i != 1 || c.Elements[i].ZIndex != 9 {
		t.Errorf("updated element moved or kept old payload: index %d, %+v", i, c.Elements[i])
	}

	if err := m.RemoveElement("c1", "b"); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	c, _ = m.Get("c1")
	var order []string
	for _, e := range c.Elements {
		order = append(order, e.ID)
	}
	if diff := cmp.Diff([]string{"a", "c"}, order); diff != "" {
		t.Errorf("element order after remove (-want +got):\n%s", diff)
	}
	if err := m.RemoveElement("c1", "b"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("double RemoveElement = %v, want ErrNotFound", err)
	}
}

func TestUpdateStampsModified(t *testing.T) {
	m := newTestManager(t, nil)
	c, err := m.Create("c1", "x")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c.Modified = 0
	c.Name = "renamed"
	if err := m.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := m.Get("c1")
	if got.Name != "renamed" || got.Modified == 0 {
		t.Errorf("Update did not stamp modified time: %+v", got)
	}
}

func TestImageStore(t *testing.T) {
	m := newTestManager(t, nil)

	if err := m.StoreImage("logo", nil, FormatPNG); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("StoreImage(empty) = %v, want ErrInvalidArgument", err)
	}
	if err := m.StoreImage("logo", make([]byte, MaxImageSize+1), FormatPNG); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("StoreImage(oversize) = %v, want ErrInvalidArgument", err)
	}

	payload := []byte{0x89, 'P', 'N', 'G'}
	if err := m.StoreImage("logo", payload, FormatPNG); err != nil {
		t.Fatalf("StoreImage: %v", err)
	}
	data, meta, err := m.GetImage("logo")
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if diff := cmp.Diff(payload, data); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if meta.Format != FormatPNG || meta.Size != len(payload) || meta.Stored == 0 {
		t.Errorf("meta = %+v", meta)
	}

	if err := m.DeleteImage("logo"); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if _, _, err := m.GetImage("logo"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("GetImage after delete = %v, want ErrNotFound", err)
	}
}

func TestListCap(t *testing.T) {
	m := newTestManager(t, nil)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := m.Create(id, id); err != nil {
			t.Fatalf("Create %q: %v", id, err)
		}
	}
	all, err := m.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, all); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	capped, _ := m.List(2)
	if len(capped) != 2 {
		t.Errorf("List(2) returned %d ids", len(capped))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestManager(t, nil)
	c := &Canvas{
		ID: "dash", Name: "Dashboard", Background: gfx.Yellow,
		Created: 1700000000, Modified: 1700000100,
		Elements: sampleElements(),
	}
	if err := src.mutateFree(c); err != nil {
		t.Fatalf("seed canvas: %v", err)
	}

	blob, err := src.Export("dash")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestManager(t, nil)
	imported, err := dst.Import(blob)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diff := cmp.Diff(c, imported); diff != "" {
		t.Errorf("import round trip mismatch (-src +imported):\n%s", diff)
	}

	if _, err := dst.Import([]byte("{not json")); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("Import(garbage) = %v, want ErrInvalidArgument", err)
	}
}

// mutateFree stores a fully built canvas without timestamp re-stamping,
// for seeding round-trip tests.
func (m *Manager) mutateFree(c *Canvas) error {
	if err := m.mu.Acquire(mutateWait); err != nil {
		return err
	}
	defer m.mu.Release()
	return m.store.Save(c)
}

type fakeDisplay struct {
	frames [][]byte
	err    error
}

func (f *fakeDisplay) ShowFrame(frame []byte) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func TestDisplayPushesPackedFrame(t *testing.T) {
	disp := &fakeDisplay{}
	m := newTestManager(t, disp)
	if _, err := m.Create("c1", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	c, _ := m.Get("c1")
	c.Background = gfx.Red
	if err := m.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := m.Display("c1"); err != nil {
		t.Fatalf("Display: %v", err)
	}
	if len(disp.frames) != 1 {
		t.Fatalf("pushed %d frames, want 1", len(disp.frames))
	}
	frame := disp.frames[0]
	w, h := m.Size()
	if len(frame) != w*h/2 {
		t.Errorf("frame is %d bytes, want %d", len(frame), w*h/2)
	}
	if frame[0] != byte(gfx.Red)<<4|byte(gfx.Red) {
		t.Errorf("frame[0] = %#02x, want packed red pair", frame[0])
	}
}

func TestDisplayErrors(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Create("c1", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Display("c1"); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Display without panel = %v, want ErrInvalidState", err)
	}

	disp := &fakeDisplay{err: errs.ErrDevice}
	m2 := newTestManager(t, disp)
	if _, err := m2.Create("c1", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m2.Display("c1"); !errors.Is(err, errs.ErrDevice) {
		t.Errorf("Display with failing panel = %v, want ErrDevice", err)
	}
	if err := m2.Display("missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Display missing canvas = %v, want ErrNotFound", err)
	}
}
