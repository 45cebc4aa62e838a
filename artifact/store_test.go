package artifact

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/sitelens/metrics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type memMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (m *memMirror) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = data
	return nil
}

func (m *memMirror) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func writeFile(t *testing.T, dir, name string, data []byte, mod time.Time) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "screenshot_20240101_000000.png", []byte("x"), time.Time{})
	os.Mkdir(filepath.Join(dir, "sub.png"), 0o755)
	s := NewStore(dir)

	if _, err := s.Resolve("screenshot_20240101_000000.png"); err != nil {
		t.Fatalf("Resolve existing: %v", err)
	}
	for _, name := range []string{"missing.png", "../etc/passwd", "..", "", ".hidden", "a/b.png", "sub.png"} {
		if _, err := s.Resolve(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestList_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, dir, "screenshot_a.png", []byte("a"), base)
	writeFile(t, dir, "screenshot_b.png", []byte("bb"), base.Add(time.Minute))
	writeFile(t, dir, "notes.txt", []byte("ignored"), base)
	writeFile(t, dir, ".capture-123.png", []byte("tmp"), base)

	list, err := NewStore(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List len = %d: %+v", len(list), list)
	}
	if list[0].Filename != "screenshot_b.png" || list[0].Size != 2 || list[0].URL != "/download/screenshot_b.png" {
		t.Fatalf("first = %+v", list[0])
	}
}

func TestList_MissingDir(t *testing.T) {
	list, err := NewStore(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("List = %#v, %v", list, err)
	}
}

func TestRemoveAndMirror(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shot.png", []byte("png"), time.Time{})
	m := &memMirror{}
	s := NewStore(dir, WithMirror(m), WithLogger(quiet))

	if err := s.Publish(context.Background(), "shot.png"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if string(m.objects["shot.png"]) != "png" {
		t.Fatalf("mirror = %v", m.objects)
	}
	if err := s.Remove(context.Background(), "shot.png"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := m.objects["shot.png"]; ok {
		t.Fatal("mirror copy not deleted")
	}
	if err := s.Remove(context.Background(), "shot.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove = %v", err)
	}
}

func TestPublish_MirrorError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shot.png", []byte("png"), time.Time{})
	s := NewStore(dir, WithMirror(&memMirror{putErr: errors.New("bucket gone")}))
	if err := s.Publish(context.Background(), "shot.png"); err == nil {
		t.Fatal("expected mirror error")
	}
	if err := NewStore(dir).Publish(context.Background(), "shot.png"); err != nil {
		t.Fatalf("Publish without mirror: %v", err)
	}
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "old.png", []byte("o"), now.Add(-48*time.Hour))
	writeFile(t, dir, "new.png", []byte("n"), now.Add(-time.Hour))
	s := NewStore(dir, WithLogger(quiet))
	before := testutil.ToFloat64(metrics.ArtifactsSwept)

	n, err := s.Sweep(context.Background(), 24*time.Hour, now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d", n)
	}
	if got := testutil.ToFloat64(metrics.ArtifactsSwept) - before; got != 1 {
		t.Fatalf("swept counter advanced by %v, want 1", got)
	}
	if _, err := s.Resolve("old.png"); !errors.Is(err, ErrNotFound) {
		t.Fatal("old.png still present")
	}
	if _, err := s.Resolve("new.png"); err != nil {
		t.Fatal("new.png removed")
	}
	if _, err := s.Sweep(context.Background(), 0, now); err == nil {
		t.Fatal("zero age should be rejected")
	}
}

func TestSweep_SkipsVanishedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "old.png", []byte("o"), now.Add(-48*time.Hour))
	s := NewStore(dir, WithLogger(quiet))

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	// Another process deletes a file between listing and removal.
	list = append(list, Info{Filename: "gone.png", Modified: now.Add(-72 * time.Hour)})

	n, err := s.removeBefore(context.Background(), list, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("removeBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.png", []byte("o"), time.Now().Add(-time.Hour))
	s := NewStore(dir, WithLogger(quiet))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := s.Resolve("old.png"); errors.Is(err, ErrNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not remove old.png")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 80, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadPNGAndPDF(t *testing.T) {
	dir := t.TempDir()
	data := testPNG(t)
	writeFile(t, dir, "shot.png", data, time.Time{})
	writeFile(t, dir, "shot.txt", []byte("x"), time.Time{})
	s := NewStore(dir)

	got, err := s.ReadPNG("shot.png")
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("ReadPNG: %v", err)
	}
	if _, err := s.ReadPNG("shot.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadPNG non-png = %v", err)
	}

	var pdf bytes.Buffer
	if err := PNGToPDF(&pdf, got); err != nil {
		t.Fatalf("PNGToPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", pdf.Bytes()[:min(16, pdf.Len())])
	}
}

func TestPNGToPDF_Garbage(t *testing.T) {
	var out bytes.Buffer
	if err := PNGToPDF(&out, []byte("not an image")); err == nil {
		t.Fatal("expected error for non-image input")
	}
}

func TestPDFName(t *testing.T) {
	cases := map[string]string{
		"screenshot_20240101_000000.png": "screenshot_20240101_000000.pdf",
		"A.PNG":                          "A.pdf",
		"raw":                            "raw.pdf",
	}
	for in, want := range cases {
		if got := PDFName(in); got != want {
			t.Errorf("PDFName(%q) = %q, want %q", in, got, want)
		}
	}
}
