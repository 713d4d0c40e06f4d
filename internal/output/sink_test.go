package output

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	return img
}

func TestWriteNamesFilesBySequence(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, 85)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	// Sequence 3 was skipped upstream; no file may appear for it.
	for _, seq := range []uint64{1, 2, 4} {
		if _, err := sink.Write(Record{Seq: seq, Image: testImage()}); err != nil {
			t.Fatalf("Write(%d): %v", seq, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	want := []string{"frame_000001.jpg", "frame_000002.jpg", "frame_000004.jpg"}
	if len(names) != len(want) {
		t.Fatalf("files = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("files = %v, want %v", names, want)
		}
	}
	if sink.Written() != 3 {
		t.Errorf("Written() = %d, want 3", sink.Written())
	}
}

func TestPathSortsLexicographically(t *testing.T) {
	sink := &Sink{dir: "out"}
	a := sink.Path(9)
	b := sink.Path(10)
	c := sink.Path(100000)
	if !(a < b && b < c) {
		t.Errorf("paths not in order: %q %q %q", a, b, c)
	}
}

func TestWriteRejectsNilImage(t *testing.T) {
	sink, err := NewSink(t.TempDir(), 85)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if _, err := sink.Write(Record{Seq: 1}); err == nil {
		t.Error("nil image accepted")
	}
	if sink.Written() != 0 {
		t.Errorf("Written() = %d after failed write", sink.Written())
	}
}

func TestNewSinkCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "frames")
	if _, err := NewSink(dir, 85); err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestWriteProducesReadableJPEG(t *testing.T) {
	sink, err := NewSink(t.TempDir(), 85)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	path, err := sink.Write(Record{Seq: 1, Image: testImage()})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("bounds = %v, want 8x8", img.Bounds())
	}
}
