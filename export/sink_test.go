package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"tuition-receipts-go/models"
	"tuition-receipts-go/render"
)

func TestFileNames(t *testing.T) {
	tests := []struct {
		name        string
		student     models.StudentRecord
		wantReceipt string
		wantPreview string
	}{
		{
			name:        "name and class",
			student:     models.StudentRecord{Name: "Nguyễn Văn An", ClassName: "10A"},
			wantReceipt: "Nguyễn Văn An_10A.png",
			wantPreview: "Nguyễn Văn An.png",
		},
		{
			name:        "missing class",
			student:     models.StudentRecord{Name: "Bình"},
			wantReceipt: "Bình_lop.png",
			wantPreview: "Bình.png",
		},
		{
			name:        "missing name",
			student:     models.StudentRecord{},
			wantReceipt: "_lop.png",
			wantPreview: "phieu.png",
		},
		{
			name:        "path separators",
			student:     models.StudentRecord{Name: "A/B", ClassName: `3\4`},
			wantReceipt: "A-B_3-4.png",
			wantPreview: "A-B.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReceiptFileName(tt.student); got != tt.wantReceipt {
				t.Errorf("ReceiptFileName() = %q, want %q", got, tt.wantReceipt)
			}
			if got := PreviewFileName(tt.student); got != tt.wantPreview {
				t.Errorf("PreviewFileName() = %q, want %q", got, tt.wantPreview)
			}
		})
	}
}

func TestZipSink(t *testing.T) {
	sink := NewZipSink()
	for _, name := range []string{"An_lop.png", "An_lop.png", "Chi_2A.png"} {
		if err := sink.Deliver(name, []byte(name)); err != nil {
			t.Fatalf("Deliver(%q) error = %v", name, err)
		}
	}
	data, err := sink.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if err := sink.Deliver("late.png", nil); err == nil {
		t.Error("Deliver() after Bytes() should fail")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	want := []string{"An_lop.png", "An_lop (2).png", "Chi_2A.png"}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d files, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Errorf("file %d = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := (DirSink{Dir: dir}).Deliver("An_lop.png", []byte("png")); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "An_lop.png"))
	if err != nil || string(got) != "png" {
		t.Errorf("file = %q, %v", got, err)
	}
}

func TestSystemClipboard(t *testing.T) {
	none := &SystemClipboard{lookPath: func(string) (string, error) { return "", exec.ErrNotFound }}
	err := none.WritePNG(context.Background(), []byte("png"))
	if !errors.Is(err, ErrClipboardUnavailable) {
		t.Errorf("WritePNG() without tools error = %v, want ErrClipboardUnavailable", err)
	}

	for _, tc := range []struct {
		bin     string
		wantErr bool
	}{
		{bin: "true"},
		{bin: "false", wantErr: true},
	} {
		path, err := exec.LookPath(tc.bin)
		if err != nil {
			t.Skipf("%s not on PATH", tc.bin)
		}
		c := &SystemClipboard{lookPath: func(string) (string, error) { return path, nil }}
		err = c.WritePNG(context.Background(), []byte("png"))
		if (err != nil) != tc.wantErr {
			t.Errorf("WritePNG() via %s error = %v", tc.bin, err)
		}
		var cerr *ClipboardError
		if tc.wantErr && (!errors.As(err, &cerr) || cerr.Tool != "wl-copy") {
			t.Errorf("WritePNG() via %s error = %#v, want ClipboardError from wl-copy", tc.bin, err)
		}
	}
}

func TestNewClipboard(t *testing.T) {
	for kind, ok := range map[string]bool{"system": true, "memory": true, "": true, "none": true, "pasteboard": false} {
		_, err := NewClipboard(kind)
		if (err == nil) != ok {
			t.Errorf("NewClipboard(%q) error = %v", kind, err)
		}
	}
}

func TestPDFReceipt(t *testing.T) {
	content := render.Content{
		Bank:      models.BankInfo{Bank: "Vietinbank", Account: "0981802098", Owner: "HOANG THU TRANG"},
		Texts:     render.DefaultTexts(),
		QRPayload: "0981802098",
	}
	data, err := PDFReceipt(student("Nguyen Van A", "10A", 400000), content)
	if err != nil {
		t.Fatalf("PDFReceipt() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("PDFReceipt() output is not a PDF")
	}
}

type layoutMounter struct{}

func (layoutMounter) Mount(_ context.Context, m render.Markup) (*render.Tree, error) {
	return render.LayoutReceipt(m, nil, nil, 1080), nil
}

type blankRaster struct{}

func (blankRaster) Rasterize(tree *render.Tree, opts render.RasterOptions) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

func TestOrchestrator_Preview(t *testing.T) {
	pipeline := render.NewPipeline(layoutMounter{}, blankRaster{}, render.NewFrameClock(0), render.Content{}, render.DefaultOptions())
	pv, err := pipeline.OpenPreview(context.Background(), models.StudentRecord{Name: "An"}, 1280, 720)
	if err != nil {
		t.Fatalf("OpenPreview() error = %v", err)
	}

	events := &eventLog{}
	o := NewOrchestrator(&fakeRenderer{}, nil, NoClipboard{}, events, fastOptions())
	if err := o.PreviewCopy(context.Background(), pv); !errors.Is(err, ErrClipboardUnavailable) {
		t.Errorf("PreviewCopy() error = %v, want ErrClipboardUnavailable", err)
	}
	if w := events.ofType(models.EventWarning); len(w) != 1 || w[0].Message != msgPreviewCopyFailed {
		t.Errorf("warnings = %+v", w)
	}

	clip := &MemoryClipboard{}
	o = NewOrchestrator(&fakeRenderer{}, nil, clip, events, fastOptions())
	if err := o.PreviewCopy(context.Background(), pv); err != nil {
		t.Fatalf("PreviewCopy() error = %v", err)
	}
	if _, _, ok := clip.Last(); !ok {
		t.Error("clipboard is empty after preview copy")
	}

	name, data, err := o.PreviewDownload(pv)
	if err != nil || name != "An.png" || len(data) == 0 {
		t.Errorf("PreviewDownload() = %q, %d bytes, %v", name, len(data), err)
	}
}
