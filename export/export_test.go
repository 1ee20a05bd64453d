package export

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tuition-receipts-go/models"
	"tuition-receipts-go/render"
)

type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	maxSeen  int
	fail     map[string]bool
	gate     chan struct{}
	starts   []time.Time
}

func (r *fakeRenderer) Render(ctx context.Context, s models.StudentRecord) (*render.Bitmap, error) {
	r.mu.Lock()
	r.calls++
	r.starts = append(r.starts, time.Now())
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	gate := r.gate
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if r.fail[s.Name] {
		return nil, render.ErrReceiptNotFound
	}
	return &render.Bitmap{Image: image.NewNRGBA(image.Rect(0, 0, 2, 2))}, nil
}

func (r *fakeRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) Notify(e models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t models.EventType) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

type memorySink struct {
	mu    sync.Mutex
	names []string
	at    []time.Time
}

func (s *memorySink) Deliver(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.at = append(s.at, time.Now())
	return nil
}

func student(name, class string, fee int64) models.StudentRecord {
	return models.StudentRecord{
		Name:            name,
		ClassName:       class,
		SessionCount:    decimal.NewFromInt(4),
		PricePerSession: decimal.NewFromInt(fee / 4),
		TotalFee:        decimal.NewFromInt(fee),
	}
}

func fastOptions() Options {
	return Options{
		Pacing:       time.Millisecond,
		ToastWindow:  10 * time.Millisecond,
		CopiedWindow: 20 * time.Millisecond,
		Format:       FormatPNG,
		QueueSize:    4,
		JobRetention: time.Minute,
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestCopyTracker_Transitions(t *testing.T) {
	events := &eventLog{}
	tr := NewCopyTracker(20*time.Millisecond, events)
	key := models.StudentKey("An-400000")

	if err := tr.Fail(key); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Fail() from idle error = %v, want ErrIllegalTransition", err)
	}
	if err := tr.Succeed(key); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Succeed() from idle error = %v, want ErrIllegalTransition", err)
	}
	if !tr.Begin(key) {
		t.Fatal("Begin() from idle = false")
	}
	if tr.Begin(key) {
		t.Error("Begin() while loading = true")
	}
	if err := tr.Succeed(key); err != nil {
		t.Fatalf("Succeed() error = %v", err)
	}
	if tr.Begin(key) {
		t.Error("Begin() while copied = true")
	}
	if got := tr.State(key); got != models.CopyCopied {
		t.Errorf("State() = %v, want copied", got)
	}

	eventually(t, "copied to fall back to idle", func() bool { return tr.State(key) == models.CopyIdle })

	var got []models.CopyState
	for _, e := range events.ofType(models.EventCopyState) {
		got = append(got, *e.State)
	}
	want := []models.CopyState{models.CopyLoading, models.CopyCopied, models.CopyIdle}
	if len(got) != len(want) {
		t.Fatalf("copy events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("copy event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCopyTracker_Reset(t *testing.T) {
	tr := NewCopyTracker(time.Hour, nil)
	tr.Begin("A-1")
	tr.Begin("B-2")
	tr.Succeed("B-2")

	tr.Reset()
	if states := tr.States(); len(states) != 0 {
		t.Errorf("States() after reset = %v", states)
	}
	if !tr.Begin("B-2") {
		t.Error("Begin() after reset = false")
	}
}

func TestOrchestrator_CopyOneTwiceRendersOnce(t *testing.T) {
	renderer := &fakeRenderer{gate: make(chan struct{})}
	clip := &MemoryClipboard{}
	o := NewOrchestrator(renderer, nil, clip, nil, fastOptions())
	s := student("Nguyen Van A", "10A", 400000)

	first := make(chan bool)
	go func() { first <- o.CopyOne(context.Background(), s) }()
	eventually(t, "first copy to start loading", func() bool {
		return o.Copies().State(s.Key()) == models.CopyLoading
	})

	if o.CopyOne(context.Background(), s) {
		t.Error("second CopyOne() while loading started a copy")
	}
	close(renderer.gate)
	if !<-first {
		t.Fatal("first CopyOne() did not start")
	}

	if got := renderer.Calls(); got != 1 {
		t.Errorf("renders = %d, want 1", got)
	}
	if got := o.Copies().State(s.Key()); got != models.CopyCopied {
		t.Errorf("state = %v, want copied", got)
	}
	if _, _, ok := clip.Last(); !ok {
		t.Error("clipboard is empty")
	}
	if o.CopyOne(context.Background(), s) {
		t.Error("CopyOne() while copied started a copy")
	}
}

func TestOrchestrator_CopyOneFailures(t *testing.T) {
	tests := []struct {
		name      string
		renderer  *fakeRenderer
		clipboard Clipboard
		wantMsg   string
	}{
		{
			name:      "render fails",
			renderer:  &fakeRenderer{fail: map[string]bool{"An": true}},
			clipboard: &MemoryClipboard{},
			wantMsg:   msgRowRenderFailed,
		},
		{
			name:      "clipboard unavailable",
			renderer:  &fakeRenderer{},
			clipboard: NoClipboard{},
			wantMsg:   msgRowCopyFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &eventLog{}
			o := NewOrchestrator(tt.renderer, nil, tt.clipboard, events, fastOptions())
			s := student("An", "", 100000)

			if !o.CopyOne(context.Background(), s) {
				t.Fatal("CopyOne() did not start")
			}
			if got := o.Copies().State(s.Key()); got != models.CopyIdle {
				t.Errorf("state after failure = %v, want idle", got)
			}
			warnings := events.ofType(models.EventWarning)
			if len(warnings) != 1 || warnings[0].Message != tt.wantMsg {
				t.Errorf("warnings = %+v, want %q", warnings, tt.wantMsg)
			}
			if !o.CopyOne(context.Background(), s) {
				t.Error("retry after failure should start")
			}
		})
	}
}

func TestOrchestrator_CopyOneResetMidCopy(t *testing.T) {
	gate := make(chan struct{})
	renderer := &fakeRenderer{gate: gate}
	events := &eventLog{}
	o := NewOrchestrator(renderer, nil, &MemoryClipboard{}, events, fastOptions())
	s := student("An", "3A", 100000)

	done := make(chan bool)
	go func() { done <- o.CopyOne(context.Background(), s) }()
	eventually(t, "the copy to start rendering", func() bool { return renderer.Calls() == 1 })

	// A new ledger lands while the receipt is rendering.
	o.Copies().Reset()
	close(gate)

	if !<-done {
		t.Fatal("CopyOne() did not start")
	}
	if got := o.Copies().State(s.Key()); got != models.CopyIdle {
		t.Errorf("state after reset = %v, want idle", got)
	}
	if n := len(events.ofType(models.EventWarning)); n != 0 {
		t.Errorf("warnings = %d, want none", n)
	}
	if !o.CopyOne(context.Background(), s) {
		t.Error("copy after reset should start")
	}
}

func TestOrchestrator_RunBatch(t *testing.T) {
	renderer := &fakeRenderer{fail: map[string]bool{"Binh": true}}
	events := &eventLog{}
	o := NewOrchestrator(renderer, nil, nil, events, fastOptions())
	sink := &memorySink{}
	records := []models.StudentRecord{
		student("An", "3A", 100000),
		student("Binh", "3A", 200000),
		student("Chi", "", 300000),
	}

	status := o.RunBatch(context.Background(), "job-1", records, sink)

	if renderer.Calls() != 3 {
		t.Errorf("renders = %d, want 3", renderer.Calls())
	}
	wantNames := []string{"An_3A.png", "Chi_lop.png"}
	if len(sink.names) != len(wantNames) || sink.names[0] != wantNames[0] || sink.names[1] != wantNames[1] {
		t.Errorf("delivered = %v, want %v", sink.names, wantNames)
	}
	if len(status.Failed) != 1 || status.Failed[0] != "Binh" {
		t.Errorf("Failed = %v, want [Binh]", status.Failed)
	}
	if status.Delivered != 2 || !status.Progress.Done || status.FinishedAt == nil {
		t.Errorf("status = %+v", status)
	}

	wantTexts := []string{
		"Đang tạo 0 / 3 phiếu...",
		"Đang tạo phiếu 1 / 3...",
		"Đang tạo phiếu 2 / 3...",
		"Đang tạo phiếu 3 / 3...",
		"✅ Đã download 3 phiếu!",
	}
	progress := events.ofType(models.EventProgress)
	if len(progress) != len(wantTexts) {
		t.Fatalf("progress events = %d, want %d", len(progress), len(wantTexts))
	}
	for i, want := range wantTexts {
		if got := progress[i].Progress.StatusText; got != want {
			t.Errorf("progress %d = %q, want %q", i, got, want)
		}
	}
	if last := progress[len(progress)-1].Progress; !last.Done || last.Percent != 100 {
		t.Errorf("last progress = %+v", last)
	}

	eventually(t, "the toast to clear", func() bool {
		return len(events.ofType(models.EventProgressCleared)) == 1
	})
}

func TestOrchestrator_PacingBetweenReceipts(t *testing.T) {
	const pacing = 50 * time.Millisecond
	renderer := &fakeRenderer{fail: map[string]bool{"Binh": true}}
	opts := fastOptions()
	opts.Pacing = pacing
	o := NewOrchestrator(renderer, nil, nil, nil, opts)
	sink := &memorySink{}
	records := []models.StudentRecord{
		student("An", "3A", 100000),
		student("Binh", "3A", 200000),
		student("Chi", "3A", 300000),
		student("Dung", "3A", 400000),
	}

	o.RunBatch(context.Background(), "job-paced", records, sink)

	starts, delivered := renderer.starts, sink.at
	if len(starts) != 4 || len(delivered) != 3 {
		t.Fatalf("renders = %d, deliveries = %d, want 4 and 3", len(starts), len(delivered))
	}

	tests := []struct {
		name      string
		delivered time.Time // delivery of the previous receipt
		next      time.Time // render start of the following one
	}{
		{"An then Binh", delivered[0], starts[1]},
		{"Chi then Dung", delivered[1], starts[3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if gap := tt.next.Sub(tt.delivered); gap < pacing {
				t.Errorf("next render started %v after delivery, want at least %v", gap, pacing)
			}
		})
	}

	// Binh failed, so Chi starts without a pause.
	if gap := starts[2].Sub(starts[1]); gap >= pacing {
		t.Errorf("render after a failure waited %v, want no pacing", gap)
	}
}

func TestOrchestrator_FinishedJobsExpire(t *testing.T) {
	opts := fastOptions()
	opts.JobRetention = 30 * time.Millisecond
	o := NewOrchestrator(&fakeRenderer{}, nil, nil, nil, opts)

	status := o.RunBatch(context.Background(), "job-old", []models.StudentRecord{student("An", "3A", 1)}, NewZipSink())
	if !status.Progress.Done || status.Delivered != 1 {
		t.Fatalf("status = %+v", status)
	}
	eventually(t, "the job to expire", func() bool {
		_, err := o.Job("job-old")
		return errors.Is(err, ErrJobNotFound)
	})
	if _, err := o.JobSink("job-old"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("JobSink() after expiry error = %v, want ErrJobNotFound", err)
	}
}

func TestOrchestrator_DropFinished(t *testing.T) {
	renderer := &fakeRenderer{}
	o := NewOrchestrator(renderer, nil, nil, nil, fastOptions())
	o.RunBatch(context.Background(), "job-done", []models.StudentRecord{student("An", "3A", 1)}, &memorySink{})

	gate := make(chan struct{})
	renderer.mu.Lock()
	renderer.gate = gate
	renderer.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Start(ctx)
	running, err := o.SubmitBatch([]models.StudentRecord{student("Binh", "3A", 2)}, &memorySink{})
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	eventually(t, "the second job to start rendering", func() bool { return renderer.Calls() == 2 })

	if n := o.DropFinished(); n != 1 {
		t.Errorf("DropFinished() = %d, want 1", n)
	}
	if _, err := o.Job("job-done"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Job(job-done) error = %v, want ErrJobNotFound", err)
	}
	if _, err := o.Job(running); err != nil {
		t.Errorf("running job dropped: %v", err)
	}

	close(gate)
	eventually(t, "the running job to finish", func() bool {
		status, err := o.Job(running)
		return err == nil && status.Progress.Done
	})
}

func TestOrchestrator_EmptyBatch(t *testing.T) {
	renderer := &fakeRenderer{}
	events := &eventLog{}
	o := NewOrchestrator(renderer, nil, nil, events, fastOptions())

	id, err := o.SubmitBatch(nil, &memorySink{})
	if err != nil || id != "" {
		t.Errorf("SubmitBatch(nil) = %q, %v", id, err)
	}
	o.RunBatch(context.Background(), "empty", nil, &memorySink{})

	if renderer.Calls() != 0 {
		t.Errorf("renders = %d, want 0", renderer.Calls())
	}
	if n := events.len(); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestOrchestrator_QueueIsSequential(t *testing.T) {
	renderer := &fakeRenderer{}
	o := NewOrchestrator(renderer, nil, nil, nil, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		o.Start(ctx)
		close(stopped)
	}()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := o.SubmitBatch([]models.StudentRecord{
			student("An", "1A", 1), student("Binh", "1A", 2),
		}, NewZipSink())
		if err != nil {
			t.Fatalf("SubmitBatch() error = %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		eventually(t, "job "+id, func() bool {
			status, err := o.Job(id)
			return err == nil && status.Progress.Done
		})
	}
	renderer.mu.Lock()
	maxSeen := renderer.maxSeen
	renderer.mu.Unlock()
	if maxSeen != 1 {
		t.Errorf("concurrent renders = %d, want 1", maxSeen)
	}

	sink, err := o.JobSink(ids[0])
	if err != nil {
		t.Fatalf("JobSink() error = %v", err)
	}
	if n := sink.(*ZipSink).Count(); n != 2 {
		t.Errorf("archive files = %d, want 2", n)
	}

	cancel()
	<-stopped
	if _, err := o.SubmitBatch([]models.StudentRecord{student("An", "", 1)}, &memorySink{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("SubmitBatch() after stop error = %v, want ErrQueueClosed", err)
	}
	if _, err := o.Job("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Job(missing) error = %v", err)
	}
}

func TestOrchestrator_PDFBatch(t *testing.T) {
	opts := fastOptions()
	opts.Format = FormatPDF
	renderer := &fakeRenderer{}
	pdf := &PDFRenderer{Content: render.Content{Texts: render.DefaultTexts()}}
	o := NewOrchestrator(renderer, pdf, nil, nil, opts)
	sink := &memorySink{}

	o.RunBatch(context.Background(), "pdf", []models.StudentRecord{student("An", "2B", 100000)}, sink)

	if renderer.Calls() != 0 {
		t.Errorf("PNG renders = %d, want 0", renderer.Calls())
	}
	if len(sink.names) != 1 || sink.names[0] != "An_2B.pdf" {
		t.Errorf("delivered = %v", sink.names)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatPNG},
		{in: "png", want: FormatPNG},
		{in: "pdf", want: FormatPDF},
		{in: "gif", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
