package render

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Mounter builds a receipt tree. Mounting is asynchronous: images load and the
// layout settles some time after the mount call returns.
type Mounter interface {
	Mount(ctx context.Context, m Markup) (*Tree, error)
}

// Renderer is the default Mounter: it loads the logo and QR concurrently and
// lays the receipt out at a fixed width.
type Renderer struct {
	Assets  *AssetLoader
	Width   int
	QRPixel int // Side of a generated QR code in pixels
}

func (r *Renderer) Mount(ctx context.Context, m Markup) (*Tree, error) {
	var logo, qr *Asset

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logo = r.optional(gctx, m.LogoRef)
		return gctx.Err()
	})
	if m.HasQR() {
		g.Go(func() error {
			qr = r.qrCode(gctx, m)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return LayoutReceipt(m, logo, qr, r.Width), nil
}

// optional loads ref, turning any failure into a hidden element.
func (r *Renderer) optional(ctx context.Context, ref string) *Asset {
	if ref == "" || r.Assets == nil {
		return nil
	}
	a, err := r.Assets.Load(ctx, ref)
	if err != nil {
		log.Debug("Receipt image hidden", "ref", ref, "err", err)
		return nil
	}
	return &a
}

func (r *Renderer) qrCode(ctx context.Context, m Markup) *Asset {
	if a := r.optional(ctx, m.QRRef); a != nil {
		return a
	}
	if m.QRPayload == "" {
		return nil
	}
	size := r.QRPixel
	if size <= 0 {
		size = qrSize * 2
	}
	img, err := GenerateQR(m.QRPayload, size)
	if err != nil {
		log.Debug("QR code hidden", "err", err)
		return nil
	}
	return &Asset{Image: img}
}

// Surface is an off-screen render target. It never receives input and is
// never shown; it exists only while checked out of a Scratch.
type Surface struct {
	width   int
	mounter Mounter

	mu       sync.Mutex
	attached bool
	root     *Tree
	err      error
	mounted  chan struct{}
	cancel   context.CancelFunc
}

// Mount starts rendering m into the surface and returns immediately. The
// receipt appears later; watch Mounted for it.
func (s *Surface) Mount(m Markup) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := s.mounted
	s.mu.Unlock()

	go func() {
		tree, err := s.mounter.Mount(ctx, m)
		if err != nil && ctx.Err() == nil {
			log.Warn("Receipt mount failed", "student", m.Student.Name, "err", err)
		}
		s.commit(ctx, done, tree, err)
	}()
}

// commit publishes the mount result unless the mount was torn down in the
// meantime. A failed mount will never produce a root, so it ends the wait too.
func (s *Surface) commit(ctx context.Context, done chan struct{}, tree *Tree, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.mounted != done {
		return
	}
	if err != nil {
		s.err = err
	} else {
		s.root = tree
	}
	close(done)
}

// Err is the error of a mount that failed, if any.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Mounted is closed once the receipt root exists on the surface, or once the
// mount has failed.
func (s *Surface) Mounted() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Root returns the mounted receipt, or nil if nothing is there yet.
func (s *Surface) Root() *Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Width is the fixed layout width of the surface.
func (s *Surface) Width() int {
	return s.width
}

func (s *Surface) attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = true
	s.root = nil
	s.err = nil
	s.mounted = make(chan struct{})
}

// detach unmounts whatever is rendering and drops the tree.
func (s *Surface) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.attached = false
	s.root = nil
	s.err = nil
	s.mounted = nil
}

// Scratch owns the single off-screen surface. Every render checks it out with
// Acquire and hands it back with Release, so no two renders ever share it.
type Scratch struct {
	slot    chan *Surface
	surface *Surface
}

func NewScratch(width int, mounter Mounter) *Scratch {
	s := &Scratch{
		slot:    make(chan *Surface, 1),
		surface: &Surface{width: width, mounter: mounter},
	}
	s.slot <- s.surface
	return s
}

// Acquire blocks until the surface is free, then attaches a fresh container.
func (s *Scratch) Acquire(ctx context.Context) (*Surface, error) {
	select {
	case surf := <-s.slot:
		surf.attach()
		return surf, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release unmounts and removes the container and returns the surface.
func (s *Scratch) Release(surf *Surface) {
	surf.detach()
	s.slot <- surf
}

// Attached reports whether a container is currently in place.
func (s *Scratch) Attached() bool {
	s.surface.mu.Lock()
	defer s.surface.mu.Unlock()
	return s.surface.attached
}
