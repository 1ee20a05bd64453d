package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tuition-receipts-go/handlers"
	"tuition-receipts-go/ledger"
)

var (
	serveAddr   string
	serveLedger string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API and the export worker. Upload a workbook with
POST /api/ledger, then list, toggle, copy and export receipts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveLedger, "ledger", "", "Workbook to load at startup")
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	hub := handlers.NewHub(cfg.Server.AllowedOrigins)
	exports, err := a.orchestrator(hub)
	if err != nil {
		return err
	}
	book := ledger.NewBook(cfg.Layout, a.store)
	if serveLedger != "" {
		if err := loadBook(book, serveLedger); err != nil {
			return err
		}
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewAPIHandler(book, a.store, a.pipeline, a.pdf, exports, a.clipboard, hub)
	h.MaxUpload = cfg.Server.MaxUploadMB << 20

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(h, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exports.Start(gctx)
	})
	g.Go(func() error {
		log.Info("Starting server", "addr", addr, "store", describeStore(cfg), "clipboard", cfg.Clipboard)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadBook(book *ledger.Book, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = book.Load(f, path)
	return err
}
