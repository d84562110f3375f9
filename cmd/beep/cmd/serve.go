// cmd/beep/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/potentiostat/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the instrument over HTTP",
	Long: `Serve the HTTP control surface:

  GET  /modes                 techniques
  GET  /modes/{mode}          parameters of one technique
  POST /measurements          run a measurement (?wait=false to start it in the background)
  POST /measurements/cancel   cancel the running measurement
  GET  /status                live run state
  GET  /last                  path of the most recent output
  GET  /last/file             the most recent CSV`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if listenAddr != "" {
		addr = listenAddr
	}

	c, release, err := openController()
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := server.New(ctx, c)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Println("now listening for requests at", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		c.Cancel()
		api.Wait()
		return err
	case <-ctx.Done():
	}

	log.Printf("beep: shutting down")
	c.Cancel()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutCtx)

	// the port stays open until background runs have switched the cell off
	api.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
