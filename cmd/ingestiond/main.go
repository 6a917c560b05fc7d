// Command ingestiond runs the ingestion core as a standalone process: it
// wires every connector, the event pipeline, and the HTTP surface together
// and serves until told to stop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quayside-soc/ingestcore/internal/bootstrap"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

func main() {
	connectorFile := flag.String("connectors", os.Getenv("INGESTCORE_CONNECTOR_FILE"), "path to a YAML file of static connector definitions")
	agentSecret := flag.String("agent-secret", os.Getenv("INGESTCORE_AGENT_SECRET"), "HMAC secret agent bearer tokens are signed with")
	flag.Parse()

	cfg, err := core.NewConfig()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("received shutdown signal, draining...")
		cancel()
	}()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		ConnectorFile: *connectorFile,
		AgentSecret:   []byte(*agentSecret),
	})
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}

	errCh := make(chan error, 1)
	if err := app.Start(ctx, errCh); err != nil {
		log.Fatalf("start failed: %v", err)
	}

	log.Printf("ingestcore listening on :%d", cfg.Port)

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Printf("server error: %v", err)
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
		exitCode = 1
	}

	log.Println("ingestcore stopped")
	os.Exit(exitCode)
}
