package main

import (
	"context"
	"log"

	"ai-citation-be/internal/bootstrap"
	"ai-citation-be/internal/config"
	"ai-citation-be/internal/server"
	"ai-citation-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Shutdown(context.Background())

	// 3. Start Background Services
	go func() {
		log.Println("Background: Starting index registration consumer...")
		if err := container.RegistrationConsumer.Consume(context.Background()); err != nil {
			log.Printf("Background consumer error: %v", err)
		}
	}()
	go container.Registry.RunFlusher(context.Background(), cfg.Reaper.FlushInterval)

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
