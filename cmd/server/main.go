package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mugo2m/hugos-ai-interview/internal/auth"
	"github.com/mugo2m/hugos-ai-interview/internal/config"
	"github.com/mugo2m/hugos-ai-interview/internal/httpserver"
	"github.com/mugo2m/hugos-ai-interview/internal/llm"
	"github.com/mugo2m/hugos-ai-interview/internal/phone"
	"github.com/mugo2m/hugos-ai-interview/internal/prompts"
	"github.com/mugo2m/hugos-ai-interview/internal/store"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	library, err := prompts.Load(cfg.TemplatesPath)
	if err != nil {
		log.Printf("templates: %v, using built-in defaults", err)
		library = prompts.Defaults()
	}

	var recordStore store.RecordStore
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		sb, serr := store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
		if serr != nil {
			log.Fatalf("supabase store: %v", serr)
		}
		recordStore = sb
	} else {
		log.Printf("store: running in-memory, records will not survive a restart")
		recordStore = store.NewMemory()
	}

	var identity auth.Identity
	if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
		identity = auth.NewSupabaseIdentity(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	} else {
		log.Printf("auth: no identity provider configured, every token maps to %s", cfg.DevUserID)
		identity = &auth.Static{UserID: cfg.DevUserID}
	}

	model := llm.NewClient(cfg.CerebrasKey, cfg.CerebrasModelID)

	srv := httpserver.New(httpserver.Deps{
		Store:         recordStore,
		Identity:      identity,
		Questions:     model,
		Scorer:        model,
		Library:       library,
		AssemblyAIKey: cfg.AssemblyAIKey,
		DeepgramKey:   cfg.DeepgramKey,
		DeepgramModel: cfg.DeepgramModel,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		phoneSvc := phone.New(phone.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
		}, recordStore, model, library.Categories)
		srv.RegisterPhone(phoneSvc)
		log.Printf("phone channel enabled")
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
