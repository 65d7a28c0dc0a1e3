package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tabwarden/internal/attention"
	"tabwarden/internal/bridge"
	"tabwarden/internal/browser"
	"tabwarden/internal/cache"
	"tabwarden/internal/config"
	"tabwarden/internal/enforcer"
	"tabwarden/internal/engine"
	"tabwarden/internal/ipc"
	"tabwarden/internal/journal"
	"tabwarden/internal/notify"
	"tabwarden/internal/rollover"
	"tabwarden/internal/session"
	"tabwarden/internal/softblock"
	"tabwarden/internal/store"
)

func main() {
	// check for argument to determine config location
	argPath := config.DefaultPath()
	if len(os.Args) > 1 {
		argPath = os.Args[1]
	}
	log.Println("Using config file at:", argPath)

	cfg, err := config.LoadFromFile(argPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	st := store.NewClient(cfg.Backend.URL, cfg.Backend.APIKey)

	sessions, err := session.NewManager(cfg.Storage.SessionPath, st)
	if err != nil {
		log.Fatal("Failed to initialize session manager:", err)
	}

	domains := cache.New(cfg.Intervals.DomainCacheTTL.Std(), func(ctx context.Context) ([]store.GoalRow, error) {
		pid, err := sessions.ResolveProfileID(ctx)
		if err != nil || pid == "" {
			return nil, fmt.Errorf("no profile resolved: %w", err)
		}
		return st.GoalRows(ctx, sessions.Current().AccessToken, pid)
	})
	sessions.OnChange(domains.Invalidate)

	tabs := browser.NewRegistry()
	timer := softblock.NewTimer()
	accum := attention.NewAccumulator()

	enf := enforcer.New(sessions, st, domains, timer, tabs, accum,
		cfg.Supervisor.URL, cfg.SupervisorPage(), cfg.TimeoutMinutes)

	var recorder attention.FlushRecorder
	jrnl, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		log.Println("Journal unavailable, history disabled:", err)
	} else {
		defer jrnl.Close()
		enf.SetJournal(jrnl)
		recorder = jrnl
	}

	if cfg.Notify.Enabled != nil && *cfg.Notify.Enabled {
		notifier, err := notify.New()
		if err != nil {
			log.Println("Desktop notifications unavailable:", err)
		} else {
			defer notifier.Close()
			enf.SetNotifier(notifier)
		}
	}

	sampler := attention.NewSampler(st, sessions, tabs, accum, recorder,
		cfg.Intervals.RowsRefresh.Std(), cfg.Intervals.Flush.Std())
	resetter := rollover.NewResetter(st, sessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	var wg sync.WaitGroup

	// Start the extension bridge (loopback HTTP)
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv := bridge.NewServer(cfg.Bridge.Listen, sessions, domains, enf, tabs)
		if err := srv.Run(ctx); err != nil {
			log.Println("bridge error:", err)
			cancel()
		}
	}()

	// Start the D-Bus control service (session bus)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Opening session D-Bus service...")
		m := &ipc.Manager{Sessions: sessions, Cache: domains, Enforcer: enf, Timer: timer, Tabs: tabs}
		if err := ipc.Serve(ctx, m); err != nil {
			log.Println("ipc service error:", err)
		}
	}()

	// Start the engine (sampler, countdown, rollover)
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng := engine.NewEngine(enf, timer, sampler, resetter, cfg.Intervals.RolloverCheck.Std())
		if err := eng.Run(ctx); err != nil {
			log.Println("engine error:", err)
		}
	}()

	wg.Wait()
	fmt.Println("Shutdown complete")
}
