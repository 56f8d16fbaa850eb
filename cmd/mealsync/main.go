package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mealsync/internal/config"
	"mealsync/internal/coordinator"
	"mealsync/internal/database"
	"mealsync/internal/history"
	"mealsync/internal/offline"
	"mealsync/internal/prefs"
	"mealsync/internal/remote"
	"mealsync/internal/shopping"
	"mealsync/internal/syncqueue"
)

func main() {
	week := flag.String("week", "", "week to operate on (YYYY-MM-DD, any day of the week)")
	household := flag.Int("household", 0, "household size override for scaling")
	offlineMode := flag.Bool("offline", false, "skip remote calls, operate on local state only")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		// The store degrades to memory-only; keep going.
		log.Warn("local database unavailable, continuing memory-only", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	store := offline.NewStore(db, log, cfg.MaxStorageBytes)

	deviceID, err := store.DeviceID(ctx)
	if err != nil {
		log.Error("failed to resolve device identity", "error", err)
		os.Exit(1)
	}

	client := remote.NewClient(cfg.APIBaseURL, []byte(cfg.SyncSigningKey), deviceID)
	manager := syncqueue.NewManager(store, client, syncqueue.DefaultBackoff, log)
	manager.SetOnline(ctx, !*offlineMode)

	service := offline.NewService(store, manager, log)
	if err := service.Initialize(ctx); err != nil {
		log.Error("failed to initialize offline service", "error", err)
		os.Exit(1)
	}

	hist := history.New(history.DefaultMaxSize)
	coord := coordinator.New(client, store, hist, log)

	aisles, err := config.LoadAisleOrder(cfg.AisleOrderPath)
	if err != nil {
		log.Error("failed to load aisle order", "error", err)
		os.Exit(1)
	}
	generator := shopping.NewGenerator(aisles)

	householdSize := cfg.HouseholdSize
	if *household > 0 {
		householdSize = *household
	}
	p := prefs.Normalize(prefs.Preferences{HouseholdSize: householdSize})
	if err := prefs.NewValidator().Validate(p); err != nil {
		log.Error("invalid household size", "error", err)
		os.Exit(1)
	}

	weekStart := time.Now()
	if *week != "" {
		weekStart, err = time.ParseInLocation("2006-01-02", *week, time.UTC)
		if err != nil {
			log.Error("invalid -week value", "value", *week, "error", err)
			os.Exit(1)
		}
	}

	switch flag.Arg(0) {
	case "generate":
		err = runGenerate(ctx, coord, generator, service, cfg.UserID, weekStart, p.HouseholdSize)
	case "sync":
		err = runSync(ctx, service)
	case "status":
		err = runStatus(ctx, service)
	case "dedupe":
		err = runDedupe(ctx, store)
	default:
		fmt.Fprintln(os.Stderr, "usage: mealsync [flags] generate|sync|status|dedupe")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, coord *coordinator.Coordinator, gen *shopping.Generator, svc *offline.Service, userID string, week time.Time, householdSize int) error {
	mealPlan, err := coord.Load(ctx, userID, week)
	if err != nil {
		return err
	}

	list, err := gen.GenerateFromMealPlan(mealPlan, householdSize)
	if err != nil {
		return err
	}
	if list.IsEmpty() {
		fmt.Println("Nothing to shop for: no meals assigned this week.")
		return nil
	}

	entry, err := svc.StoreShoppingList(ctx, list, mealPlan.ID, mealPlan.WeekStart)
	if err != nil {
		return err
	}

	fmt.Printf("Shopping list for week of %s (%d items):\n",
		mealPlan.WeekStart.Format("Jan 2"), list.ItemCount())
	for _, category := range list.CategoryOrder(gen.Aisles()) {
		fmt.Printf("\n%s\n", category)
		for _, item := range list[category] {
			fmt.Printf("  %s %s\n", item.Quantity, item.Name)
		}
	}
	fmt.Printf("\nStored as %s (version %d, %s)\n",
		entry.Metadata.ID, entry.Metadata.Version, entry.Metadata.SyncStatus)
	return nil
}

func runSync(ctx context.Context, svc *offline.Service) error {
	summary, err := svc.TriggerManualSync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d/%d operations, %d conflicts\n",
		summary.SuccessfulOperations, summary.TotalOperations, summary.Conflicts)
	return nil
}

func runStatus(ctx context.Context, svc *offline.Service) error {
	state, err := svc.GetSyncStatus(ctx)
	if err != nil {
		return err
	}
	usage, err := svc.GetStorageUsage(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Device:    %s\n", state.DeviceID)
	fmt.Printf("Lists:     %d pending, %d synced, %d in conflict\n",
		state.Pending, state.Synced, state.Conflicts)
	fmt.Printf("Queue:     %d operations\n", state.Queued)
	fmt.Printf("Storage:   %s (%.1f%%)\n", usage.Display, usage.Percent)
	if usage.NeedsCleanup() {
		fmt.Println("Storage is over the cleanup threshold; old synced lists will be evicted.")
	}
	return nil
}

func runDedupe(ctx context.Context, store *offline.Store) error {
	removed, err := store.RemoveDuplicates(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d duplicate shopping lists\n", removed)
	return nil
}
