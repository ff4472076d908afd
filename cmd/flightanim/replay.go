package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/Changplay12345/flight-animation/internal/config"
	db "github.com/Changplay12345/flight-animation/internal/database"
	"github.com/Changplay12345/flight-animation/internal/dispatcher"
	"github.com/Changplay12345/flight-animation/internal/engine"
	"github.com/Changplay12345/flight-animation/internal/influx"
	"github.com/Changplay12345/flight-animation/internal/logging"
	"github.com/Changplay12345/flight-animation/internal/monitor"
	"github.com/Changplay12345/flight-animation/internal/render"
	"github.com/Changplay12345/flight-animation/internal/store"
	"github.com/Changplay12345/flight-animation/internal/trail"
)

// replayCommands maps interactive input verbs to dispatcher commands.
var replayCommands = map[string]string{
	"play":    "playback:play",
	"pause":   "playback:pause",
	"seek":    "playback:seek",
	"rewind":  "playback:rewind",
	"speed":   "playback:speed",
	"show":    "filter:visible",
	"all":     "filter:all",
	"invert":  "filter:invert",
	"filter":  "filter:apply",
	"airport": "filter:airport",
	"clear":   "filter:clear",
	"rotate":  "view:rotate",
}

// readCommands routes stdin lines through the command dispatcher until the
// replay ends or the user quits.
func readCommands(ctx context.Context, cancel context.CancelFunc, d *dispatcher.Dispatcher) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		verb := strings.ToLower(fields[0])
		if verb == "quit" || verb == "exit" {
			cancel()
			return
		}
		command, ok := replayCommands[verb]
		if !ok {
			fmt.Printf("unknown command %q\n", verb)
			continue
		}
		if _, err := d.Dispatch(dispatcher.NewEvent(command, fields[1:]...)); err != nil {
			fmt.Printf("%v\n", err)
		}
	}
}

// runReplay loads a dataset and animates it headless against an in-memory
// surface, reporting frame statistics until the timeline ends or the
// process is interrupted.
func runReplay(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: replay <name> [speed]")
	}
	name := args[0]

	speed := 1.0
	if len(args) > 1 {
		s, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad speed %q: %w", args[1], err)
		}
		speed = s
	}

	info, err := findDatasetInfo(name)
	if err != nil {
		return err
	}
	records, err := storageBackend.LoadSamples(name)
	if err != nil {
		return err
	}

	loadStart := time.Now()
	st, summary := store.Load(records)
	Logger.Info("Dataset loaded",
		"dataset", name,
		"objects", st.Len(),
		"samples", st.Extrema().TotalSampleCount,
		"droppedSamples", summary.DroppedSamples,
		"droppedObjects", summary.DroppedObjects,
		"duration", time.Since(loadStart))
	sessionCtx.SetDataset(info)
	defer sessionCtx.Clear()

	pc := config.GetPlaybackConfig()
	renderer, err := render.New(render.NewMemorySurface(), Logger, render.Config{
		MarkerHz:  pc.MarkerHz,
		TrailHz:   pc.TrailHz,
		GraceMs:   pc.GraceMs,
		DecayMs:   pc.DecayMs,
		TrailMode: trail.ModeDecay,
	})
	if err != nil {
		return fmt.Errorf("creating render dispatcher: %w", err)
	}

	eng := engine.New(st, renderer, Logger, engine.Config{
		Speeds:        pc.Speeds,
		TimelinePadMs: pc.TimelinePadMs,
		TickHz:        pc.MarkerHz,
	})

	var influxManager *influx.Manager
	if viper.GetBool("influx.enabled") {
		influxManager = influx.NewManager(ZLogger,
			filepath.Join(viper.GetString("logsDir"), "influx_backup.gz"))
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, frame metrics disabled", "error", err)
			influxManager = nil
		}
	}

	var perfDB *gorm.DB
	if config.GetStorageConfig().Type == "postgres" {
		perfDB = connectPerfDB()
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		DB:              perfDB,
		LogManager:      LogManager,
		Session:         sessionCtx,
		Engine:          eng,
		Influx:          influxManager,
		StatusDir:       viper.GetString("logsDir"),
		IsDatabaseValid: func() bool { return perfDB != nil },
	})
	monitorService.Start()
	defer monitorService.Stop()

	dispatcherLogger := logging.NewDispatcherLogger(ZLogger)
	commandDispatcher, err := dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("creating command dispatcher: %w", err)
	}
	eng.RegisterHandlers(commandDispatcher)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go readCommands(ctx, cancel, commandDispatcher)

	fmt.Println("Interactive: play pause seek <ms> rewind speed <x> show <key> <bool> all <bool> invert filter <keys...> airport <code> clear rotate <deg> quit")

	eng.SetSpeed(speed)
	eng.Play()

	// Cancel the frame loop once playback runs off the end of the timeline.
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := eng.Snapshot()
				if !snap.Playing && snap.Timeline.CurrentMs >= snap.Timeline.EndMs {
					Logger.Info("Playback reached timeline end")
					cancel()
					return
				}
			}
		}
	}()

	eng.Run(ctx)

	snap := eng.Snapshot()
	fmt.Printf("Replayed %s: %d frames, %d marker moves, %d segment deltas\n",
		name, snap.Frames, snap.MarkerMoves, snap.SegmentDeltas)
	return nil
}

// connectPerfDB connects the database for performance rows, or returns nil
// when no database is reachable. Replay must not fail over a metrics sink.
func connectPerfDB() *gorm.DB {
	m := db.NewManager(ZLogger)
	if err := m.Connect(); err != nil {
		Logger.Warn("Database unavailable, performance rows disabled", "error", err)
		return nil
	}
	dbManager = m
	return m.DB
}
