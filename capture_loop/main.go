package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"debris-capture-core/utils"
)

func main() {
	var (
		cfgPath  = flag.String("config", "config/mission.yaml", "Mission configuration YAML")
		scenPath = flag.String("scenario", "capture_loop/leo_single_target.json", "Scenario JSON file")
		iface    = flag.String("iface", "vcan0", "SocketCAN interface name (bus mode)")
		mapPath  = flag.String("map", "", "Optional bus map CSV overriding the built-in catalog")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("capture_loop.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open capture_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	rc := RunnerConfig{
		ConfigPath:   *cfgPath,
		ScenarioPath: *scenPath,
		Interface:    *iface,
		MapPath:      *mapPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, rc, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
