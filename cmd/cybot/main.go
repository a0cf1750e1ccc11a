package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/cybot/internal/config"
	"github.com/banshee-data/cybot/internal/hardware"
	"github.com/banshee-data/cybot/internal/journal"
	"github.com/banshee-data/cybot/internal/nav"
	"github.com/banshee-data/cybot/internal/scanplot"
	"github.com/banshee-data/cybot/internal/serialmux"
	"github.com/banshee-data/cybot/internal/timeutil"
	"github.com/banshee-data/cybot/internal/version"
)

var (
	configPath   = flag.String("config", "", "Robot config JSON (built-in defaults when empty)")
	operatorPort = flag.String("operator-port", "/dev/ttyUSB0", "Serial port of the operator link (ignored in dev mode)")
	boardPort    = flag.String("board-port", "/dev/ttyACM0", "Serial port of the sensor board (ignored in dev mode)")
	devMode      = flag.Bool("dev", false, "Operator on stdin/stdout and a simulated robot")
	worldPath    = flag.String("world", "", "JSON list of obstacles for the simulated robot (dev mode)")
	dbPath       = flag.String("db", "", "Journal database; no journal when empty")
	listen       = flag.String("listen", "", "Debug HTTP listen address, e.g. localhost:8080")
	plotDir      = flag.String("plot-dir", "", "Directory to save a PNG of every sweep")
	showVersion  = flag.Bool("version", false, "Print the build and exit")
)

// defaultWorld is a small test pen: two thin posts and a wide drum.
var defaultWorld = []hardware.Obstacle{
	{X: 60, Y: 10, Radius: 3},
	{X: 20, Y: 80, Radius: 5},
	{X: -40, Y: 50, Radius: 15},
}

// link is a serial mux main supervises.
type link interface {
	Monitor(ctx context.Context) error
	Close() error
	AttachAdminRoutes(mux *http.ServeMux)
}

// robot is everything the controller drives, real or simulated.
type robot struct {
	operator hardware.TokenLink
	sensors  hardware.Sensors
	base     hardware.Base
	links    []link
	closers  []io.Closer
}

func (r *robot) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	for _, l := range r.links {
		if err := l.Close(); err != nil {
			log.Printf("close link: %v", err)
		}
	}
}

func operatorOptions() []serialmux.Option {
	return []serialmux.Option{
		serialmux.WithName("operator"),
		serialmux.WithSplit(bufio.ScanRunes),
		serialmux.WithLineEnding("\r\n"),
	}
}

func devRobot(rc *config.RobotConfig, clock timeutil.Clock) (*robot, error) {
	world := defaultWorld
	if *worldPath != "" {
		data, err := os.ReadFile(*worldPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &world); err != nil {
			return nil, err
		}
	}
	sim := hardware.NewSim(clock, hardware.SimOptions{
		Obstacles:   world,
		ServoSettle: rc.GetServoSettle(),
	})
	op := serialmux.NewSerialMux(serialmux.NewStdioPort(), operatorOptions()...)
	log.Printf("dev mode: simulated robot among %d obstacles", len(world))
	return &robot{
		operator: op,
		sensors:  sim,
		base:     sim,
		links:    []link{op},
	}, nil
}

func realRobot(rc *config.RobotConfig, clock timeutil.Clock) (*robot, error) {
	if *operatorPort == "" || *boardPort == "" {
		return nil, errors.New("operator and board ports are required")
	}
	op, err := serialmux.NewRealSerialMux(*operatorPort, rc.GetOperatorSerial(), operatorOptions()...)
	if err != nil {
		return nil, err
	}
	boardLink, err := serialmux.NewRealSerialMux(*boardPort, rc.GetBoardSerial(), serialmux.WithName("board"))
	if err != nil {
		op.Close()
		return nil, err
	}
	board := hardware.NewBoard(boardLink, clock, hardware.BoardOptions{
		Servo: hardware.ServoCalibration{
			RightMatch: rc.GetServoRightMatch(),
			LeftMatch:  rc.GetServoLeftMatch(),
		},
		ServoSettle:    rc.GetServoSettle(),
		RangingTimeout: rc.GetRangingTimeout(),
		CommandTimeout: rc.GetBoardTimeout(),
	})
	log.Printf("operator on %s, board on %s", *operatorPort, *boardPort)
	return &robot{
		operator: op,
		sensors:  board,
		base:     board,
		links:    []link{op, boardLink},
		closers:  []io.Closer{board},
	}, nil
}

// runNote is stored with each journal run: the build and the config in force.
func runNote(rc *config.RobotConfig) string {
	cfg, err := json.Marshal(rc)
	if err != nil {
		cfg = []byte("{}")
	}
	return fmt.Sprintf(`{"version": %q, "config": %s}`, version.String(), cfg)
}

// Main
func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	rc := config.EmptyRobotConfig()
	if *configPath != "" {
		var err error
		if rc, err = config.LoadRobotConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	clock := timeutil.RealClock{}

	var (
		bot *robot
		err error
	)
	if *devMode {
		bot, err = devRobot(rc, clock)
	} else {
		bot, err = realRobot(rc, clock)
	}
	if err != nil {
		log.Fatalf("failed to set up robot: %v", err)
	}
	defer bot.Close()

	// subscribe before the monitors start so no keystroke is missed
	console := hardware.NewConsole(bot.operator)
	defer console.Close()

	deps := nav.Deps{
		Operator: console,
		Sensors:  bot.sensors,
		Base:     bot.base,
		Clock:    clock,
	}

	var jnl *journal.Journal
	if *dbPath != "" {
		jnl, err = journal.Open(*dbPath, clock)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer jnl.Close()
		if _, err := jnl.StartRun(context.Background(), runNote(rc)); err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		deps.Recorder = jnl
	}
	if *plotDir != "" {
		plotter, err := scanplot.NewDirPlotter(*plotDir, clock)
		if err != nil {
			log.Fatalf("failed to create plot directory: %v", err)
		}
		deps.Plotter = plotter
	}

	controller, err := nav.New(deps, nav.ConfigFromRobot(rc))
	if err != nil {
		log.Fatalf("failed to create controller: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routines to manage IO on the serial links
	for _, l := range bot.links {
		wg.Add(1)
		go func(l link) {
			defer wg.Done()
			if err := l.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial link: %v", err)
			}
			// a dead link leaves the robot unusable
			stop()
		}(l)
	}

	// HTTP server goroutine
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			tsweb.Debugger(mux).KV("version", version.String())
			controller.AttachAdminRoutes(mux)
			for _, l := range bot.links {
				l.AttachAdminRoutes(mux)
			}
			if jnl != nil {
				if err := jnl.AttachAdminRoutes(mux); err != nil {
					log.Printf("journal admin routes: %v", err)
				}
			}

			server := &http.Server{
				Addr:    *listen,
				Handler: mux,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("failed to shutdown server gracefully: %v", err)
			}
		}()
	}

	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("controller stopped: %v", err)
	}
	stop()
	wg.Wait()
	log.Printf("graceful shutdown complete")
}
