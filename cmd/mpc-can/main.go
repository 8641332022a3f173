// mpc-can runs the follow controller against a live (or virtual) CAN
// bus: it consumes radar lead tracks and ego state frames, ticks the
// solver at a fixed rate on the freshest observation, and transmits the
// resulting plan frame. Sensor delivery and the control tick are
// decoupled by a single-slot most-recent-wins buffer so the tick never
// blocks on the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"

	longmpc "github.com/driveplan/longmpc"
	"github.com/driveplan/longmpc/internal/canlink"
	"github.com/driveplan/longmpc/internal/config"
	"github.com/driveplan/longmpc/internal/timeutil"
	"github.com/driveplan/longmpc/internal/version"
)

var (
	iface       = flag.String("iface", "vcan0", "CAN interface name")
	rate        = flag.Float64("rate", 20.0, "control tick rate in Hz")
	configPath  = flag.String("config", "", "tuning config JSON path")
	staleData   = flag.Duration("stale", 500*time.Millisecond, "drop observations older than this")
	logLevel    = flag.String("log.level", "info", "log level (debug, info, warn, error)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

var log = logrus.WithField("module", "mpc-can")

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("mpc-can %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "15:04:05.000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		logrus.SetLevel(level)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctrl, err := longmpc.NewController(tuning.ControllerConfig())
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := canlink.NewSocketCANSource(ctx, *iface)
	if err != nil {
		log.Fatalf("open %s: %v", *iface, err)
	}
	defer src.Close()

	sink, err := canlink.NewSocketCANSink(ctx, *iface)
	if err != nil {
		log.Fatalf("open %s for transmit: %v", *iface, err)
	}
	defer sink.Close()

	frames := canlink.DefaultFrameMap()
	clock := timeutil.RealClock{}
	var latest canlink.Latest

	go func() {
		if err := canlink.Feed(ctx, src, frames, &latest, clock.Now); err != nil && ctx.Err() == nil {
			log.Errorf("feed stopped: %v", err)
			stop()
		}
	}()

	log.Infof("listening on %s, ticking at %.0f Hz", *iface, *rate)
	run(ctx, ctrl, clock, frames, &latest, sink, tuning.GetTimeGapDefault())
}

// run executes the control loop until the context is cancelled. Each
// tick pins the ego state at the origin so the lead position is simply
// the measured gap.
func run(ctx context.Context, ctrl *longmpc.Controller, clock timeutil.Clock, frames *canlink.FrameMap,
	latest *canlink.Latest, sink canlink.FrameSink, defaultTimeGap float64) {

	period := time.Duration(float64(time.Second) / *rate)
	ticker := clock.NewTicker(period)
	defer ticker.Stop()

	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			obs, ok := latest.Load()
			if !ok {
				continue
			}
			if age := now.Sub(obs.Received); age > *staleData {
				log.Debugf("observation stale by %s, skipping tick", age)
				continue
			}

			var elapsed time.Duration
			if !lastTick.IsZero() {
				elapsed = now.Sub(lastTick)
			}
			lastTick = now

			timeGap := obs.TimeGap
			if timeGap <= 0 {
				timeGap = defaultTimeGap
			}

			sol := ctrl.RunTick(longmpc.TickInput{
				EgoPosition:  0,
				EgoVelocity:  obs.EgoSpeed,
				EgoAccel:     obs.EgoAccel,
				LeadPosition: obs.LeadDistance,
				LeadVelocity: obs.LeadSpeed,
				TimeGap:      timeGap,
				Elapsed:      elapsed,
			})

			if sol.Status == longmpc.StatusInfeasible {
				log.Warnf("infeasible tick at gap %.2f m, holding previous plan", obs.LeadDistance)
			}

			frame, err := frames.EncodeFrame("LONG_PLAN", map[string]float64{
				"JERK_CMD":    sol.JerkCommand,
				"ACCEL_PLAN":  sol.Trajectory.Stages[1].State.Accel,
				"PLAN_STATUS": float64(sol.Status),
			})
			if err != nil {
				log.Errorf("encode plan: %v", err)
				continue
			}
			if err := sink.WriteFrame(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Errorf("transmit plan: %v", err)
			}
		}
	}
}
