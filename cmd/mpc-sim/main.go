// mpc-sim runs the follow controller in closed loop against a scripted
// lead vehicle and reports the resulting trajectory as CSV and plots.
// The plant is the same triple-integrator model the solver assumes, so
// the tool exercises the full tick path: warm starting, condensing, QP
// hot starts, and the failure statuses.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	longmpc "github.com/driveplan/longmpc"
	"github.com/driveplan/longmpc/internal/config"
	"github.com/driveplan/longmpc/internal/units"
	"github.com/driveplan/longmpc/internal/version"
)

var (
	scenarioName = flag.String("scenario", "brake", "scenario to run (steady, brake, cutin, stopgo)")
	duration     = flag.Float64("duration", 30.0, "simulated time in seconds")
	tick         = flag.Float64("tick", 0.05, "control tick in seconds")
	timeGap      = flag.Float64("timegap", 0, "following time gap preference in seconds (0 = config default)")
	configPath   = flag.String("config", "", "tuning config JSON path")
	csvPath      = flag.String("csv", "", "write per-tick log to this CSV file")
	plotDir      = flag.String("plots", "", "write PNG plots to this directory")
	speedUnits   = flag.String("units", units.MPS, "speed units for log output (mps, mph, kph)")
	logLevel     = flag.String("log.level", "info", "log level (debug, info, warn, error)")
	showVersion  = flag.Bool("version", false, "print version and exit")
)

var log = logrus.WithField("module", "mpc-sim")

// scenario scripts the lead vehicle and the ego's starting state.
type scenario struct {
	name        string
	egoVelocity float64
	gap         float64
	// lead returns the lead's (position, velocity) at time t given its
	// start position.
	lead func(start, t float64) (float64, float64)
}

func scenarios() map[string]scenario {
	return map[string]scenario{
		// Both stopped near the low-speed gap asymptote.
		"steady": {
			name:        "steady",
			egoVelocity: 0,
			gap:         4,
			lead:        func(start, t float64) (float64, float64) { return start, 0 },
		},
		// Highway following into a hard lead brake: -4 m/s² to rest.
		"brake": {
			name:        "brake",
			egoVelocity: 20,
			gap:         35,
			lead: func(start, t float64) (float64, float64) {
				const v0, decel = 20.0, 4.0
				tStop := v0 / decel
				if t >= tStop {
					return start + v0*tStop/2, 0
				}
				return start + v0*t - decel*t*t/2, v0 - decel*t
			},
		},
		// A slow vehicle cuts in at an unsafe gap.
		"cutin": {
			name:        "cutin",
			egoVelocity: 15,
			gap:         2,
			lead:        func(start, t float64) (float64, float64) { return start + 5*t, 5 },
		},
		// Stop-and-go: lead oscillates between rest and urban speed.
		"stopgo": {
			name:        "stopgo",
			egoVelocity: 0,
			gap:         6,
			lead: func(start, t float64) (float64, float64) {
				const period, vMax = 16.0, 6.0
				phase := 2 * math.Pi * t / period
				v := vMax / 2 * (1 - math.Cos(phase))
				pos := start + vMax/2*(t-period/(2*math.Pi)*math.Sin(phase))
				return pos, v
			},
		},
	}
}

// tickRecord is one row of the simulation log.
type tickRecord struct {
	Time        float64
	EgoPos      float64
	EgoVel      float64
	EgoAccel    float64
	LeadPos     float64
	LeadVel     float64
	Gap         float64
	DesiredGap  float64
	JerkCmd     float64
	Cost        float64
	Status      string
	QPIters     int
	SolveMicros int64
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("mpc-sim %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "15:04:05.000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		logrus.SetLevel(level)
	}

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q, want one of %v", *speedUnits, units.ValidUnits)
	}

	sc, ok := scenarios()[*scenarioName]
	if !ok {
		log.Fatalf("unknown scenario %q", *scenarioName)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	gapPref := tuning.GetTimeGapDefault()
	if *timeGap > 0 {
		gapPref = *timeGap
	}

	ctrl, err := longmpc.NewController(tuning.ControllerConfig())
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	records, err := simulate(ctrl, sc, gapPref, *duration, *tick)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}
	log.Infof("scenario %s finished: %d ticks, final gap %.2f m, final speed %s",
		sc.name, len(records), records[len(records)-1].Gap,
		units.FormatSpeed(records[len(records)-1].EgoVel, *speedUnits))

	if *csvPath != "" {
		if err := writeCSV(*csvPath, records); err != nil {
			log.Fatalf("write csv: %v", err)
		}
		log.Infof("wrote %s", *csvPath)
	}
	if *plotDir != "" {
		if err := writePlots(*plotDir, sc.name, records); err != nil {
			log.Fatalf("write plots: %v", err)
		}
		log.Infof("wrote plots to %s", *plotDir)
	}
}

// simulate runs the closed loop: controller output jerk drives the plant
// for one tick, the lead follows its script, and the next tick re-pins
// the measured state.
func simulate(ctrl *longmpc.Controller, sc scenario, gapPref, duration, dt float64) ([]tickRecord, error) {
	if dt <= 0 || duration <= 0 {
		return nil, fmt.Errorf("duration and tick must be positive")
	}

	ego := struct{ pos, vel, accel float64 }{0, sc.egoVelocity, 0}
	leadStart := sc.gap
	steps := int(duration / dt)
	records := make([]tickRecord, 0, steps)

	var infeasibleTicks, degradedTicks int
	for i := 0; i < steps; i++ {
		t := float64(i) * dt
		leadPos, leadVel := sc.lead(leadStart, t)

		sol := ctrl.RunTick(longmpc.TickInput{
			EgoPosition:  ego.pos,
			EgoVelocity:  ego.vel,
			EgoAccel:     ego.accel,
			LeadPosition: leadPos,
			LeadVelocity: leadVel,
			TimeGap:      gapPref,
		})

		jerk := sol.JerkCommand
		switch sol.Status {
		case longmpc.StatusInfeasible:
			// Conservative fallback: bleed acceleration toward a mild
			// brake rather than trusting the plan.
			infeasibleTicks++
			jerk = fallbackJerk(ego.accel)
		case longmpc.StatusDegraded:
			degradedTicks++
		}

		records = append(records, tickRecord{
			Time:        t,
			EgoPos:      ego.pos,
			EgoVel:      ego.vel,
			EgoAccel:    ego.accel,
			LeadPos:     leadPos,
			LeadVel:     leadVel,
			Gap:         leadPos - ego.pos,
			DesiredGap:  longmpc.DesiredGap(ego.vel, leadVel, gapPref),
			JerkCmd:     jerk,
			Cost:        sol.Cost,
			Status:      sol.Status.String(),
			QPIters:     sol.Stats.QPIterations,
			SolveMicros: sol.Stats.SolveTime.Microseconds(),
		})

		// Plant update: triple integrator under the commanded jerk,
		// velocity floored at zero like a real drivetrain.
		ego.pos += ego.vel*dt + ego.accel*dt*dt/2 + jerk*dt*dt*dt/6
		ego.vel += ego.accel*dt + jerk*dt*dt/2
		ego.accel += jerk * dt
		if ego.vel < 0 {
			ego.vel = 0
			if ego.accel < 0 {
				ego.accel = 0
			}
		}

		if gap := leadPos - ego.pos; gap <= 0 {
			log.Warnf("collision at t=%.2fs (gap %.2f m)", t, gap)
		}
	}

	if infeasibleTicks > 0 || degradedTicks > 0 {
		log.Warnf("%d infeasible and %d degraded ticks", infeasibleTicks, degradedTicks)
	}
	return records, nil
}

// fallbackJerk ramps acceleration toward a gentle braking level when the
// solver reports infeasibility.
func fallbackJerk(accel float64) float64 {
	const targetAccel, rate = -2.0, -2.5
	if accel <= targetAccel {
		return 0
	}
	return rate
}

func writeCSV(path string, records []tickRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"t", "ego_pos", "ego_vel", "ego_accel", "lead_pos", "lead_vel",
		"gap", "desired_gap", "jerk_cmd", "cost", "status", "qp_iters", "solve_us"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			fmt.Sprintf("%.3f", r.Time),
			fmt.Sprintf("%.4f", r.EgoPos),
			fmt.Sprintf("%.4f", r.EgoVel),
			fmt.Sprintf("%.4f", r.EgoAccel),
			fmt.Sprintf("%.4f", r.LeadPos),
			fmt.Sprintf("%.4f", r.LeadVel),
			fmt.Sprintf("%.4f", r.Gap),
			fmt.Sprintf("%.4f", r.DesiredGap),
			fmt.Sprintf("%.5f", r.JerkCmd),
			fmt.Sprintf("%.5f", r.Cost),
			r.Status,
			fmt.Sprintf("%d", r.QPIters),
			fmt.Sprintf("%d", r.SolveMicros),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// writePlots renders gap tracking and the ego speed/acceleration
// profiles.
func writePlots(dir, name string, records []tickRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	gap := make(plotter.XYs, len(records))
	desired := make(plotter.XYs, len(records))
	vel := make(plotter.XYs, len(records))
	leadVel := make(plotter.XYs, len(records))
	accel := make(plotter.XYs, len(records))
	for i, r := range records {
		gap[i] = plotter.XY{X: r.Time, Y: r.Gap}
		desired[i] = plotter.XY{X: r.Time, Y: r.DesiredGap}
		vel[i] = plotter.XY{X: r.Time, Y: r.EgoVel}
		leadVel[i] = plotter.XY{X: r.Time, Y: r.LeadVel}
		accel[i] = plotter.XY{X: r.Time, Y: r.EgoAccel}
	}

	if err := linePlot(filepath.Join(dir, name+"_gap.png"), "Gap tracking", "time (s)", "distance (m)",
		series{"gap", gap}, series{"desired", desired}); err != nil {
		return err
	}
	if err := linePlot(filepath.Join(dir, name+"_speed.png"), "Speed", "time (s)", "speed (m/s)",
		series{"ego", vel}, series{"lead", leadVel}); err != nil {
		return err
	}
	return linePlot(filepath.Join(dir, name+"_accel.png"), "Acceleration", "time (s)", "accel (m/s²)",
		series{"ego", accel})
}

type series struct {
	name string
	xys  plotter.XYs
}

func linePlot(path, title, xLabel, yLabel string, ss ...series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	for i, s := range ss {
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return err
		}
		line.Color = lineColor(i)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

var lineColors = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
}

func lineColor(i int) color.Color {
	return lineColors[i%len(lineColors)]
}
