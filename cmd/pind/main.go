package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"periph.io/x/conn/v3/physic"

	"github.com/MePride/pin/internal/battery"
	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/config"
	"github.com/MePride/pin/internal/display"
	"github.com/MePride/pin/internal/epd"
	"github.com/MePride/pin/internal/kv"
	appLog "github.com/MePride/pin/internal/log"
	"github.com/MePride/pin/internal/plugin"
	"github.com/MePride/pin/internal/web"
)

const version = "1.0.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	renderOnly bool
}

func main() {
	flags := parseFlags()
	appLog.Info("pind starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_dir", conf.DataDir,
		"active_canvas", conf.ActiveCanvas,
		"refresh_cron", conf.Refresh.Cron,
		"mdns", conf.EnableMDNS,
		"once", flags.once,
		"render_only", flags.renderOnly,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := kv.OpenFile(conf.DataDir)
	if err != nil {
		appLog.Error("failed to open data dir", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}

	// Attach the panel unless running render-only. A missing panel is not
	// fatal: the API still serves canvas CRUD and PNG previews.
	var disp *display.Service
	var dev *epd.Dev
	if !flags.renderOnly {
		opts := epd.FPCA005
		opts.SPIFrequency = physic.Frequency(conf.Panel.SPIHz) * physic.Hertz
		dev, err = epd.Open(conf.Panel.SPIPort, epd.Pins{
			DC:   conf.Panel.DCPin,
			RST:  conf.Panel.ResetPin,
			Busy: conf.Panel.BusyPin,
		}, &opts)
		if err != nil {
			appLog.Error("panel unavailable, continuing render-only", err,
				"spi_port", conf.Panel.SPIPort)
		} else {
			disp, err = display.NewService(dev, display.Policy{
				MaxPartialsBeforeFull: conf.Refresh.MaxPartialsBeforeFull,
			})
			if err != nil {
				appLog.Error("display service init failed", err)
				os.Exit(1)
			}
		}
	}
	if dev != nil {
		defer func() {
			if err := dev.Halt(); err != nil {
				appLog.Error("panel halt failed", err)
			}
		}()
	}

	var cdisp canvas.Display
	if disp != nil {
		cdisp = disp
	}
	mgr := canvas.NewManager(canvas.NewStore(store), cdisp, epd.FPCA005.Width, epd.FPCA005.Height)

	if flags.once {
		runOnce(conf, mgr)
		return
	}

	var sink plugin.WidgetSink
	if disp != nil {
		sink = disp
	}
	plugins := plugin.NewManager(sink)
	if err := plugins.Register(plugin.NewClock(), plugin.ClockRegion(epd.FPCA005.Width)); err != nil {
		appLog.Error("clock plugin registration failed", err)
	}
	plugins.StartAll(ctx)
	defer plugins.StopAll()

	var batt battery.Reader
	switch {
	case conf.Battery.Mock:
		batt = battery.NewMockReader()
	case conf.Battery.I2CBus != "" || conf.Battery.I2CAddr != 0:
		batt = battery.NewI2CReader(conf.Battery.I2CBus, conf.Battery.I2CAddr)
	default:
		batt = battery.DefaultReader()
	}

	var sched *cron.Cron
	if conf.Refresh.Cron != "" && disp != nil {
		sched = cron.New()
		_, err := sched.AddFunc(conf.Refresh.Cron, func() {
			id := conf.ActiveCanvas
			if id == "" {
				return
			}
			if err := mgr.Display(id); err != nil {
				appLog.Error("scheduled refresh failed", err, "canvas", id)
				return
			}
			appLog.Info("scheduled refresh done", "canvas", id)
		})
		if err != nil {
			appLog.Error("invalid refresh cron expression", err, "cron", conf.Refresh.Cron)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	if conf.EnableMDNS {
		shutdown, err := web.Announce(conf.Listen)
		if err != nil {
			appLog.Error("mDNS announcement failed", err)
		} else {
			defer shutdown()
		}
	}

	server := web.NewServer(conf, mgr, disp, plugins, batt)
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	if disp != nil {
		if err := disp.Sleep(); err != nil {
			appLog.Error("panel sleep failed", err)
		}
	}
	appLog.Info("pind exiting")
}

// runOnce pushes the active canvas to the panel a single time and exits,
// for cron-driven or battery-conscious setups that do not want a daemon.
func runOnce(conf *config.Config, mgr *canvas.Manager) {
	id := conf.ActiveCanvas
	if id == "" {
		appLog.Error("no active canvas configured for -once", errors.New("active_canvas is empty"))
		os.Exit(1)
	}
	if err := mgr.Display(id); err != nil {
		appLog.Error("one-shot display failed", err, "canvas", id)
		os.Exit(1)
	}
	appLog.Info("one-shot display done", "canvas", id)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/pind/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Display the active canvas once and exit")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Serve the API without touching display hardware")

	flag.Parse()

	return cfg
}
