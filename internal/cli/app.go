package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/cache"
	"github.com/birbparty/shelf/internal/config"
	"github.com/birbparty/shelf/internal/events"
	"github.com/birbparty/shelf/internal/telemetry"
	"github.com/birbparty/shelf/sdk"
)

// startLocation is where a command line run starts. It is never the login
// path, so calls needing a session without one are rejected up front.
const startLocation = "/products"

// App holds what the commands share for one run
type App struct {
	Config  *config.Config
	Client  sdk.Client
	Metrics *telemetry.Metrics
	Logger  *logrus.Logger

	store     cache.Store
	bus       *events.Client
	navigator *events.Navigator
	telemetry *telemetry.Config
	opts      *options

	out    io.Writer
	errOut io.Writer
}

// Open loads the configuration and connects the client, the session backend
// and, when configured, NATS
func (a *App) Open(ctx context.Context, opts *options, out, errOut io.Writer) error {
	a.opts = opts
	a.out = out
	a.errOut = errOut

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	a.Config = cfg

	tcfg := telemetry.QuietConfig()
	if opts.debug {
		tcfg.LogLevel = "debug"
	}
	if cfg.PushgatewayURL != "" {
		tcfg.PushgatewayURL = cfg.PushgatewayURL
	}
	a.telemetry = tcfg
	if err := telemetry.Init(tcfg); err != nil {
		return err
	}
	a.Logger = telemetry.NewLogger(tcfg, errOut)
	a.Metrics = telemetry.DefaultMetrics()

	a.store, err = cache.Open(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	metricsObserver, err := telemetry.NewObserver(a.Metrics, nil, a.Logger)
	if err != nil {
		return err
	}
	observers := []sdk.Observer{metricsObserver}

	var navigator sdk.Navigator
	if cfg.NATSURL != "" {
		if err := a.connectBus(cfg.NATSURL); err != nil {
			return err
		}
		navigator = a.navigator
		observers = append(observers, events.NewSessionObserver(events.NewPublisher(a.bus)))
	} else {
		history := sdk.NewHistoryNavigator(startLocation)
		history.OnNavigate = func(target string) {
			fmt.Fprintf(a.errOut, "Not signed in. Run `shelf login` first (redirected to %s).\n", target)
		}
		navigator = history
	}

	a.Client, err = sdk.NewClient(cfg.SDKConfig().
		WithSessionBackend(a.store).
		WithNavigator(navigator).
		WithObserver(sdk.NewCompositeObserver(observers...)).
		WithLogger(a.Logger).
		WithTracer(telemetry.Tracer()))
	if err != nil {
		return err
	}
	return nil
}

func (a *App) connectBus(url string) error {
	ecfg, err := events.NewConfigFromEnv()
	if err != nil {
		return err
	}
	ecfg.URL = url

	a.bus, err = events.NewClient(ecfg, a.Logger)
	if err != nil {
		return err
	}
	a.navigator, err = events.NewNavigator(a.bus, startLocation)
	return err
}

// Close pushes metrics when asked and releases every connection
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.opts != nil && a.opts.push && a.Metrics != nil {
		if err := a.Metrics.Push(ctx, a.telemetry.PushgatewayURL, a.telemetry.PushJob); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Client != nil {
		errs = append(errs, a.Client.Close())
	}
	if a.navigator != nil {
		errs = append(errs, a.navigator.Close())
	}
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
