// Package main implements crewmark, the terminal front end of the crew
// attendance client. It drives the same stores and flows a graphical shell
// would: session management, event browsing, attendance marking and
// attendance-log views.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/capture"
	"github.com/crewmark/attendance-client/internal/app/domain/event"
	"github.com/crewmark/attendance-client/internal/app/flow"
	"github.com/crewmark/attendance-client/internal/app/metrics"
	"github.com/crewmark/attendance-client/internal/app/refresh"
	authsvc "github.com/crewmark/attendance-client/internal/app/services/auth"
	"github.com/crewmark/attendance-client/internal/app/services/crewdir"
	eventsvc "github.com/crewmark/attendance-client/internal/app/services/events"
	"github.com/crewmark/attendance-client/internal/app/services/facial"
	markssvc "github.com/crewmark/attendance-client/internal/app/services/marks"
	"github.com/crewmark/attendance-client/internal/app/services/reports"
	authstate "github.com/crewmark/attendance-client/internal/app/state/auth"
	eventstate "github.com/crewmark/attendance-client/internal/app/state/events"
	"github.com/crewmark/attendance-client/internal/app/state/marklog"
	"github.com/crewmark/attendance-client/internal/config"
	"github.com/crewmark/attendance-client/internal/keystore"
	"github.com/crewmark/attendance-client/pkg/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: crewmark [flags] <command> [args]

Commands:
  login <crew-id> <pin>      establish a session
  logout                     clear the session
  whoami                     show the current profile
  events                     list events (-active, -filter, -more)
  event <id>                 show one event
  roster <id>                show the roster of an event
  mark <event-id>            mark attendance (-photo required)
  marks                      recent marks (-today, -event, -crew, -limit)
  search <query>             search crew members
  stats                      dashboard statistics
  report                     reporting statistics
  health                     backend health probe
  watch                      keep refreshing in the foreground (-spec)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		photoPath  = flag.String("photo", "", "Photo file for mark command")
		activeOnly = flag.Bool("active", false, "Only active events")
		keyword    = flag.String("filter", "", "Event keyword filter")
		loadMore   = flag.Bool("more", false, "Load a second page of events")
		today      = flag.Bool("today", false, "Today's marks")
		eventID    = flag.Int("event", 0, "Marks for one event")
		crewID     = flag.String("crew", "", "Marks for one crew member")
		limit      = flag.Int("limit", 0, "Result limit")
		spec       = flag.String("spec", "", "Refresh cron spec for watch (default from config)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := flag.Args()
	if err := app.run(ctx, args[0], args[1:], cmdOptions{
		photo:      *photoPath,
		activeOnly: *activeOnly,
		keyword:    *keyword,
		loadMore:   *loadMore,
		today:      *today,
		eventID:    *eventID,
		crewID:     *crewID,
		limit:      *limit,
		spec:       *spec,
	}); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

type cmdOptions struct {
	photo      string
	activeOnly bool
	keyword    string
	loadMore   bool
	today      bool
	eventID    int
	crewID     string
	limit      int
	spec       string
}

type app struct {
	cfg      config.Config
	log      *logger.Logger
	keys     *keystore.Store
	events   *eventstate.Store
	auth     *authstate.Store
	marks    *marklog.Store
	crew     *crewdir.Service
	reports  *reports.Service
	flow     *flow.Coordinator
	registry *capture.Registry

	// photo is the -photo flag, consumed by Launch when the mark command
	// hands control to the stand-in capture screen.
	photo string
}

func newApp(cfg config.Config) (*app, error) {
	lg := logger.NewDefault("crewmark")

	keys, err := keystore.Open(cfg.KeystorePath, cfg.KeystoreSecret)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL:           cfg.APIBaseURL,
		Tokens:            keys,
		Timeout:           cfg.RequestTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            lg,
	})
	if err != nil {
		return nil, err
	}

	facialSvc := facial.New(client)
	eventSvc := eventsvc.New(client)
	eventStore := eventstate.New(eventSvc, facialSvc, nil)
	authStore := authstate.New(authsvc.New(client), keys, nil)
	registry := capture.NewRegistry(0, 0, nil)

	a := &app{
		cfg:      cfg,
		log:      lg,
		keys:     keys,
		events:   eventStore,
		auth:     authStore,
		marks:    marklog.New(markssvc.New(client), nil),
		crew:     crewdir.New(client),
		reports:  reports.New(client),
		registry: registry,
	}

	a.flow = flow.New(
		registry,
		flow.PermissionCheckerFunc(func(context.Context) bool { return true }),
		a, // the CLI capture screen hands over the -photo file
		fileLoader{},
		facialSvc,
		eventStore,
		lg,
	)
	return a, nil
}

// Launch stands in for the capture screen: it completes the registry entry
// with the photo file given on the command line, or cancels it when none
// was given (the user backed out).
func (a *app) Launch(_ context.Context, requestID string) error {
	if a.photo == "" {
		a.registry.Cancel(requestID)
		return nil
	}
	a.registry.Complete(requestID, capture.Result{PhotoURI: a.photo})
	return nil
}

type fileLoader struct{}

func (fileLoader) Load(uri string) ([]byte, string, error) {
	content, err := os.ReadFile(uri)
	if err != nil {
		return nil, "", fmt.Errorf("read photo %s: %w", uri, err)
	}
	return content, filepath.Base(uri), nil
}

func (a *app) run(ctx context.Context, command string, args []string, opts cmdOptions) error {
	// Session hydration before anything that talks to the backend.
	if command != "login" && command != "health" {
		if err := a.auth.InitAuth(ctx); err != nil {
			a.log.WithError(err).Warn("session hydration failed")
		}
	}

	switch command {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <crew-id> <pin>")
		}
		if err := a.auth.Login(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("%s", a.auth.Error())
		}
		fmt.Printf("Sesión iniciada: %s\n", a.auth.User().DisplayName())
		return nil

	case "logout":
		a.auth.Logout(ctx)
		fmt.Println("Sesión cerrada.")
		return nil

	case "whoami":
		if !a.auth.IsAuthenticated() {
			return fmt.Errorf("no active session")
		}
		user := a.auth.User()
		fmt.Printf("%s (tripulante %s)\n", user.DisplayName(), user.CrewID())
		return nil

	case "events":
		filter := eventsvc.Filter{ActiveOnly: opts.activeOnly, Keyword: opts.keyword}
		if err := a.events.SetFilter(ctx, filter); err != nil {
			return err
		}
		if len(a.events.Events()) == 0 {
			if err := a.events.Load(ctx, true); err != nil {
				return err
			}
		}
		if opts.loadMore {
			if err := a.events.LoadMore(ctx); err != nil {
				return err
			}
		}
		for _, ev := range a.events.Events() {
			printEvent(ev)
		}
		if a.events.HasMore() {
			fmt.Println("… (use -more for the next page)")
		}
		return nil

	case "event":
		id, err := argInt(args, "event id")
		if err != nil {
			return err
		}
		if err := a.events.LoadEvent(ctx, id); err != nil {
			return err
		}
		detail := a.events.Current()
		if detail == nil {
			return fmt.Errorf("event %d not loaded", id)
		}
		printEvent(detail.Event)
		if detail.Address != "" {
			fmt.Printf("  Dirección: %s\n", detail.Address)
		}
		for _, req := range detail.Requirements {
			fmt.Printf("  Requisito: %s\n", req)
		}
		return nil

	case "roster":
		id, err := argInt(args, "event id")
		if err != nil {
			return err
		}
		if err := a.events.LoadPlanification(ctx, id); err != nil {
			return err
		}
		plan := a.events.Planification()
		if plan == nil {
			return fmt.Errorf("planification for event %d not loaded", id)
		}
		fmt.Printf("Evento %d: %d asignados\n", plan.EventID, plan.TotalAssigned)
		for _, entry := range plan.Crew {
			printRosterEntry(entry)
		}
		return nil

	case "mark":
		id, err := argInt(args, "event id")
		if err != nil {
			return err
		}
		a.photo = opts.photo
		outcome, err := a.flow.MarkAttendance(ctx, id)
		if outcome.Message != "" {
			fmt.Println(outcome.Message)
		}
		if err != nil && !outcome.Success {
			return err
		}
		return nil

	case "marks":
		var err error
		switch {
		case opts.today:
			err = a.marks.LoadToday(ctx)
		case opts.eventID != 0:
			err = a.marks.LoadByEvent(ctx, opts.eventID)
		case opts.crewID != "":
			err = a.marks.LoadByCrew(ctx, opts.crewID, opts.limit)
		default:
			err = a.marks.LoadRecent(ctx, opts.limit)
		}
		if err != nil {
			return err
		}
		for _, m := range a.marks.Marks() {
			fmt.Printf("%s %s  %-7s  %-12s %s\n", m.Date, m.Time, m.Kind, m.CrewID, m.EventName)
		}
		return nil

	case "search":
		if len(args) != 1 {
			return fmt.Errorf("usage: search <query>")
		}
		members, err := a.crew.Search(ctx, args[0])
		if err != nil {
			return err
		}
		for _, m := range members {
			status := "inactivo"
			if m.Active {
				status = "activo"
			}
			fmt.Printf("%-12s %-30s %-20s %s\n", m.CrewID, m.FullName(), m.Role, status)
		}
		return nil

	case "stats":
		stats, err := a.reports.Dashboard(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Eventos: %d (%d activos)\n", stats.TotalEvents, stats.ActiveEvents)
		fmt.Printf("Tripulantes: %d (%d con rostro registrado)\n", stats.TotalCrew, stats.RegisteredFaces)
		fmt.Printf("Marcaciones hoy: %d\n", stats.MarksToday)
		return nil

	case "report":
		stats, err := a.reports.Report(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Tasa de asistencia: %.1f%%\n", stats.AttendanceRate*100)
		for day, n := range stats.MarksByDay {
			fmt.Printf("  %s: %d\n", day, n)
		}
		return nil

	case "health":
		if err := a.reports.Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "watch":
		return a.watch(ctx, opts.spec)

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) watch(ctx context.Context, spec string) error {
	if spec == "" {
		spec = a.cfg.RefreshSpec
	}
	if spec == "" {
		spec = "@every 1m"
	}
	if err := a.registry.Start(ctx); err != nil {
		return err
	}
	defer a.registry.Stop(context.Background())

	refresher := refresh.New(a.events, a.reports, a.auth.IsAuthenticated, a.log)
	if err := refresher.Start(spec); err != nil {
		return err
	}
	defer refresher.Stop(context.Background())

	fmt.Printf("Watching (refresh %s). Ctrl-C to stop.\n", spec)
	<-ctx.Done()
	if stats := refresher.Stats(); stats != nil {
		fmt.Printf("Última tasa de asistencia: %.1f%%\n", stats.AttendanceRate*100)
	}
	return nil
}

func argInt(args []string, name string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[0])
	}
	return id, nil
}

func printEvent(ev event.Event) {
	status := "inactivo"
	if ev.Active() {
		status = "activo"
	}
	day := ""
	if !ev.Start.IsZero() {
		day = ev.Start.Format("2006-01-02 15:04")
	}
	fmt.Printf("%4d  %-40s %-16s %-20s %s\n", ev.ID, ev.Name, day, ev.Location, status)
}

func printRosterEntry(entry event.RosterEntry) {
	name := entry.FirstName + " " + entry.LastName
	switch entry.DisplayState() {
	case event.ScheduleMarked:
		fmt.Printf("  %-12s %-30s marcado %s - %s\n", entry.CrewID, name, entry.MarkedEntry, entry.MarkedExit)
	case event.SchedulePlanned:
		fmt.Printf("  %-12s %-30s programado %s - %s\n", entry.CrewID, name, entry.ScheduledEntry, entry.ScheduledExit)
	default:
		fmt.Printf("  %-12s %-30s sin horario\n", entry.CrewID, name)
	}
}
