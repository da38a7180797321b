//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/artur282/PortSlayer/internal/config"
	"github.com/artur282/PortSlayer/internal/engine"
	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/internal/menu"
	"github.com/artur282/PortSlayer/internal/notify"
	"github.com/artur282/PortSlayer/internal/scan"
	"github.com/artur282/PortSlayer/internal/terminate"
	"github.com/artur282/PortSlayer/internal/tui"
	"github.com/artur282/PortSlayer/pkg/model"
)

// To embed version, commit, and build date, use:
// go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X 'main.buildDate=$(date +%Y-%m-%d)'" -o portslayer ./cmd/portslayer
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPartial = 3
)

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: portslayer [-i] [--list] [--json] [--kill PID[,PID]] [--kill-all] [--kill-port N[/tcp|udp]] [--filter all|tcp|udp] [PORT...]")
	fmt.Fprintln(w, "  -i, --interactive  Interactive menu (default on a terminal)")
	fmt.Fprintln(w, "  --list             List listening ports and exit")
	fmt.Fprintln(w, "  --json             Output as JSON")
	fmt.Fprintln(w, "  --kill <pids>      Terminate the given PIDs")
	fmt.Fprintln(w, "  --kill-all         Terminate every known owner in the filtered list")
	fmt.Fprintln(w, "  --kill-port <n>    Terminate whatever listens on a port, e.g. 8080 or 53/udp")
	fmt.Fprintln(w, "  --filter <proto>   Show only tcp or udp ports")
	fmt.Fprintln(w, "  --config <path>    Config file (default "+config.Path()+")")
	fmt.Fprintln(w, "  --log-level <lvl>  off, error, warn, info, debug or trace (default $"+logging.EnvVar+" or warn)")
	fmt.Fprintln(w, "  --no-color         Disable colorized output")
	fmt.Fprintln(w, "  --help             Show this help message")
	fmt.Fprintln(w, "  --version          Show version and exit")
	fmt.Fprintln(w, "PORT arguments narrow --list and --json to those ports.")
}

// Helper: which flags need a value (not bool flags)?
func flagNeedsValue(flag string) bool {
	switch strings.TrimLeft(flag, "-") {
	case "kill", "kill-port", "filter", "config", "log-level":
		return !strings.Contains(flag, "=")
	}
	return false
}

// reorder moves flags (with their values) ahead of positional arguments so
// "portslayer 8080 --json" parses like "portslayer --json 8080".
func reorder(args []string) []string {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)
			if flagNeedsValue(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, arg)
	}
	return append(flags, positionals...)
}

type options struct {
	interactive bool
	list        bool
	json        bool
	kill        []int
	killAll     bool
	killPort    *portTarget
	filter      menu.ProtocolFilter
	filterSet   bool
	configPath  string
	logLevel    string
	noColor     bool
	help        bool
	version     bool
	ports       []int
}

// action reports whether a one-shot operation was requested.
func (o options) action() bool {
	return o.list || o.json || len(o.kill) > 0 || o.killAll || o.killPort != nil || len(o.ports) > 0
}

type portTarget struct {
	port  int
	proto *model.Protocol
}

func (t portTarget) String() string {
	if t.proto == nil {
		return strconv.Itoa(t.port)
	}
	return fmt.Sprintf("%d/%s", t.port, *t.proto)
}

func parseArgs(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("portslayer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&o.interactive, "i", false, "interactive mode")
	fs.BoolVar(&o.interactive, "interactive", false, "interactive mode")
	fs.BoolVar(&o.list, "list", false, "list ports")
	fs.BoolVar(&o.json, "json", false, "output as JSON")
	kill := fs.String("kill", "", "PIDs to terminate")
	fs.BoolVar(&o.killAll, "kill-all", false, "terminate every known owner")
	killPort := fs.String("kill-port", "", "port to free")
	filter := fs.String("filter", "", "protocol filter")
	fs.StringVar(&o.configPath, "config", "", "config file")
	fs.StringVar(&o.logLevel, "log-level", "", "log verbosity")
	fs.BoolVar(&o.noColor, "no-color", false, "disable colorized output")
	fs.BoolVar(&o.help, "help", false, "show help")
	fs.BoolVar(&o.help, "h", false, "show help")
	fs.BoolVar(&o.version, "version", false, "show version and exit")

	if err := fs.Parse(reorder(args)); err != nil {
		return o, err
	}

	var err error
	if o.kill, err = parsePIDs(*kill); err != nil {
		return o, err
	}
	if *killPort != "" {
		t, err := parsePortTarget(*killPort)
		if err != nil {
			return o, err
		}
		o.killPort = &t
	}
	if *filter != "" {
		if o.filter, err = menu.ParseFilter(*filter); err != nil {
			return o, err
		}
		o.filterSet = true
	}
	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return o, err
		}
	}
	for _, a := range fs.Args() {
		p, err := parsePort(a)
		if err != nil {
			return o, err
		}
		o.ports = append(o.ports, p)
	}

	actions := 0
	for _, set := range []bool{len(o.kill) > 0, o.killAll, o.killPort != nil} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return o, errors.New("--kill, --kill-all and --kill-port are mutually exclusive")
	}
	if o.interactive && (actions > 0 || o.json || o.list) {
		return o, errors.New("--interactive cannot be combined with one-shot actions")
	}
	return o, nil
}

func parsePIDs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var pids []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		pid, err := strconv.Atoi(f)
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("invalid PID %q", f)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}

func parsePortTarget(s string) (portTarget, error) {
	num, proto, hasProto := strings.Cut(s, "/")
	p, err := parsePort(num)
	if err != nil {
		return portTarget{}, err
	}
	t := portTarget{port: p}
	if hasProto {
		pr, err := model.ParseProtocol(proto)
		if err != nil {
			return portTarget{}, err
		}
		t.proto = &pr
	}
	return t, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printHelp(stderr)
		return exitUsage
	}
	if opts.help {
		printHelp(stdout)
		return exitOK
	}
	if opts.version {
		fmt.Fprintf(stdout, "portslayer %s (commit %s, built %s)\n", version, commit, buildDate)
		return exitOK
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	tty := isTerminal(stdout)
	interactive := opts.interactive || (!opts.action() && tty)

	level := logging.FromEnv()
	if opts.logLevel != "" {
		level, _ = logging.ParseLevel(opts.logLevel)
	}
	logger, closeLog := newLogger(level, interactive, stderr)
	defer closeLog()

	eng := newEngine(cfg, logger)
	a := &app{
		eng:         eng,
		stdout:      stdout,
		stderr:      stderr,
		color:       tty && !opts.noColor,
		json:        opts.json,
		filter:      opts.filter,
		rescanDelay: cfg.Scan.RescanDelay,
	}
	if !opts.filterSet {
		a.filter, _ = menu.ParseFilter(cfg.Menu.Filter)
	}

	switch {
	case interactive:
		return runInteractive(eng, cfg, cfgPath, opts, logger, stderr)
	case len(opts.kill) > 0:
		return a.killPIDs(opts.kill)
	case opts.killAll:
		return a.killAll()
	case opts.killPort != nil:
		return a.killPort(*opts.killPort)
	default:
		return a.list(opts.ports)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger sends interactive-mode logs to a file; stderr belongs to the UI.
func newLogger(level logging.Level, interactive bool, stderr io.Writer) (*log.Logger, func()) {
	if !interactive || level == logging.Off {
		return logging.New(level, stderr), func() {}
	}
	f, err := logging.OpenFile(logging.FilePath())
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v; logging disabled\n", err)
		return logging.Discard(), func() {}
	}
	return logging.New(level, f), func() { f.Close() }
}

func newEngine(cfg *config.Config, logger *log.Logger) *engine.Engine {
	scanner := scan.New(scan.Options{
		Lister:  cfg.Scan.Lister,
		Sudo:    cfg.Scan.Sudo,
		ProcNet: cfg.ProcNetEnabled(),
		Names:   scan.ProcessNames{},
		Logger:  logger.WithPrefix("scan"),
	})
	term := terminate.New(terminate.Options{
		Helper: cfg.Terminate.ElevationHelper,
		Grace:  cfg.Terminate.GracePeriod,
		Logger: logger.WithPrefix("terminate"),
	})
	return engine.New(scanner, term, cfg.Scan.Interval, logger.WithPrefix("engine"))
}

func runInteractive(eng *engine.Engine, cfg *config.Config, cfgPath string, opts options, logger *log.Logger, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.filterSet {
		cfg.Menu.Filter = opts.filter.String()
	}

	reloads, err := config.Watch(ctx, cfgPath, logger.WithPrefix("config"))
	if err != nil {
		logger.Warn("config hot reload disabled", "err", err)
	}

	desktop := notify.Desktop{}
	if cfg.Notify.Enabled && !desktop.IsAvailable() {
		logger.Warn("notifications enabled but notify-send is not installed")
	}
	notifier := notify.NewManager(cfg.Notify, desktop)

	go eng.Run(ctx)

	err = tui.Run(tui.Options{
		Engine:   eng,
		Notifier: notifier,
		Config:   cfg,
		Reloads:  reloads,
		Logger:   logger.WithPrefix("tui"),
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
