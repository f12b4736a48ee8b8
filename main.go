package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"git.unix.lgbt/diamondburned/compatd/compat/config"
	"git.unix.lgbt/diamondburned/compatd/compat/engine"
	"git.unix.lgbt/diamondburned/compatd/compat/journal"
	"git.unix.lgbt/diamondburned/compatd/compat/registry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	configFile string
	tailCount  int
	lockWait   time.Duration
)

func init() {
	configFile = os.Getenv(config.EnvPrefix + "CONFIG")

	flag.StringVar(&configFile, "c", configFile, "config file path")
	flag.IntVar(&tailCount, "n", 20, "number of journal entries to print with tail")
	flag.DurationVar(&lockWait, "w", 0, "wait this long for a running instance to exit")
	flag.Usage = func() {
		f := func(f string, v ...interface{}) {
			fmt.Fprintf(flag.CommandLine.Output(), f, v...)
		}

		f("Usage:\n")
		f("  %s [-c <config>] [-w <wait>] [|check|tail|commands]\n", filepath.Base(os.Args[0]))
		f("\n")
		f("Subcommands:\n")
		f("  (none)    run the daemon\n")
		f("  check     validate the config and objects files\n")
		f("  tail      print the last -n journal entries\n")
		f("  commands  list the supported external commands\n")
		f("\n")
		f("Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if tailCount < 1 {
		log.Fatalln("-n must be positive")
	}
	if lockWait < 0 {
		log.Fatalln("-w must not be negative")
	}
}

func main() {
	if flag.Arg(0) == "commands" {
		for _, name := range engine.Commands() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalln(err)
	}

	switch flag.Arg(0) {
	case "check":
		err = check(cfg)
	case "tail":
		err = tail(cfg)
	case "":
		err = start(cfg)
	default:
		log.Fatalf("unknown subcommand %q\n", flag.Arg(0))
	}

	if err != nil {
		log.Fatalln(err)
	}
}

func check(cfg config.Config) error {
	objs, err := config.LoadObjects(cfg.ObjectsFile)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d hosts, %d hostgroups, %d services, %d servicegroups\n",
		cfg.ObjectsFile,
		len(objs.Hosts), len(objs.HostGroups), len(objs.Services), len(objs.ServiceGroups))
	fmt.Println("command pipe:", cfg.CommandPath)
	fmt.Println("status file: ", cfg.StatusPath)
	fmt.Println("objects file:", cfg.ObjectsPath)
	fmt.Println("journal:     ", cfg.JournalPath)

	return nil
}

func tail(cfg config.Config) error {
	entries, err := journal.TailFile(cfg.JournalPath, tailCount)
	if err != nil {
		return errors.Wrap(err, "failed to read journal")
	}

	w := journal.NewHumanWriter(os.Stdout, zerolog.TraceLevel)
	for _, entry := range entries {
		w.WriteAt(entry.Time, entry.Event)
	}

	return nil
}

func start(cfg config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.StateDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	j, err := acquireJournal(ctx, cfg.JournalPath)
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			// Non-fatal error.
			log.Println("compatd is already running")
			return nil
		}

		return errors.Wrap(err, "failed to acquire journal lock")
	}
	defer j.Close()

	journaler := journal.MultiWriter(j, journal.NewHumanWriter(os.Stderr, level))
	journaler.Write(&compat.EventAcquired{PID: os.Getpid()})

	store := registry.New()

	reload := func() error {
		objs, err := config.LoadObjects(cfg.ObjectsFile)
		if err != nil {
			return err
		}
		return store.Load(objs)
	}

	switch err := reload(); {
	case err == nil:
		journaler.Write(&compat.EventObjectsReloaded{File: cfg.ObjectsFile})
	case errors.Is(err, os.ErrNotExist):
		// Start empty; the watcher loads the file once it shows up.
		journaler.Write(&compat.EventWarning{
			Component: "registry",
			Error:     fmt.Sprintf("no objects file at %s, starting empty", cfg.ObjectsFile),
		})
	default:
		return err
	}

	compat.TryWatch(ctx, cfg.ObjectsFile, journaler, reload)

	c := compat.NewComponent(cfg.Options(), store, engine.New(store), journaler)
	return c.Run(ctx)
}

// acquireJournal locks the journal, waiting up to lockWait for the previous
// instance to let go of it, such as during a restart.
func acquireJournal(ctx context.Context, path string) (*journal.FileLockJournaler, error) {
	if lockWait == 0 {
		return journal.NewFileLockJournaler(path)
	}

	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	return journal.NewFileLockJournalerWait(ctx, path)
}
