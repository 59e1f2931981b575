package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"honeyseeker/config"
	"honeyseeker/search"
)

var version = "0.3"

// ANSI markers for highlighted matches in plain terminal output
const (
	matchOn  = "\033[1;31m" // bold red
	matchOff = "\033[0m"
)

// Run parses CLI arguments and runs the selected command. Returns a process exit code.
func Run() int {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "honeyseeker",
		Usage:   "Resumable regular-expression search over zipped fb2 libraries",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the settings file",
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"d"},
				Usage:   "Folder holding the archives",
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Regular expression to search for",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Archive to resume from",
			},
			&cli.StringFlag{
				Name:    "entry",
				Aliases: []string{"e"},
				Usage:   "Entry inside the archive to resume from",
			},
		},
		Action: tuiCommand,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "Interactive search (default)",
				Action: tuiCommand,
			},
			{
				Name:   "next",
				Usage:  "Find the next matching entry and print its encounters",
				Action: stepCommand(search.Forward),
			},
			{
				Name:   "prev",
				Usage:  "Find the previous matching entry and print its encounters",
				Action: stepCommand(search.Backward),
			},
			{
				Name:   "reset",
				Usage:  "Forget the resume position",
				Action: resetCommand,
			},
			{
				Name:   "show",
				Usage:  "Print the current settings",
				Action: showCommand,
			},
		},
	}
}

// env is what every command starts from
type env struct {
	path     string
	settings *config.Settings
	level    slog.Level
}

func loadEnv(c *cli.Context) (*env, error) {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}
	s, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(c, s)
	return &env{path: path, settings: s, level: level}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
}

// applyOverrides copies flags into settings. Any change to where or what we
// search makes the cursor entry eligible again.
func applyOverrides(c *cli.Context, s *config.Settings) {
	if c.IsSet("folder") && c.String("folder") != s.Folder {
		s.Folder = c.String("folder")
		s.SkipCurrent = false
	}
	if c.IsSet("query") && c.String("query") != s.SearchQuery {
		s.SearchQuery = c.String("query")
		s.SkipCurrent = false
	}
	if c.IsSet("file") {
		s.CurrentFile = c.String("file")
		s.CurrentEntry = ""
		s.SkipCurrent = false
	}
	if c.IsSet("entry") {
		s.CurrentEntry = c.String("entry")
		s.SkipCurrent = false
	}
}

// newEngine builds a search engine from settings
func newEngine(s *config.Settings, logger *slog.Logger, progress search.ProgressFunc) *search.Engine {
	return search.NewEngine(
		search.WithLogger(logger),
		search.WithConfidenceThreshold(s.ConfidenceThreshold),
		search.WithContextSize(s.ContextSize),
		search.WithArchiveExtension(s.ArchiveExtension),
		search.WithDocumentTypes(s.DocumentTypes...),
		search.WithSkipUnreadable(s.SkipUnreadable),
		search.WithProgress(progress),
	)
}

// newSession restores the session saved in settings
func newSession(engine *search.Engine, s *config.Settings) *search.Session {
	cursor := search.Cursor{Archive: s.CurrentFile, Entry: s.CurrentEntry}
	session := search.NewSession(engine, s.Folder, cursor, s.SearchQuery)
	if s.SkipCurrent {
		session.ResumeAfter(cursor)
	}
	return session
}

// storeSession writes the session position back into settings
func storeSession(session *search.Session, s *config.Settings) {
	cursor := session.Cursor()
	s.Folder = session.Folder()
	s.SearchQuery = session.Query()
	s.CurrentFile = cursor.Archive
	s.CurrentEntry = cursor.Entry
	s.SkipCurrent = session.Active()
}

func stepCommand(dir search.Direction) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := loadEnv(c)
		if err != nil {
			return err
		}
		if e.settings.SearchQuery == "" {
			return errors.New("no query: pass --query or set search_query")
		}

		logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: e.level}))
		session := newSession(newEngine(e.settings, logger, nil), e.settings)

		res, stepErr := session.Next(c.Context, dir, nil)
		storeSession(session, e.settings)
		if err := config.Save(e.path, e.settings); err != nil {
			return err
		}
		if stepErr != nil {
			return stepErr
		}

		printResult(writerOf(c), res, e.settings.Highlight, terminalWidth())
		return nil
	}
}

func resetCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	e.settings.ResetCursor()
	if err := config.Save(e.path, e.settings); err != nil {
		return err
	}
	fmt.Fprintln(writerOf(c), successStyle.Render("Cursor reset"))
	return nil
}

func showCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(e.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	out := writerOf(c)
	fmt.Fprintln(out, subHeaderStyle.Render("# "+e.path))
	fmt.Fprint(out, string(data))
	return nil
}

func tuiCommand(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	return runTUI(c.Context, e)
}

func writerOf(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// printResult renders one search step for a plain terminal
func printResult(w io.Writer, res search.SearchResult, highlight bool, width int) {
	if res.IsEmpty() {
		fmt.Fprintln(w, warningStyle.Render("No more matches"))
		return
	}

	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("📖 %s / %s", res.Archive, res.Entry)))
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("   %s • %s • %d encounters", humanize.Bytes(res.Size), res.Charset, len(res.Encounters))))
	fmt.Fprintln(w, separatorStyle.Render(separator(width)))
	for i, enc := range res.Encounters {
		text := enc.Context
		if highlight {
			text = search.HighlightEncounter(enc, matchOn, matchOff)
		}
		fmt.Fprintf(w, "%s %s\n", subHeaderStyle.Render(fmt.Sprintf("[%d]", i+1)), text)
	}
}

// terminalWidth returns the terminal width, defaulting to 80 if unable to detect
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// separator creates a separator line that fits the terminal width
func separator(width int) string {
	if width > 120 {
		width = 120
	}
	if width < 1 {
		width = 1
	}
	return strings.Repeat("━", width)
}
