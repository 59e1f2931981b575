package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"honeyseeker/config"
	"honeyseeker/search"
)

// Styles (shared with CLI output)
var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))

	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1a1b26")).
			Background(lipgloss.Color("#e0af68"))
)

// Editable fields, in focus order
const (
	fieldFolder = iota
	fieldFile
	fieldEntry
	fieldQuery
	fieldCount
)

var fieldLabels = [fieldCount]string{"Folder", "File", "Entry", "Query"}

const (
	logPaneLines = 5
	logKeep      = 200
)

// progressMsg updates the status line while a step runs
type progressMsg struct {
	Stage   string
	Archive string
	Entry   string
}

type model struct {
	ctx      context.Context
	session  *search.Session
	stop     *search.StopFlag
	sink     *logSink
	progress chan progressMsg
	settings *config.Settings

	inputs  []textinput.Model
	focus   int
	preview viewport.Model
	logs    []logLine

	// Last step
	result    search.SearchResult
	status    string
	statusSty lipgloss.Style
	elapsed   time.Duration
	started   time.Time
	running   bool
	highlight bool

	progressText string
	memUsageText string

	width    int
	height   int
	quitting bool
}

func newModel(ctx context.Context, session *search.Session, settings *config.Settings, sink *logSink, progress chan progressMsg) model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = strings.ToLower(fieldLabels[i])
		inputs[i] = ti
	}
	m := model{
		ctx:       ctx,
		session:   session,
		stop:      &search.StopFlag{},
		sink:      sink,
		progress:  progress,
		settings:  settings,
		inputs:    inputs,
		focus:     fieldQuery,
		preview:   viewport.New(80, 10),
		highlight: settings.Highlight,
		status:    "Ready",
		statusSty: infoStyle,
	}
	m.syncInputs()
	m.inputs[m.focus].Focus()
	m.preview.SetContent(renderPreview(m.result, m.highlight, 76))
	return m
}

// runTUI starts the interactive search and saves the session on exit
func runTUI(ctx context.Context, e *env) error {
	sink := newLogSink(e.level, 256)
	logger := slog.New(sink)
	progress := make(chan progressMsg, 64)

	engine := newEngine(e.settings, logger, func(stage, archive, entry string) {
		pushProgress(progress, progressMsg{Stage: stage, Archive: archive, Entry: entry})
	})
	m := newModel(ctx, newSession(engine, e.settings), e.settings, sink, progress)

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if fm, ok := final.(model); ok {
		fm.applyInputs()
		storeSession(fm.session, e.settings)
		e.settings.Highlight = fm.highlight
	}
	return config.Save(e.path, e.settings)
}

// pushProgress delivers progress; drop oldest if full to keep latest flowing
func pushProgress(ch chan progressMsg, msg progressMsg) {
	select {
	case ch <- msg:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, pollTick(), m.memUsageTick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stepDoneMsg:
		m.finishStep(msg)
		return m, nil

	case memUsageMsg:
		m.memUsageText = msg.Text
		return m, m.memUsageTick()

	case progressTick:
		m.drainBackground()
		return m, pollTick()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		if m.running {
			m.stop.Request()
		}
		m.quitting = true
		return m, tea.Quit

	case "enter", "ctrl+n":
		return m.startStep(search.Forward)
	case "ctrl+b":
		return m.startStep(search.Backward)

	case "esc", "ctrl+x":
		if m.running {
			m.stop.Request()
		}
		return m, nil

	case "ctrl+t":
		m.highlight = !m.highlight
		m.preview.SetContent(renderPreview(m.result, m.highlight, m.preview.Width-2))
		return m, nil

	case "ctrl+r":
		if m.running {
			return m, nil
		}
		m.session.SetCursor(search.Cursor{})
		m.syncInputs()
		m.status, m.statusSty = "Cursor reset", infoStyle
		return m, nil

	case "tab", "down":
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd

	case "pgdown":
		m.preview.LineDown(m.preview.Height)
		return m, nil
	case "pgup":
		m.preview.LineUp(m.preview.Height)
		return m, nil
	}

	if m.running {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *model) focusField(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

// startStep copies the edited fields into the session and runs one step in the background
func (m model) startStep(dir search.Direction) (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	m.applyInputs()
	if strings.TrimSpace(m.session.Query()) == "" {
		m.status, m.statusSty = "Enter a query first", warningStyle
		return m, nil
	}

	m.running = true
	m.started = time.Now()
	m.progressText = ""
	m.status, m.statusSty = fmt.Sprintf("Searching %s...", dir), infoStyle

	session, stop, ctx := m.session, m.stop, m.ctx
	return m, func() tea.Msg {
		res, err := session.Next(ctx, dir, stop)
		return stepDoneMsg{result: res, err: err}
	}
}

func (m *model) finishStep(msg stepDoneMsg) {
	m.running = false
	m.elapsed = time.Since(m.started)
	// a stop requested after the last entry boundary must not hit the next step
	m.stop.Consume()

	switch {
	case msg.err == nil && !msg.result.IsEmpty():
		m.result = msg.result
		m.status, m.statusSty = fmt.Sprintf("Found %d encounters in %s / %s", len(msg.result.Encounters), msg.result.Archive, msg.result.Entry), successStyle
	case msg.err == nil:
		m.result = search.SearchResult{}
		m.status, m.statusSty = "No more matches", warningStyle
	case search.IsInterrupted(msg.err):
		archive, entry, _ := search.Position(msg.err)
		m.status, m.statusSty = fmt.Sprintf("Stopped at %s / %s", archive, entry), warningStyle
	default:
		m.status, m.statusSty = msg.err.Error(), errorStyle
	}

	m.syncInputs()
	m.preview.SetContent(renderPreview(m.result, m.highlight, m.preview.Width-2))
	m.preview.GotoTop()
}

// applyInputs pushes edited fields into the session. Editing the cursor
// returns the session to idle.
func (m model) applyInputs() {
	folder := strings.TrimSpace(m.inputs[fieldFolder].Value())
	if folder != m.session.Folder() {
		m.session.SetFolder(folder)
	}
	cursor := search.Cursor{
		Archive: strings.TrimSpace(m.inputs[fieldFile].Value()),
		Entry:   strings.TrimSpace(m.inputs[fieldEntry].Value()),
	}
	if cursor != m.session.Cursor() {
		m.session.SetCursor(cursor)
	}
	if q := m.inputs[fieldQuery].Value(); q != m.session.Query() {
		m.session.SetQuery(q)
	}
}

// syncInputs shows the session state in the fields
func (m model) syncInputs() {
	cursor := m.session.Cursor()
	m.inputs[fieldFolder].SetValue(m.session.Folder())
	m.inputs[fieldFile].SetValue(cursor.Archive)
	m.inputs[fieldEntry].SetValue(cursor.Entry)
	m.inputs[fieldQuery].SetValue(m.session.Query())
}

// drainBackground collects log lines and the newest progress report
func (m *model) drainBackground() {
	if lines := m.sink.drain(); len(lines) > 0 {
		m.logs = append(m.logs, lines...)
		if len(m.logs) > logKeep {
			m.logs = m.logs[len(m.logs)-logKeep:]
		}
	}
	for {
		select {
		case p := <-m.progress:
			if p.Entry != "" {
				m.progressText = fmt.Sprintf("%s [%s]: %s", capitalize(p.Stage), p.Archive, p.Entry)
			} else {
				m.progressText = fmt.Sprintf("%s: %s", capitalize(p.Stage), p.Archive)
			}
		default:
			return
		}
	}
}

// chrome is every row outside the preview box: header(2) fields(4) status(1)
// engine(1) log title+pane(1+logPaneLines) footer(1) box border and padding(4)
const chromeRows = 2 + fieldCount + 1 + 1 + 1 + logPaneLines + 1 + 4

func (m *model) layout() {
	width := max(m.width, 40)
	height := max(m.height, chromeRows+3)

	m.preview.Width = width - 8
	m.preview.Height = height - chromeRows
	for i := range m.inputs {
		m.inputs[i].Width = width - 12
	}
	m.preview.SetContent(renderPreview(m.result, m.highlight, m.preview.Width-2))
}

func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	width := m.width
	if width <= 0 {
		width = 100
	}

	var parts []string
	parts = append(parts, headerStyle.Render(fmt.Sprintf("🍯 honeyseeker v%s", version)), "")

	for i, ti := range m.inputs {
		label := fmt.Sprintf("%-7s", fieldLabels[i]+":")
		if i == m.focus {
			label = subHeaderStyle.Render(label)
		} else {
			label = infoStyle.Render(label)
		}
		parts = append(parts, label+" "+ti.View())
	}

	status := m.statusSty.Render(m.status)
	if m.running {
		txt := "⏳ Searching"
		if m.progressText != "" {
			txt = "⏳ " + m.progressText
		}
		if m.stop.Requested() {
			txt = "⏹ Stopping at the next entry..."
		}
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Render(truncate(txt, width-2))
	} else if m.elapsed > 0 {
		status += infoStyle.Render(fmt.Sprintf(" (%.1fs)", m.elapsed.Seconds()))
	}
	parts = append(parts, status)

	mode := "idle"
	if m.session.Active() {
		mode = "active"
	}
	engine := fmt.Sprintf("⚙️ Types: %s • Mode: %s • Highlight: %v%s",
		config.GetFileTypeDescription(m.settings.DocumentTypes), mode, m.highlight, m.memUsageText)
	parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Render(truncate(engine, width-2)))

	parts = append(parts, appStyle.Width(width-4).Render(m.preview.View()))

	parts = append(parts, separatorStyle.Render(separator(width-2)))
	start := max(0, len(m.logs)-logPaneLines)
	for i := start; i < start+logPaneLines; i++ {
		if i >= len(m.logs) {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, renderLogLine(m.logs[i], width-2))
	}

	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("⏎/ctrl+n next • ctrl+b back • esc stop • ctrl+t highlight • ctrl+r reset • tab field • pgup/pgdn scroll • ctrl+c quit")
	parts = append(parts, footer)

	return strings.Join(parts, "\n")
}

// renderPreview formats a result for the preview box
func renderPreview(res search.SearchResult, highlight bool, width int) string {
	if res.IsEmpty() {
		return "No results found."
	}
	width = max(width, 20)

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s / %s (%s, %s)\n\n", res.Archive, res.Entry, humanize.Bytes(res.Size), res.Charset)
	for i, enc := range res.Encounters {
		text := enc.Context
		if highlight {
			before, match, after := search.SplitEncounter(enc)
			text = before + matchStyle.Render(match) + after
		}
		label := subHeaderStyle.Render(fmt.Sprintf("Encounter %d: ", i+1))
		b.WriteString(wrapTextWithIndent(label, text, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLogLine(l logLine, width int) string {
	tag, style := "INFO", infoStyle
	switch {
	case l.Level >= slog.LevelError:
		tag, style = "ERROR", errorStyle
	case l.Level >= slog.LevelWarn:
		tag, style = "WARN", warningStyle
	case l.Level < slog.LevelInfo:
		tag, style = "DEBUG", separatorStyle
	}
	return style.Render(truncate(fmt.Sprintf("%-5s %s", tag, l.Text), width))
}

func wrapTextWithIndent(prefix, text string, width int) string {
	prefixWidth := lipgloss.Width(prefix)
	indent := strings.Repeat(" ", prefixWidth)
	wrapped := lipgloss.NewStyle().Width(width - prefixWidth).Render(text)
	return prefix + strings.ReplaceAll(wrapped, "\n", "\n"+indent)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate cuts s to at most width characters
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

func (m model) memUsageTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		mem, cpu := sampleMemoryAndCPU()
		return memUsageMsg{Text: fmt.Sprintf(" • Heap %s • RSS %s • CPU %4.1f%%", humanize.Bytes(mem.heap), humanize.Bytes(mem.rss), cpu)}
	})
}

func pollTick() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(time.Time) tea.Msg {
		// Update drains the log sink and coalesces the newest progress message
		return progressTick{}
	})
}

var lastCPUWall time.Time
var lastCPUProc time.Duration
var haveCPUSample bool

func sampleMemoryAndCPU() (mem struct{ heap, rss uint64 }, cpu float64) {
	var rusage unix.Rusage
	_ = unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mem.heap = ms.HeapAlloc
	mem.rss = uint64(rusage.Maxrss * 1024) // KB to bytes

	// process user+sys time from rusage
	nowWall := time.Now()
	user := time.Duration(rusage.Utime.Sec)*time.Second + time.Duration(rusage.Utime.Usec)*time.Microsecond
	sys := time.Duration(rusage.Stime.Sec)*time.Second + time.Duration(rusage.Stime.Usec)*time.Microsecond
	nowProc := user + sys
	if haveCPUSample {
		wallDiff := nowWall.Sub(lastCPUWall)
		procDiff := nowProc - lastCPUProc
		if wallDiff > 0 {
			cpu = max(0, procDiff.Seconds()/wallDiff.Seconds()*100)
		}
	}
	lastCPUWall = nowWall
	lastCPUProc = nowProc
	haveCPUSample = true
	return
}

// Messages for TUI updates
type stepDoneMsg struct {
	result search.SearchResult
	err    error
}

type memUsageMsg struct {
	Text string
}

type progressTick struct{}
