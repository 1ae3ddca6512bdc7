package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ancients-collective/rigup/internal/types"
)

// ─── Layout constants ────────────────────────────────────────────────
//
// Step and check lines follow a fixed column grid:
//
//     col 0    4   6         16
//     │margin│ I │ BADGE     │ LABEL ...
//
// Detail lines start at colDetail and use labelWidth-padded labels
// so every value begins at colValue.
//
const (
	colMargin  = 4   // left margin for step/check lines
	badgeWidth = 10  // visible width of a padded badge, e.g. "[INSTALL] "
	colDetail  = 16  // column where detail lines start
	labelWidth = 9   // fixed label field: "Command: " / "Result:  " / etc.
	colValue   = 25  // column where label values start (colDetail + labelWidth)
	maxLine    = 110 // hard wrap cap
	ruleWidth  = 64  // width of horizontal divider rules
	tailLines  = 6   // output lines shown per step
)

// TextFormatter writes a colored, human-readable report.
type TextFormatter struct {
	Verbose bool // show passing checks and full output tails
	Width   int  // terminal width for text wrapping; 0 = unknown
	Dumb    bool // TERM=dumb: use single-char ASCII fallback icons
}

var (
	cBold   = color.New(color.Bold).SprintFunc()
	cGreen  = color.New(color.FgGreen).SprintFunc()
	cRed    = color.New(color.FgRed).SprintFunc()
	cYellow = color.New(color.FgYellow).SprintFunc()
	cCyan   = color.New(color.FgCyan).SprintFunc()
	cDim    = color.New(color.Faint).SprintFunc()

	cRedBold    = color.New(color.FgRed, color.Bold).SprintFunc()
	cYellowBold = color.New(color.FgYellow, color.Bold).SprintFunc()
	cGreenBold  = color.New(color.FgGreen, color.Bold).SprintFunc()
	cCyanBold   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// IsDumbTerm returns true when the terminal doesn't support Unicode.
func IsDumbTerm() bool {
	return os.Getenv("TERM") == "dumb"
}

// wrapWidth returns the effective line width: min(terminal, maxLine).
func (f *TextFormatter) wrapWidth() int {
	if f.Width > 0 && f.Width < maxLine {
		return f.Width
	}
	return maxLine
}

// ─── Setup report ────────────────────────────────────────────────────

// WriteSetup renders a setup run.
func (f *TextFormatter) WriteSetup(w io.Writer, report *types.SetupReport) error {
	res := report.Result
	if res == nil {
		res = &types.SetupResult{}
	}

	f.writeHeader(w, report.Version, "Setup started:", report.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	f.writeSystem(w, report.System)
	f.writeEnvironment(w, report.Environment)

	fmt.Fprintf(w, "  %s Capability %s (%s mode)\n", cBold(f.icon("section")), cBold(res.Capability), res.Mode)
	fmt.Fprintf(w, "    %d required check(s) failing before setup\n", len(res.Before.Missing()))

	if len(res.Steps) > 0 {
		f.writeSection(w, "steps")
		for _, s := range res.Steps {
			f.WriteStep(w, s)
			fmt.Fprintln(w)
		}
	}

	if len(res.RemainingChecks) > 0 {
		f.writeSection(w, "still failing")
		for _, c := range res.RemainingChecks {
			f.writeCheckLine(w, c)
		}
		fmt.Fprintln(w)
	}

	f.writeSetupSummary(w, res, report.DurationMS)
	f.writeSetupHints(w, res)
	fmt.Fprintln(w)
	return nil
}

// WriteStep renders one step line with its detail block.
func (f *TextFormatter) WriteStep(w io.Writer, s types.SetupStep) {
	label := s.Label
	if label == "" {
		label = s.CheckID
	}
	fmt.Fprintf(w, "%s%s %s%s\n", colPad(colMargin), f.stepIcon(s.Status), f.kindBadge(s.Kind), label)

	p := colPad(colDetail)
	if s.Command != "" {
		f.writeLabel(w, p, "Command:", cCyan, s.Command)
	}
	if s.Message != "" {
		colorFn := cDim
		switch s.Status {
		case types.StepFailed:
			colorFn = cRed
		case types.StepPending:
			colorFn = cYellow
		case types.StepCompleted:
			colorFn = cGreen
		}
		f.writeLabel(w, p, statusLabel(s.Status), colorFn, s.Message)
	}
	if s.OutputTail != "" && (s.Status == types.StepFailed || f.Verbose) {
		f.writeTail(w, s.OutputTail)
	}
}

func (f *TextFormatter) writeTail(w io.Writer, tail string) {
	lines := strings.Split(strings.TrimRight(tail, "\n"), "\n")
	if !f.Verbose && len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	fmt.Fprintf(w, "%s%s\n", colPad(colDetail), cDim(fmt.Sprintf("%-*s", labelWidth, "Output:")))
	for _, l := range lines {
		fmt.Fprintf(w, "%s%s\n", colPad(colValue), cDim(l))
	}
}

func (f *TextFormatter) writeSetupSummary(w io.Writer, res *types.SetupResult, durationMS int64) {
	rule := cDim(strings.Repeat("─", ruleWidth))
	fmt.Fprintf(w, "  %s\n", rule)

	switch {
	case res.Mode == types.ModePlan:
		fmt.Fprintf(w, "  %s %s\n", cCyanBold(f.icon("info")), cCyanBold(res.Summary))
	case res.OK:
		fmt.Fprintf(w, "  %s %s\n", cGreenBold(f.icon("pass")), cGreenBold(res.Summary))
	case res.RequiresUserInput:
		fmt.Fprintf(w, "  %s %s\n", cYellowBold(f.icon("warn")), cYellowBold(res.Summary))
	default:
		fmt.Fprintf(w, "  %s %s\n", cRedBold(f.icon("fail")), cRedBold(res.Summary))
	}

	var parts []string
	for _, st := range []struct {
		status types.StepStatus
		paint  func(a ...interface{}) string
	}{
		{types.StepCompleted, cGreenBold},
		{types.StepFailed, cRedBold},
		{types.StepPending, cYellowBold},
		{types.StepPlanned, cCyan},
		{types.StepSkipped, cDim},
	} {
		if n := res.CountStatus(st.status); n > 0 {
			parts = append(parts, st.paint(fmt.Sprintf("%d %s", n, st.status)))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, cDim("no steps"))
	}
	fmt.Fprintf(w, "  %s  %s\n", cBold("Steps:"), strings.Join(parts, " · "))

	dur := fmt.Sprintf("%.1fs", float64(durationMS)/1000.0)
	fmt.Fprintf(w, "  %s  %s\n", cDim("Completed in"), cBold(dur))
	fmt.Fprintf(w, "  %s\n", rule)
}

func (f *TextFormatter) writeSetupHints(w io.Writer, res *types.SetupResult) {
	var hints []string
	if res.Mode == types.ModePlan && res.CountStatus(types.StepPlanned) > 0 {
		hints = append(hints, "Run with --apply to execute the planned actions")
	}
	if res.RequiresUserInput && res.AuthSession != "" {
		hints = append(hints, fmt.Sprintf("Finish the login in tmux session %s, then run setup again", res.AuthSession))
	}
	if res.CountStatus(types.StepFailed) > 0 && !f.Verbose {
		hints = append(hints, "Use --verbose to see full command output")
	}
	f.writeHints(w, hints)
}

// ─── Health report ───────────────────────────────────────────────────

// WriteHealth renders a health report.
func (f *TextFormatter) WriteHealth(w io.Writer, report *types.HealthReport) error {
	h := report.Health
	f.writeHeader(w, report.Version, "Checked:", report.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	f.writeSystem(w, report.System)

	fmt.Fprintf(w, "  %s Capability %s\n", cBold(f.icon("section")), cBold(h.Capability))
	f.writeSection(w, "checks")

	passed, failed, skipped := 0, 0, 0
	for _, c := range h.Checks {
		switch {
		case c.Skipped:
			skipped++
		case c.OK:
			passed++
		default:
			failed++
		}
		if c.OK && !c.Skipped && !f.Verbose {
			continue
		}
		f.writeCheckLine(w, c)
	}
	if passed > 0 && !f.Verbose {
		fmt.Fprintf(w, "%s%s\n", colPad(colMargin), cDim(fmt.Sprintf("(%d passing check(s) hidden)", passed)))
	}
	fmt.Fprintln(w)

	rule := cDim(strings.Repeat("─", ruleWidth))
	fmt.Fprintf(w, "  %s\n", rule)
	missing := len(h.Missing())
	if missing == 0 {
		fmt.Fprintf(w, "  %s %s\n", cGreenBold(f.icon("pass")), cGreenBold("Ready: all required checks pass"))
	} else {
		fmt.Fprintf(w, "  %s %s\n", cRedBold(f.icon("fail")),
			cRedBold(fmt.Sprintf("%d required check(s) failing", missing)))
	}
	fmt.Fprintf(w, "  %s  %s · %s · %s\n", cBold("Checks:"),
		cGreenBold(fmt.Sprintf("%d passed", passed)),
		cRedBold(fmt.Sprintf("%d failed", failed)),
		cDim(fmt.Sprintf("%d skipped", skipped)))
	fmt.Fprintf(w, "  %s\n", rule)

	if missing > 0 {
		f.writeHints(w, []string{fmt.Sprintf("Run `rigup setup %s` to plan fixes", h.Capability)})
	}
	fmt.Fprintln(w)
	return nil
}

func (f *TextFormatter) writeCheckLine(w io.Writer, c types.HealthCheck) {
	badge := "[REQ]"
	if !c.Required {
		badge = "[OPT]"
	}
	label := c.Label
	if label == "" {
		label = c.ID
	}
	fmt.Fprintf(w, "%s%s %s%s %s\n", colPad(colMargin), f.checkIcon(c),
		cDim(fmt.Sprintf("%-*s", badgeWidth, badge)), label, cDim("("+c.ID+")"))

	p := colPad(colDetail)
	switch {
	case c.Skipped:
		f.writeLabel(w, p, "Skipped:", cDim, c.Message)
	case !c.OK:
		if c.Message != "" {
			f.writeLabel(w, p, "Result:", cRed, c.Message)
		}
		if c.Hint != "" {
			f.writeLabel(w, p, "Fix:", cGreen, c.Hint)
		}
	}
}

// ─── Shared sections ─────────────────────────────────────────────────

func (f *TextFormatter) writeHeader(w io.Writer, version, label, ts string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "       _\n")
	fmt.Fprintf(w, "  _ __(_) __ _ _   _ _ __\n")
	fmt.Fprintf(w, " | '__| |/ _` | | | | '_ \\\n")
	fmt.Fprintf(w, " | |  | | (_| | |_| | |_) |\n")
	fmt.Fprintf(w, " |_|  |_|\\__, |\\__,_| .__/  v%s\n", version)
	fmt.Fprintf(w, "         |___/     |_|\n")
	fmt.Fprintf(w, "  %s %s\n", cDim(label), ts)
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeSystem(w io.Writer, sys types.ReportSystem) {
	fmt.Fprintf(w, "  %s\n", cBold(f.icon("section")+" System"))
	fmt.Fprintf(w, "    OS:      %s %s (%s)\n", sys.OS, sys.OSVersion, sys.Arch)
	if sys.DistroID != "" {
		fmt.Fprintf(w, "    Distro:  %s %s\n", sys.DistroID, sys.DistroVersion)
	}
	envStr := sys.EnvType
	if sys.EnvRuntime != "" {
		envStr += fmt.Sprintf(" (%s)", sys.EnvRuntime)
	}
	fmt.Fprintf(w, "    Env:     %s\n", envStr)
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeEnvironment(w io.Writer, env types.InstallEnvironment) {
	var tools []string
	if env.HasHomebrew {
		tools = append(tools, "brew")
	}
	if env.HasApt {
		tools = append(tools, "apt-get")
	}
	if env.HasCurl {
		tools = append(tools, "curl")
	}
	installers := strings.Join(tools, ", ")
	if installers == "" {
		installers = cYellow("none")
	}

	priv := "no"
	switch {
	case env.IsPrivileged && env.UseSudo:
		priv = "yes (sudo)"
	case env.IsPrivileged:
		priv = "yes (root)"
	}

	fmt.Fprintf(w, "  %s\n", cBold(f.icon("section")+" Installers"))
	fmt.Fprintf(w, "    Tools:   %s\n", installers)
	fmt.Fprintf(w, "    Admin:   %s\n", priv)
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeSection(w io.Writer, title string) {
	label := strings.ToUpper(title)
	fill := ruleWidth - 4 - len(label)
	if fill < 1 {
		fill = 1
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%s %s %s\n", colPad(colMargin), cDim("──"), cBold(label), cDim(strings.Repeat("─", fill)))
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeHints(w io.Writer, hints []string) {
	if len(hints) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, h := range hints {
		fmt.Fprintf(w, "  %s %s\n", cDim("›"), cDim(h))
	}
}

// writeLabel emits one detail line: prefix + colored label (padded to labelWidth) + wrapped value.
func (f *TextFormatter) writeLabel(w io.Writer, prefix, label string, colorFn func(a ...interface{}) string, value string) {
	colored := colorFn(fmt.Sprintf("%-*s", labelWidth, label))
	wrapped := f.wrap(value, colValue, colValue)
	fmt.Fprintf(w, "%s%s%s\n", prefix, colored, wrapped)
}

// ─── Text wrapping ───────────────────────────────────────────────────

func (f *TextFormatter) wrap(text string, startCol, wrapCol int) string {
	w := f.wrapWidth()
	if startCol+len(text) <= w {
		return text
	}

	avail := w - startCol
	if avail < 20 {
		return text
	}

	wrapPad := strings.Repeat(" ", wrapCol)
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var b strings.Builder
	lineLen := 0

	for i, word := range words {
		if i == 0 {
			b.WriteString(word)
			lineLen = len(word)
			continue
		}
		if lineLen+1+len(word) > avail {
			b.WriteByte('\n')
			b.WriteString(wrapPad)
			b.WriteString(word)
			lineLen = len(word)
			avail = w - wrapCol
		} else {
			b.WriteByte(' ')
			b.WriteString(word)
			lineLen += 1 + len(word)
		}
	}

	return b.String()
}

// ─── Icons ───────────────────────────────────────────────────────────

func (f *TextFormatter) icon(name string) string {
	if f.Dumb {
		switch name {
		case "pass":
			return "+"
		case "fail":
			return "x"
		case "skip":
			return "-"
		case "warn":
			return "!"
		case "pending":
			return "~"
		case "info":
			return "i"
		case "section":
			return ">"
		default:
			return "?"
		}
	}
	switch name {
	case "pass":
		return "✓"
	case "fail":
		return "✗"
	case "skip":
		return "○"
	case "warn":
		return "⚠"
	case "pending":
		return "◷"
	case "info":
		return "ℹ"
	case "section":
		return "▸"
	default:
		return "?"
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────

func (f *TextFormatter) stepIcon(s types.StepStatus) string {
	switch s {
	case types.StepCompleted:
		return cGreen(f.icon("pass"))
	case types.StepFailed:
		return cRed(f.icon("fail"))
	case types.StepPending:
		return cYellow(f.icon("pending"))
	case types.StepPlanned:
		return cCyan(f.icon("info"))
	case types.StepSkipped:
		return cDim(f.icon("skip"))
	default:
		return "?"
	}
}

func (f *TextFormatter) checkIcon(c types.HealthCheck) string {
	switch {
	case c.Skipped:
		return cDim(f.icon("skip"))
	case c.OK:
		return cGreen(f.icon("pass"))
	case !c.Required:
		return cYellow(f.icon("warn"))
	default:
		return cRed(f.icon("fail"))
	}
}

func (f *TextFormatter) kindBadge(k types.StepKind) string {
	padded := fmt.Sprintf("%-*s", badgeWidth, kindBadgeRaw(k))
	switch k {
	case types.KindInstall:
		return cCyan(padded)
	case types.KindAuth:
		return cYellow(padded)
	default:
		return cDim(padded)
	}
}

func colPad(n int) string {
	return strings.Repeat(" ", n)
}

func kindBadgeRaw(k types.StepKind) string {
	switch k {
	case types.KindInstall:
		return "[INSTALL]"
	case types.KindAuth:
		return "[AUTH]"
	case types.KindManual:
		return "[MANUAL]"
	default:
		return "[----]"
	}
}

func statusLabel(s types.StepStatus) string {
	switch s {
	case types.StepFailed:
		return "Error:"
	case types.StepPending:
		return "Waiting:"
	case types.StepSkipped:
		return "Manual:"
	default:
		return "Result:"
	}
}
