package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	"github.com/rileyhilliard/gpuwatch/internal/ui"
	"github.com/rileyhilliard/gpuwatch/internal/util"
)

// DefaultPort is where the metrics server listens unless told otherwise.
const DefaultPort = "8080"

// DefaultProbeTimeout bounds a connection test.
const DefaultProbeTimeout = 5 * time.Second

// isInteractive reports whether prompts can be shown. Tests replace it.
var isInteractive = func() bool {
	return ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)
}

// pickAlias shows the SSH alias picker. Tests replace it.
var pickAlias = ui.PickAlias

// ConnAddOptions holds options for the conn add command.
type ConnAddOptions struct {
	Name     string
	Host     string
	Port     string
	SkipTest bool
}

// ConnRemoveOptions holds options for the conn remove command.
type ConnRemoveOptions struct {
	Ref string // id or name
	Yes bool
}

// ConnTestOptions holds options for the conn connect-test command.
type ConnTestOptions struct {
	Ref     string // id, name or host:port; empty tests every saved connection
	Timeout time.Duration
}

// connAdd saves a new connection.
func connAdd(w io.Writer, opts ConnAddOptions) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Port == "" && opts.Host != "" {
		opts.Port = DefaultPort
	}

	if (opts.Name == "" || opts.Host == "") && isInteractive() {
		cancelled, err := collectConnection(s, &opts)
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if opts.Name != "" && opts.Host != "" && opts.Port != "" {
		for _, c := range s.mgr.Connections() {
			if strings.EqualFold(c.Name, opts.Name) {
				fmt.Fprintf(w, "%s A connection named '%s' already exists (#%d); refer to them by number\n",
					ui.SymbolWarning, c.Name, c.ID)
				break
			}
		}
		printAliasHint(w, s, opts.Host)

		if !opts.SkipTest {
			if err := testBeforeAdd(w, s, opts); err != nil {
				return err
			}
		}
	}

	info, err := s.mgr.Add(opts.Name, opts.Host, opts.Port)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Added connection '%s' (#%d, %s)\n", ui.SymbolSuccess, info.Name, info.ID, info.URL)
	return nil
}

// collectConnection fills missing fields from the alias picker and a form.
func collectConnection(s *session, opts *ConnAddOptions) (bool, error) {
	if opts.Host == "" {
		entries := s.aliases.Entries()
		if len(entries) > 0 {
			infos := make([]ui.AliasInfo, len(entries))
			for i, e := range entries {
				infos[i] = ui.AliasInfo{Alias: e.Alias, HostName: e.HostName}
			}
			sel, cancelled, err := pickAlias(infos)
			if err != nil {
				return false, errors.WrapWithCode(err, errors.ErrConfig,
					"Couldn't show the SSH host picker",
					"Pass the host directly: gpuwatch conn add <name> <host> [port]")
			}
			if cancelled {
				return true, nil
			}
			if sel != nil {
				opts.Host = sel.Alias
				if opts.Name == "" {
					opts.Name = sel.Alias
				}
			}
		}
	}
	if opts.Port == "" {
		opts.Port = DefaultPort
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Shown on the dashboard card").
				Value(&opts.Name).
				Validate(required("a name")),
			huh.NewInput().
				Title("Host").
				Description("Address or SSH alias of the machine running the metrics server").
				Value(&opts.Host).
				Validate(required("a host")),
			huh.NewInput().
				Title("Port").
				Value(&opts.Port).
				Validate(required("a port")),
		),
	)
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return true, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Try again, or pass everything on the command line: gpuwatch conn add <name> <host> [port]")
	}
	return false, nil
}

func required(what string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("enter %s", what)
		}
		return nil
	}
}

// printAliasHint points out an SSH alias that will be dialed literally.
func printAliasHint(w io.Writer, s *session, host string) {
	if s.cfg.ResolveSSHAliases {
		return
	}
	if target := s.aliases.Resolve(host); target != host {
		fmt.Fprintf(w, "  '%s' is an SSH alias for %s. To dial that instead, run:\n", host, target)
		fmt.Fprintln(w, "    gpuwatch config set resolve_ssh_aliases true")
	}
}

// testBeforeAdd probes the new connection and, on failure, asks whether
// to save anyway.
func testBeforeAdd(w io.Writer, s *session, opts ConnAddOptions) error {
	url := s.dialURL(opts.Host, opts.Port)
	_, err := probeWithSpinner(w, s, opts.Name, url, DefaultProbeTimeout)
	if err == nil {
		return nil
	}

	fmt.Fprintf(w, "\n%s Couldn't reach %s: %v\n\n", ui.SymbolFail, url, err)
	if isInteractive() {
		var saveAnyway bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save the connection anyway? (You can start the server later)").
					Value(&saveAnyway),
			),
		)
		if formErr := form.Run(); formErr == nil && saveAnyway {
			return nil
		}
	}
	return errors.WrapWithCode(err, errors.ErrTransport,
		fmt.Sprintf("Can't reach %s", url),
		"Start the metrics server there, or save it anyway with --skip-test")
}

// probeWithSpinner runs one probe under a spinner.
func probeWithSpinner(w io.Writer, s *session, name, url string, timeout time.Duration) (telemetry.ProbeResult, error) {
	spinner := ui.NewSpinner(fmt.Sprintf("Testing %s (%s)", name, url))
	if w != os.Stdout || !isInteractive() {
		spinner.SetOutput(w)
	}
	spinner.Start()

	res, err := telemetry.Probe(context.Background(), dialerFor(s.cfg.Policy()), url, timeout)
	if err != nil {
		spinner.Fail()
		return res, err
	}
	spinner.Success()
	return res, nil
}

// connRemove deletes a saved connection.
func connRemove(w io.Writer, opts ConnRemoveOptions) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	conns := s.mgr.Connections()
	if len(conns) == 0 {
		return errors.NewValidation("No connections saved", "Nothing to remove.")
	}

	ref := opts.Ref
	if ref == "" {
		if !isInteractive() {
			return errors.NewValidation("Which connection?",
				"Pass its number or name: gpuwatch conn remove <id|name>")
		}
		options := make([]huh.Option[string], len(conns))
		for i, c := range conns {
			options[i] = huh.NewOption(fmt.Sprintf("#%d %s - %s", c.ID, c.Name, c.URL), strconv.Itoa(c.ID))
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Select connection to remove").
					Options(options...).
					Value(&ref),
			),
		)
		if err := form.Run(); err != nil {
			if stderrors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(w, "Cancelled.")
				return nil
			}
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your selection",
				"Try again or use: gpuwatch conn remove <id|name>")
		}
	}

	info, err := s.lookupConnection(ref)
	if err != nil {
		return err
	}

	if !opts.Yes {
		if !isInteractive() {
			return errors.NewValidation(
				fmt.Sprintf("Refusing to remove '%s' without confirmation", info.Name),
				"Re-run with --yes")
		}
		var confirm bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Remove connection '%s' (%s)?", info.Name, info.URL)).
					Value(&confirm),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your input",
				"Try again or pass --yes.")
		}
		if !confirm {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := s.mgr.Remove(info.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Removed connection '%s'\n", ui.SymbolSuccess, info.Name)
	return nil
}

// connectionJSON is one saved connection in --json output.
type connectionJSON struct {
	ID      int         `json:"id"`
	Name    string      `json:"name"`
	Host    string      `json:"host"`
	Port    string      `json:"port"`
	URL     string      `json:"url"`
	Reached *bool       `json:"reached,omitempty"`
	GPUs    []deviceRow `json:"gpus,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type deviceRow struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	Utilization   float64 `json:"utilization"`
	MemoryPercent float64 `json:"memory_percent"`
	Temperature   float64 `json:"temperature"`
}

func deviceRows(samples []telemetry.Sample) []deviceRow {
	rows := make([]deviceRow, len(samples))
	for i, smp := range samples {
		rows[i] = deviceRow{
			Index:         smp.Index,
			Name:          smp.Name,
			MemoryTotalGB: telemetry.MemoryGB(smp.MemoryTotal),
			Utilization:   smp.Utilization,
			MemoryPercent: smp.MemoryPercent(),
			Temperature:   smp.Temperature,
		}
	}
	return rows
}

// connList prints saved connections, optionally probing each.
func connList(w io.Writer, check bool, timeout time.Duration) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	conns := s.mgr.Connections()
	if len(conns) == 0 {
		if MachineMode() {
			return WriteJSONSuccess(w, []connectionJSON{})
		}
		fmt.Fprintln(w, "No connections saved.")
		fmt.Fprintln(w, "\nAdd one with: gpuwatch conn add")
		return nil
	}

	out := make([]connectionJSON, len(conns))
	rows := make([]ui.ConnectionRow, len(conns))
	for i, c := range conns {
		out[i] = connectionJSON{ID: c.ID, Name: c.Name, Host: c.Host, Port: c.Port, URL: c.URL}
		rows[i] = ui.ConnectionRow{ID: c.ID, Name: c.Name, URL: c.URL}
		if !check {
			continue
		}

		res, err := telemetry.Probe(context.Background(), dialerFor(s.cfg.Policy()), c.URL, timeout)
		reached := err == nil
		out[i].Reached = &reached
		rows[i].Checked = true
		rows[i].Connected = reached
		if err != nil {
			out[i].Error = errors.ShortMessage(err)
			rows[i].Detail = shortProbeError(err)
			continue
		}
		out[i].GPUs = deviceRows(res.Samples)
		rows[i].Detail = fmt.Sprintf("%s, %s", util.Count(len(res.Samples), "GPU"),
			res.Latency.Round(time.Millisecond))
	}

	if MachineMode() {
		return WriteJSONSuccess(w, out)
	}
	fmt.Fprintln(w, ui.RenderConnectionTable(rows))
	return nil
}

// connTest dials connections, sends /gpu once and prints what came back.
func connTest(w io.Writer, opts ConnTestOptions) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}

	type target struct {
		name string
		url  string
	}
	var targets []target

	switch {
	case opts.Ref == "":
		for _, c := range s.mgr.Connections() {
			targets = append(targets, target{c.Name, c.URL})
		}
		if len(targets) == 0 {
			return errors.NewValidation("No connections saved",
				"Add one with 'gpuwatch conn add', or test an address: gpuwatch conn connect-test <host:port>")
		}
	default:
		if info, err := s.lookupConnection(opts.Ref); err == nil {
			targets = append(targets, target{info.Name, info.URL})
		} else if host, port, ok := splitHostPort(opts.Ref); ok {
			targets = append(targets, target{opts.Ref, s.dialURL(host, port)})
		} else {
			return err
		}
	}

	var results []connectionJSON
	failed := 0
	for _, t := range targets {
		var res telemetry.ProbeResult
		var err error
		if MachineMode() {
			res, err = telemetry.Probe(context.Background(), dialerFor(s.cfg.Policy()), t.url, opts.Timeout)
		} else {
			res, err = probeWithSpinner(w, s, t.name, t.url, opts.Timeout)
		}

		reached := err == nil
		entry := connectionJSON{Name: t.name, URL: t.url, Reached: &reached}
		if err != nil {
			failed++
			entry.Error = errors.ShortMessage(err)
			if !MachineMode() {
				fmt.Fprintf(w, "    %s\n", ui.ErrorStyle().Render(shortProbeError(err)))
			}
		} else {
			entry.GPUs = deviceRows(res.Samples)
			if !MachineMode() {
				printProbeResult(w, res)
			}
		}
		results = append(results, entry)
	}

	if MachineMode() {
		if err := WriteJSONSuccess(w, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.New(errors.ErrTransport,
			fmt.Sprintf("%d of %s unreachable", failed, util.Count(len(targets), "connection")),
			"Check the metrics server is running on each failing host")
	}
	return nil
}

func printProbeResult(w io.Writer, res telemetry.ProbeResult) {
	muted := ui.MutedStyle()
	if res.Greeting.Status != "" {
		fmt.Fprintf(w, "    %s\n", muted.Render("server: "+res.Greeting.Status))
	}
	if len(res.Samples) == 0 {
		fmt.Fprintf(w, "    %s\n", muted.Render("no GPUs reported"))
	}
	for _, d := range deviceRows(res.Samples) {
		fmt.Fprintf(w, "    GPU%d %-24s %6.2f GB  util %3.0f%%  mem %3.0f%%  temp %3.0f°C\n",
			d.Index, d.Name, d.MemoryTotalGB, d.Utilization, d.MemoryPercent, d.Temperature)
	}
	if res.Malformed > 0 {
		fmt.Fprintf(w, "    %s %s skipped\n", ui.SymbolWarning, util.Count(res.Malformed, "malformed frame"))
	}
}

func shortProbeError(err error) string {
	var probeErr *telemetry.ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErr.Reason.String()
	}
	return errors.ShortMessage(err)
}

// splitHostPort accepts "host:port" and "[v6]:port".
func splitHostPort(ref string) (string, string, bool) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	host, port := ref[:i], ref[i+1:]
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if _, err := strconv.Atoi(port); err != nil || host == "" {
		return "", "", false
	}
	return host, port, true
}
