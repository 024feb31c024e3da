package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/bootonce/pkg/app"
	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/readiness"
	"github.com/arthur-debert/bootonce/pkg/types"
	"github.com/arthur-debert/bootonce/pkg/verify"
)

// Renderer writes status reports in one format
type Renderer struct {
	w      io.Writer
	format Format
	styles Styles
}

// NewRenderer creates a Renderer. FormatAuto must be resolved first.
func NewRenderer(w io.Writer, format Format) (*Renderer, error) {
	if format == FormatAuto {
		return nil, errors.New(errors.ErrInvalidInput, "format must be resolved before rendering")
	}
	r := &Renderer{w: w, format: format}
	if format == FormatTerminal {
		r.styles = DefaultStyles()
	}
	return r, nil
}

// RenderStatus writes an app status report
func (r *Renderer) RenderStatus(st app.Status) error {
	switch r.format {
	case FormatJSON:
		return r.json(st)
	case FormatYAML:
		return r.yaml(st)
	}

	var b strings.Builder
	b.WriteString(r.style("Title", "Bootstrap status") + "\n")
	if r.format == FormatText {
		b.WriteString("\n")
	}

	r.guardLine(&b, "Backend", st.Backend)
	r.guardLine(&b, "App logic", st.AppLogic)
	r.guardLine(&b, "Splash", st.Splash)

	b.WriteString("\n" + r.style("Section", "Readiness") + "\n")
	for _, f := range readiness.Flags {
		mark := r.style("Muted", "pending")
		if st.Readiness[string(f)] {
			mark = r.style("Initialized", "set")
		}
		b.WriteString("  " + r.label(string(f)) + mark + "\n")
	}

	b.WriteString("\n" + r.style("Section", "Triggers") + "\n")
	b.WriteString(fmt.Sprintf("  %stotal %d, handled %d, failed %d\n",
		r.label("dispatcher"), st.Dispatcher.Total, st.Dispatcher.Handled, st.Dispatcher.Failed))
	if st.Dispatcher.First != nil {
		b.WriteString(fmt.Sprintf("  %s%s from %s\n", r.label("first"), st.Dispatcher.First.Kind, st.Dispatcher.First.Source))
	}
	if err := r.byKind(&b, st.Dispatcher.ByKind); err != nil {
		return err
	}

	b.WriteString("\n")
	b.WriteString(r.label("Run") + st.RunID + "\n")
	b.WriteString(r.label("View refreshes") + fmt.Sprint(st.ViewRefreshes) + "\n")
	if st.ProjectID != "" {
		b.WriteString(r.label("Project") + st.ProjectID + "\n")
	}
	if st.User != nil {
		b.WriteString(r.label("User") + st.User.UID + "\n")
	}
	if st.DataPath != "" {
		b.WriteString(r.label("Data path") + st.DataPath + "\n")
	}
	if st.SignInAttempts > 0 || st.SignInRejected > 0 {
		b.WriteString(r.label("Sign-in attempts") + fmt.Sprintf("%d (%d rejected)", st.SignInAttempts, st.SignInRejected) + "\n")
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

// RenderVerify writes the result of a log verification
func (r *Renderer) RenderVerify(res verify.Result) error {
	switch r.format {
	case FormatJSON:
		return r.json(res)
	case FormatYAML:
		return r.yaml(res)
	}

	verdict := r.style("Initialized", "OK")
	if !res.OK() {
		verdict = r.style("Failed", "MISMATCH")
	}
	lines := make([]string, 0, len(res.Lines))
	for _, n := range res.Lines {
		lines = append(lines, fmt.Sprint(n))
	}

	var b strings.Builder
	b.WriteString(verdict + "\n")
	b.WriteString(r.label("marker") + fmt.Sprintf("%q", res.Marker) + "\n")
	if res.RunID != "" {
		b.WriteString(r.label("run") + res.RunID + "\n")
	}
	b.WriteString(r.label("expected") + fmt.Sprint(res.Expected) + "\n")
	b.WriteString(r.label("found") + fmt.Sprint(res.Found) + "\n")
	b.WriteString(r.label("scanned") + fmt.Sprint(res.Scanned) + "\n")
	if len(lines) > 0 {
		b.WriteString(r.label("lines") + strings.Join(lines, ", ") + "\n")
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) guardLine(b *strings.Builder, title string, st types.GuardStatus) {
	state := st.State.String()
	if r.styles != nil {
		state = r.styles.ForState(st.State).Render(state)
	}
	b.WriteString(r.label(title) + state)

	if st.Trigger != nil {
		b.WriteString(r.style("Muted", fmt.Sprintf("  (%s from %s in %s)", st.Trigger.Kind, st.Trigger.Source, st.Duration)))
	}
	b.WriteString("\n")
	b.WriteString(r.style("Muted", fmt.Sprintf("  requests %d, suppressed %d, runs %d", st.Requests, st.Suppressed, st.Runs)) + "\n")
	if st.Err != "" {
		b.WriteString("  " + r.style("Error", st.Err) + "\n")
	}
}

func (r *Renderer) byKind(b *strings.Builder, counts map[types.TriggerKind]int64) error {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	if len(kinds) == 0 {
		return nil
	}

	if r.format == FormatTerminal {
		data := pterm.TableData{{"kind", "count"}}
		for _, k := range kinds {
			data = append(data, []string{k, fmt.Sprint(counts[types.TriggerKind(k)])})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithLeftAlignment().WithData(data).Srender()
		if err != nil {
			return errors.Wrap(err, errors.ErrInternal, "render trigger table")
		}
		for _, line := range strings.Split(table, "\n") {
			b.WriteString("  " + line + "\n")
		}
		return nil
	}

	for _, k := range kinds {
		b.WriteString(fmt.Sprintf("  %s%d\n", r.label(k), counts[types.TriggerKind(k)]))
	}
	return nil
}

func (r *Renderer) label(s string) string {
	if r.styles == nil {
		return fmt.Sprintf("%-22s", s)
	}
	return r.styles.Get("Label").Render(s)
}

func (r *Renderer) style(name, s string) string {
	if r.styles == nil {
		return s
	}
	return r.styles.Get(name).Render(s)
}

func (r *Renderer) json(v interface{}) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) yaml(v interface{}) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
