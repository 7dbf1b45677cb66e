package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/termrun"
	"pkt.systems/termrun/internal/appconfig"
	"pkt.systems/termrun/schema"
)

func newDemoCmd() *cobra.Command {
	var cfgPath string
	var debug bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in demo application",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Logging.Debug = true
			}
			theme := schema.DefaultTheme
			if normalized, ok := schema.NormalizeThemeName(cfg.Theme); ok {
				theme = normalized
			}

			runtime := termrun.New(&demoApp{theme: theme}, termrun.Options{
				Width:          cfg.Terminal.Width,
				Height:         cfg.Terminal.Height,
				Debug:          cfg.Logging.Debug,
				TerminalDriver: &cfg.Terminal.Driver,
				StateDir:       cfg.StateDir,
				AppName:        "demo",
				Logger:         logger,
				InitialCommands: []schema.Command{
					termrun.Emit("welcome", schema.InfoMsg{Value: "welcome"}),
				},
			})
			if err := runtime.Start(cmd.Context()); err != nil {
				return err
			}
			return runtime.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

type demoModel struct {
	presses int
	last    string
	status  string
	theme   schema.ThemeName
}

func (m demoModel) ThemeID() schema.ThemeName {
	return m.theme
}

// demoApp counts key presses, cycles themes on 't' and quits on 'q' or
// ctrl-c.
type demoApp struct {
	theme schema.ThemeName
}

func (a *demoApp) Name() string { return "demo" }

func (a *demoApp) Init(args schema.InitArgs) (any, []schema.Command, error) {
	return demoModel{theme: a.theme, status: "starting"}, nil, nil
}

func (a *demoApp) Update(msg schema.Message, model any) (any, []schema.Command, error) {
	m, ok := model.(demoModel)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected model %T", model)
	}
	switch msg := msg.(type) {
	case schema.KeyPressMsg:
		if msg.Key == schema.KeyRune && msg.Mods.Has(schema.ModCtrl) && msg.Rune == 'c' {
			return m, []schema.Command{termrun.Quit()}, nil
		}
		if msg.Key == schema.KeyRune && msg.Rune == 'q' {
			return m, []schema.Command{termrun.Quit()}, nil
		}
		if msg.Key == schema.KeyRune && msg.Rune == 't' {
			m.theme = nextTheme(m.theme)
			return m, nil, nil
		}
		m.presses++
		m.last = keyLabel(msg)
		return m, nil, nil
	case schema.MouseMsg:
		m.last = fmt.Sprintf("mouse %s %s at %d,%d", msg.Button, msg.Action, msg.X, msg.Y)
		return m, nil, nil
	case schema.TextInputMsg:
		m.last = fmt.Sprintf("text %q", msg.Text)
		return m, nil, nil
	case schema.CommandResultMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("command %s failed: %v", msg.Command, msg.Err)
		} else {
			m.status = fmt.Sprintf("command %s done", msg.Command)
		}
		return m, nil, nil
	case schema.InfoMsg:
		m.status = fmt.Sprintf("%v", msg.Value)
		return m, nil, nil
	default:
		return m, nil, nil
	}
}

func (a *demoApp) View(rc schema.RenderContext) schema.View {
	m, ok := rc.Model.(demoModel)
	if !ok {
		return schema.Text("no model")
	}
	return schema.Column(
		schema.Box(
			schema.JustifiedRow(
				schema.Text("termrun demo"),
				schema.Text("theme: "+string(rc.Theme)),
			),
			schema.Text(fmt.Sprintf("presses: %d", m.presses)),
			schema.Text("last input: "+m.last),
			schema.Text("status: "+m.status),
		),
		schema.Text("press t to cycle themes, q to quit"),
	)
}

func nextTheme(current schema.ThemeName) schema.ThemeName {
	themes := schema.AvailableThemes()
	for i, name := range themes {
		if name == current {
			return themes[(i+1)%len(themes)]
		}
	}
	return schema.DefaultTheme
}

func keyLabel(msg schema.KeyPressMsg) string {
	if msg.Key == schema.KeyRune {
		return fmt.Sprintf("%q/%s", msg.Rune, msg.Mods)
	}
	return fmt.Sprintf("%s/%s", msg.Key, msg.Mods)
}
