package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/termrun/schema"
)

func TestRootCmdSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"demo", "config", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"config", "init", "-o", path})
	root.SetOut(&bytes.Buffer{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "config_version:") {
		t.Fatalf("unexpected config contents %q", data)
	}
}

func TestVersionCmdPrintsModule(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"version"})
	root.SetOut(&out)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "termrun") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestDemoAppQuitKeys(t *testing.T) {
	app := &demoApp{theme: schema.DefaultTheme}
	model, _, err := app.Init(schema.InitArgs{Width: 80, Height: 24})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, key := range []schema.KeyPressMsg{
		{Key: schema.KeyRune, Rune: 'q'},
		{Key: schema.KeyRune, Rune: 'c', Mods: schema.ModCtrl},
	} {
		_, commands, err := app.Update(key, model)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(commands) != 1 || commands[0].Name != "quit" {
			t.Fatalf("expected quit command for %+v, got %+v", key, commands)
		}
	}
}

func TestDemoAppCyclesTheme(t *testing.T) {
	app := &demoApp{theme: schema.DefaultTheme}
	model, _, _ := app.Init(schema.InitArgs{})
	next, _, err := app.Update(schema.KeyPressMsg{Key: schema.KeyRune, Rune: 't'}, model)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	m := next.(demoModel)
	if m.theme == schema.DefaultTheme {
		t.Fatalf("theme did not cycle")
	}
}
