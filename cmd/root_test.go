package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rms-node/pds4kit/test"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestSetAllConfig(t *testing.T) {
	dir := test.MustTempDir(t, "config")
	cfg := test.MustWriteFile(t, dir, "pds4kit.toml", `
ledger = "/from/config"
template = "/from/config.xml"
extensions = [".img", ".qub"]
`)
	t.Setenv("PDS4KIT_TEMPLATE", "/from/env.xml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config := flags.String("config", "", "")
	ledger := flags.String("ledger", "", "")
	template := flags.String("template", "", "")
	instrument := flags.String("instrument", "iss", "")
	extensions := flags.StringSlice("extensions", nil, "")
	test.ErrNil(t, flags.Parse([]string{"--config", cfg, "--instrument", "vims"}), "parsing flags")

	test.ErrNil(t, setAllConfig(viper.New(), flags, "PDS4KIT"), "setAllConfig")
	test.MustBe(t, *config, cfg)
	test.MustBe(t, *ledger, "/from/config")
	test.MustBe(t, *template, "/from/env.xml")
	test.MustBe(t, *instrument, "vims")
	test.MustBe(t, *extensions, []string{".img", ".qub"})
}

func TestSetAllConfigMissingFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	test.ErrNil(t, flags.Parse([]string{"--config", filepath.Join(os.TempDir(), "no-such-pds4kit.toml")}), "parsing flags")
	if err := setAllConfig(viper.New(), flags, "PDS4KIT"); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestRootCommand(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rc := NewRootCommand(strings.NewReader(""), stdout, stderr)
	for _, name := range []string{"migrate", "report", "qube"} {
		if c, _, err := rc.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %s missing: %v", name, err)
		}
	}
	rc.SetArgs([]string{"report"})
	if err := rc.Execute(); err == nil || !strings.Contains(err.Error(), "no ledger") {
		t.Fatalf("expected a missing ledger error, got %v", err)
	}
}
