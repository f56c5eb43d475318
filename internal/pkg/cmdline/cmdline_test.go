package cmdline

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestResolveEnvDefaultPrefersFirstSetKey(t *testing.T) {
	t.Setenv("NANOLAYER_VERBOSE", "true")
	f := &Flag{DefaultValue: false, EnvKeys: []string{"VERBOSE"}}
	resolveEnvDefault(f)
	if f.DefaultValue != true {
		t.Fatalf("DefaultValue = %v, want true", f.DefaultValue)
	}
}

func TestResolveEnvDefaultWithoutPrefix(t *testing.T) {
	t.Setenv("RAW_KEY", "hello")
	f := &Flag{DefaultValue: "", EnvKeys: []string{"RAW_KEY"}, WithoutPrefix: true}
	resolveEnvDefault(f)
	if f.DefaultValue != "hello" {
		t.Fatalf("DefaultValue = %v, want hello", f.DefaultValue)
	}
}

func TestResolveEnvDefaultLeavesDefaultWhenUnset(t *testing.T) {
	f := &Flag{DefaultValue: "fallback", EnvKeys: []string{"NANOLAYER_DEFINITELY_UNSET_XYZ"}}
	resolveEnvDefault(f)
	if f.DefaultValue != "fallback" {
		t.Fatalf("DefaultValue = %v, want fallback", f.DefaultValue)
	}
}

func TestRegisterFlagForAllBindsAcrossCommands(t *testing.T) {
	var v bool
	cmd := &cobra.Command{Use: "root"}
	mgr := NewCommandManager([]*cobra.Command{cmd})
	mgr.RegisterFlagForAll(&Flag{Value: &v, DefaultValue: false, Name: "verbose", ShortHand: "v"})

	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Fatalf("expected a persistent 'verbose' flag to be registered")
	}
}

func TestRegisterFlagForCmdOnlyBindsNamedCommands(t *testing.T) {
	var s string
	a := &cobra.Command{Use: "a"}
	b := &cobra.Command{Use: "b"}
	mgr := NewCommandManager([]*cobra.Command{a, b})
	mgr.RegisterFlagForCmd(&Flag{Value: &s, DefaultValue: "", Name: "asset-regex"}, "a")

	if a.Flags().Lookup("asset-regex") == nil {
		t.Fatalf("expected 'asset-regex' flag on command a")
	}
	if b.Flags().Lookup("asset-regex") != nil {
		t.Fatalf("did not expect 'asset-regex' flag on command b")
	}
}
