package main

import "testing"

func TestBuildRootCmdIncludesServeSubcommand(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	if !names["serve"] {
		t.Fatal("expected serve subcommand to be registered")
	}
}

func TestBuildServeCmdFlags(t *testing.T) {
	cmd := buildServeCmd()
	if cmd.Flags().Lookup("config") == nil {
		t.Fatal("expected --config flag")
	}
	if cmd.Flags().Lookup("debug") == nil {
		t.Fatal("expected --debug flag")
	}
}
