package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "casegest",
		Short:         "Build a case timeline and mindmap from legal documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml, json or toml)")

	// Settings that are convenient to override per run. Everything else comes
	// from the config file or the environment.
	pf := root.PersistentFlags()
	pf.String("llm-provider", "", "text generation backend: llamacpp, claude or gemini")
	pf.String("llm-endpoint", "", "llama.cpp completion endpoint")
	pf.String("llm-model", "", "model name for hosted backends")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "json or text")

	root.AddCommand(serveCmd(&cfgPath), extractCmd(&cfgPath), mindmapCmd(&cfgPath))
	return root
}

func usageError(cmd *cobra.Command, format string, args ...any) error {
	return fmt.Errorf("%s: %s", cmd.CommandPath(), fmt.Sprintf(format, args...))
}
