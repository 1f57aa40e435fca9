// Package main is the command line front end of the preprocessor.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ljsking/cmonster"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cmonster [flags] FILE",
	Short: "Preprocess a C-family source file",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("cmonster version {{.Version}}\n")

	rootCmd.Flags().StringArrayP("include", "I", nil, "Directory to search for #include files (repeatable)")
	rootCmd.Flags().StringArrayP("define", "D", nil, "Predefine a macro as NAME[=VALUE] (repeatable)")
	rootCmd.Flags().String("config", "", "YAML manifest of include directories and macro definitions")
	rootCmd.Flags().StringP("output", "o", "", "Write output to file instead of stdout")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("cmonster: ")
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// manifest mirrors the --config file layout.
type manifest struct {
	Include []string `yaml:"include"`
	Define  []struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	} `yaml:"define"`
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	includes, _ := cmd.Flags().GetStringArray("include")
	defines, _ := cmd.Flags().GetStringArray("define")
	configPath, _ := cmd.Flags().GetString("config")
	output, _ := cmd.Flags().GetString("output")

	var m manifest
	if configPath != "" {
		buf, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(buf, &m); err != nil {
			return fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	pp, err := cmonster.New(args[0], append(m.Include, includes...)...)
	if err != nil {
		return err
	}

	for _, d := range m.Define {
		value := d.Value
		if value == "" {
			value = "1"
		}
		if _, err := pp.Define(d.Name, value); err != nil {
			return fmt.Errorf("config %s: %w", configPath, err)
		}
	}
	for _, d := range defines {
		sig, value := splitDefine(d)
		if _, err := pp.Define(sig, value); err != nil {
			return err
		}
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return pp.Preprocess(out)
}

// splitDefine splits NAME[=VALUE]; a bare NAME defines it as 1, the way
// compiler drivers do.
func splitDefine(s string) (sig, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}
