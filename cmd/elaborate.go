package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluwireless/blade/checker"
	"github.com/bluwireless/blade/config"
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/elaborate"
	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/schema"
	"github.com/bluwireless/blade/util"

	"github.com/spf13/cobra"
)

var elaborateTop string
var elaborateIncludes []string
var elaborateOutput string
var elaborateDepth int
var elaborateRunChecks bool
var elaborateStrict bool

var elaborateCmd = &cobra.Command{
	Use:   "elaborate [flags] <schema files or directories>",
	Args:  cobra.MinimumNArgs(1),
	Short: "Elaborates a hardware description into a design project",
	Long: `Loads tagged YAML schema files, resolves the named top declaration and
elaborates it into a fully resolved design project written out as JSON.`,
	Run: runElaborate,
}

func init() {
	elaborateCmd.Flags().StringVarP(&elaborateTop, "top", "t", "", "Name of the top declaration to elaborate")
	elaborateCmd.Flags().StringArrayVarP(&elaborateIncludes, "include", "I", nil, "Additional directories searched for schema files")
	elaborateCmd.Flags().StringVarP(&elaborateOutput, "output", "o", "", "Path of the output JSON file (default: stdout)")
	elaborateCmd.Flags().IntVarP(&elaborateDepth, "depth", "d", 0, "Maximum hierarchy depth to elaborate (0: unlimited)")
	elaborateCmd.Flags().BoolVar(&elaborateRunChecks, "run-checks", false, "Run design rule checks after elaboration")
	elaborateCmd.Flags().BoolVar(&elaborateStrict, "strict", false, "Treat field layout warnings as errors")
	rootCmd.AddCommand(elaborateCmd)
}

// collectSchemaFiles expands every argument to the YAML files it names,
// recursing into directories.
func collectSchemaFiles(paths []string) ([]string, error) {
	var files []string
	for _, arg := range paths {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// loadScope parses every schema file into a fresh scope.
func loadScope(args []string, includes []string) (*elaborate.Scope, error) {
	files, err := collectSchemaFiles(append(append([]string{}, args...), includes...))
	if err != nil {
		return nil, err
	}
	scope := elaborate.NewScope()
	for _, file := range files {
		log.Debug("Loading %s\n", file)
		decls, defines, err := schema.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		for _, decl := range decls {
			if err := scope.Register(decl); err != nil {
				return nil, err
			}
		}
		for _, define := range defines {
			scope.AddDefine(define)
		}
	}
	log.Debug("Loaded %d schema files\n", len(files))
	return scope, nil
}

func elaborateProject(args []string) (*design.Project, error) {
	cfg := config.GetConfig()

	scope, err := loadScope(args, append(append([]string{}, cfg.Include...), elaborateIncludes...))
	if err != nil {
		return nil, err
	}

	if elaborateTop == "" {
		return nil, fmt.Errorf("no top declaration given, use --top")
	}
	top := scope.Lookup(elaborateTop, schema.KindAny)
	if top == nil {
		return nil, fmt.Errorf("could not find top declaration %q in the loaded schema files", elaborateTop)
	}

	opts := elaborate.Options{
		MaxDepth: cfg.MaxDepth,
		Strict:   cfg.Strict,
	}
	if elaborateDepth > 0 {
		opts.MaxDepth = elaborateDepth
	}
	if elaborateStrict {
		opts.Strict = true
	}

	return elaborate.Elaborate(top, scope, opts)
}

func writeProject(project *design.Project, output string) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	util.WriteFile(output, append(data, '\n'))
	log.Success("Wrote project to %s\n", output)
	return nil
}

func runElaborate(cmd *cobra.Command, args []string) {
	project, err := elaborateProject(args)
	if err != nil {
		log.Fatal("%s\n", err)
	}

	if elaborateRunChecks {
		if violations := checker.Run(project); len(violations) > 0 {
			log.Error("%d rule violations detected\n", len(violations))
		}
	}

	if err := writeProject(project, elaborateOutput); err != nil {
		log.Fatal("%s\n", err)
	}
	if log.ErrorOccured() {
		os.Exit(1)
	}
}
