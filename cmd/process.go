package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/upsot-pipeline/orchestrator"
	"github.com/maastricht-university/upsot-pipeline/params"
)

var processFlags struct {
	count       int
	sensitivity float64
	byRelevance bool
	scriptPath  string
	formats     []string
}

var processCmd = &cobra.Command{
	Use:   "process <path/to/audio>",
	Short: "Transcribe one recording and write its up-sots",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	f := processCmd.Flags()
	f.IntVar(&processFlags.count, "count", 0, "number of up-sots (default from config)")
	f.Float64Var(&processFlags.sensitivity, "sensitivity", 0, "minimum relevance in [0,1] (default from config)")
	f.BoolVar(&processFlags.byRelevance, "sort-by-relevance", true, "rank by relevance instead of taking the earliest segments")
	f.StringVar(&processFlags.scriptPath, "script", "", "reference script file")
	f.StringSliceVar(&processFlags.formats, "formats", nil, "output formats (txt,pdf,edl; default all)")
}

// partialFromFlags only carries the flags the user actually set.
func partialFromFlags(cmd *cobra.Command) *params.Partial {
	var p params.Partial
	set := false
	if cmd.Flags().Changed("count") {
		p.UpSotsCount = &processFlags.count
		set = true
	}
	if cmd.Flags().Changed("sensitivity") {
		p.Sensitivity = &processFlags.sensitivity
		set = true
	}
	if cmd.Flags().Changed("sort-by-relevance") {
		p.SortByRelevance = &processFlags.byRelevance
		set = true
	}
	if !set {
		return nil
	}
	return &p
}

func runProcess(cmd *cobra.Command, args []string) error {
	_, log, p, err := setup()
	if err != nil {
		return err
	}

	opts := orchestrator.RunOptions{
		Parameters: partialFromFlags(cmd),
		Formats:    processFlags.formats,
	}
	if processFlags.scriptPath != "" {
		b, err := os.ReadFile(processFlags.scriptPath)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		opts.Script = string(b)
	}

	res, err := p.Run(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"session_id": res.SessionID,
		"up_sots":    len(res.Selection.UpSots),
		"relaxed":    res.Selection.Relaxed,
	}).Info("done")

	formats := make([]string, 0, len(res.Files))
	for f := range res.Files {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	out := cmd.OutOrStdout()
	for _, s := range res.Selection.UpSots {
		fmt.Fprintf(out, "[%8.2f - %8.2f] %s\n", s.Start, s.End, strings.TrimSpace(s.Text))
	}
	for _, f := range formats {
		fmt.Fprintf(out, "%s: %s\n", f, res.Files[f].Path)
	}
	return nil
}
