package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-photoid/internal/config"
	"go-photoid/internal/helpers"
	"go-photoid/internal/models"
	"go-photoid/internal/session"
)

var (
	convertModeFlag    string
	convertPresetFlag  string
	convertWidthFlag   int
	convertHeightFlag  int
	convertPatternFlag string
	convertCopyFlag    bool
	convertShareFlag   bool
	outputDirFlag      string
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE...",
	Short: "Convert one or more photos and save the results",
	Long: `Uploads each file to the processing service using the selected preset
or custom size, then saves the converted image into the output directory.
Files are processed one at a time through a single session.`,
	Example: `  photoid convert portrait.jpg
  photoid convert --preset visa_us -o out/ a.jpg b.png
  photoid convert --mode custom --width 600 --height 800 portrait.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	addConvertFlags(convertCmd)
	convertCmd.Flags().BoolVar(&convertCopyFlag, "copy", false, "Copy the last converted image to the clipboard")
	convertCmd.Flags().BoolVar(&convertShareFlag, "share", false, "Share each converted image with the configured share command")
}

// addConvertFlags registers the size selection flags shared by convert, shell and debug print-request.
func addConvertFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&convertModeFlag, "mode", "", "Size mode: preset or custom (overrides config)")
	cmd.Flags().StringVar(&convertPresetFlag, "preset", "", "Preset id, see 'photoid presets' (overrides config)")
	cmd.Flags().IntVar(&convertWidthFlag, "width", 0, "Custom width in pixels (custom mode)")
	cmd.Flags().IntVar(&convertHeightFlag, "height", 0, "Custom height in pixels (custom mode)")
	cmd.Flags().StringVar(&convertPatternFlag, "name-pattern", "", "Result filename pattern, tags {source} {size} {preset} {width} {height}")
	cmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", "", "Directory to save converted images (overrides config)")
}

func convertFlagOverrides(cmd *cobra.Command) *config.CliConvertFlags {
	changed := cmd.Flags().Changed
	flags := &config.CliConvertFlags{}
	if changed("mode") {
		flags.Mode = &convertModeFlag
	}
	if changed("preset") {
		flags.Preset = &convertPresetFlag
		if !changed("mode") {
			// An explicit preset implies preset mode.
			mode := "preset"
			flags.Mode = &mode
		}
	}
	if changed("width") {
		flags.CustomWidth = &convertWidthFlag
	}
	if changed("height") {
		flags.CustomHeight = &convertHeightFlag
	}
	if (changed("width") || changed("height")) && !changed("mode") && !changed("preset") {
		mode := "custom"
		flags.Mode = &mode
	}
	if changed("name-pattern") {
		flags.FilenamePattern = &convertPatternFlag
	}
	if changed("copy") {
		flags.Copy = &convertCopyFlag
	}
	if changed("share") {
		flags.Share = &convertShareFlag
	}
	return flags
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	outputDir := globalConfig.OutputDir
	if !helpers.CheckAndMakeDir(outputDir) {
		return fmt.Errorf("cannot create output directory %s", outputDir)
	}

	sess := newSession()
	defer sess.Close()

	if globalConfig.Convert.Share && !sess.CanShare() {
		log.Warn("Sharing is not available (set Share.Command in config), --share ignored")
	}

	writer := uilive.New()
	writer.Out = cmd.OutOrStdout()
	writer.Start()
	defer writer.Stop()

	unsubscribe := sess.OnChange(func(snap session.Snapshot) {
		fmt.Fprintln(writer, describeSnapshot(snap))
	})
	defer unsubscribe()

	total := len(args)
	failures := 0
	for i, path := range args {
		prefix := fmt.Sprintf("[%d/%d] %s", i+1, total, filepath.Base(path))

		if err := sess.SelectFile(path); err != nil {
			fmt.Fprintf(writer.Newline(), "%s: %v\n", prefix, err)
			failures++
			continue
		}
		if err := sess.Submit(ctx); err != nil {
			fmt.Fprintf(writer.Newline(), "%s: %v\n", prefix, err)
			failures++
			continue
		}

		snap, err := sess.Wait(ctx)
		if err != nil {
			return fmt.Errorf("interrupted while converting %s: %w", path, err)
		}
		if snap.State != models.StateSucceeded {
			fmt.Fprintf(writer.Newline(), "%s: failed: %v\n", prefix, snap.Err)
			failures++
			continue
		}

		savedPath, err := sess.Save(outputDir)
		if err != nil {
			fmt.Fprintf(writer.Newline(), "%s: converted but could not be saved: %v\n", prefix, err)
			failures++
			continue
		}
		fmt.Fprintf(writer.Newline(), "%s -> %s (%s)\n", prefix, savedPath, helpers.BytesToSize(uint64(snap.Artifact.Size())))

		if globalConfig.Convert.Share && sess.CanShare() {
			if err := sess.Share(ctx); err != nil {
				log.WithError(err).Warnf("Could not share %s", savedPath)
			}
		}
		if globalConfig.Convert.Copy && i == total-1 {
			if err := sess.CopyToClipboard(ctx); err != nil {
				log.WithError(err).Warn("Could not copy image to clipboard")
			} else {
				fmt.Fprintf(writer.Newline(), "%s: copied to clipboard\n", prefix)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, total)
	}
	return nil
}

func describeSnapshot(snap session.Snapshot) string {
	switch snap.State {
	case models.StateFileSelected:
		return fmt.Sprintf("%s selected (%s), %s", snap.SourceName, helpers.BytesToSize(uint64(snap.SourceSize)), snap.Input.Build())
	case models.StateSubmitting:
		return fmt.Sprintf("Converting %s to %s...", snap.SourceName, snap.Input.Build())
	case models.StateSucceeded:
		return fmt.Sprintf("%s ready: %s", snap.SourceName, snap.Artifact.Filename)
	case models.StateFailed:
		return fmt.Sprintf("Failed: %v", snap.Err)
	default:
		return snap.State.String()
	}
}
