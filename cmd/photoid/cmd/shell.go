package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"
	"go-photoid/internal/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive conversion session",
	Long: `Starts an interactive session. Select a file, choose a size, submit,
then save, copy or share the result. Selecting a new file while a request
is running abandons that request. Type 'help' for the command list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := newSession()
		defer sess.Close()
		return runShell(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout(), globalConfig.OutputDir)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	addConvertFlags(shellCmd)
}

const shellHelp = `Commands:
  select PATH        choose the source photo
  mode preset|custom switch size mode
  preset ID          choose a preset (see 'presets')
  size W H           set custom width and height in pixels
  submit             start converting
  wait               wait for the running conversion
  status             show the session state
  save [DIR]         save the result
  copy               copy the result to the clipboard
  share              share the result
  presets            list presets
  quit               leave
`

// syncWriter serializes writes from the prompt loop and session listeners.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runShell reads commands from in until EOF or quit.
func runShell(ctx context.Context, sess *session.Session, in io.Reader, w io.Writer, outputDir string) error {
	out := &syncWriter{w: w}
	unsubscribe := sess.OnChange(func(snap session.Snapshot) {
		switch snap.State {
		case models.StateSucceeded, models.StateFailed:
			fmt.Fprintf(out, "\n%s\n", describeSnapshot(snap))
		}
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "photoid> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if quit := shellDispatch(ctx, sess, out, outputDir, fields); quit {
				return nil
			}
		}
		fmt.Fprint(out, "photoid> ")
	}
	return scanner.Err()
}

func shellDispatch(ctx context.Context, sess *session.Session, out io.Writer, outputDir string, fields []string) bool {
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprint(out, shellHelp)
	case "select":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: select PATH")
			return false
		}
		if err := sess.SelectFile(args[0]); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, describeSnapshot(sess.Snapshot()))
	case "mode":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: mode preset|custom")
			return false
		}
		mode, err := outputspec.ParseMode(args[0])
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		sess.SetMode(mode)
		fmt.Fprintf(out, "size: %s\n", sess.Snapshot().Input.Build())
	case "preset":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: preset ID")
			return false
		}
		id := outputspec.PresetID(args[0])
		if _, ok := outputspec.LookupPreset(id); !ok {
			fmt.Fprintf(out, "error: %v: %s\n", outputspec.ErrUnknownPreset, args[0])
			return false
		}
		sess.SetPreset(id)
		sess.SetMode(outputspec.ModePreset)
		fmt.Fprintf(out, "size: %s\n", sess.Snapshot().Input.Build())
	case "size":
		if len(args) != 2 {
			fmt.Fprintln(out, "usage: size W H")
			return false
		}
		w, errW := strconv.Atoi(args[0])
		h, errH := strconv.Atoi(args[1])
		if errW != nil || errH != nil {
			fmt.Fprintln(out, "error: width and height must be whole numbers")
			return false
		}
		sess.SetCustomSize(w, h)
		sess.SetMode(outputspec.ModeCustom)
		fmt.Fprintf(out, "size: %s\n", sess.Snapshot().Input.Build())
	case "submit":
		if err := sess.Submit(ctx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, describeSnapshot(sess.Snapshot()))
	case "wait":
		if _, err := sess.Wait(ctx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "status":
		printStatus(out, sess)
	case "save":
		dir := outputDir
		if len(args) > 0 {
			dir = args[0]
		}
		path, err := sess.Save(dir)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "saved %s\n", path)
	case "copy":
		if err := sess.CopyToClipboard(ctx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, "copied to clipboard")
	case "share":
		if !sess.CanShare() {
			fmt.Fprintln(out, "sharing is not available (set Share.Command in config)")
			return false
		}
		if err := sess.Share(ctx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "presets":
		printPresets(out)
	default:
		fmt.Fprintf(out, "unknown command %q, type 'help'\n", command)
	}
	return false
}

func printStatus(out io.Writer, sess *session.Session) {
	snap := sess.Snapshot()
	fmt.Fprintf(out, "state:  %s\n", snap.State)
	if snap.HasSource {
		fmt.Fprintf(out, "source: %s\n", snap.SourceName)
	}
	fmt.Fprintf(out, "size:   %s\n", snap.Input.Build())
	if snap.Artifact != nil {
		fmt.Fprintf(out, "result: %s (%s)\n", snap.Artifact.Filename, snap.Artifact.MediaType)
	}
	if snap.Err != nil {
		fmt.Fprintf(out, "error:  %s\n", snap.Err.Message)
	}
	actions := []string{}
	if snap.CanSubmit() {
		actions = append(actions, "submit")
	}
	if snap.Artifact != nil {
		actions = append(actions, "save", "copy")
		if sess.CanShare() {
			actions = append(actions, "share")
		}
	}
	if len(actions) > 0 {
		fmt.Fprintf(out, "next:   %s\n", strings.Join(actions, ", "))
	}
}
