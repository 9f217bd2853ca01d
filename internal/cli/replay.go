package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/client"
	"github.com/meltforce/heromissions/internal/feedback"
	"github.com/meltforce/heromissions/internal/journal"
	"github.com/meltforce/heromissions/internal/mission"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/session"
	"github.com/spf13/cobra"
)

// missionDriver is the subset of the mission API a replay needs, served
// either by an in-process session.Manager or by a remote server.
type missionDriver interface {
	start(ctx context.Context, exercise string) (*session.Status, error)
	classify(ctx context.Context, id uuid.UUID, ev mission.Event) (*session.Step, error)
	end(ctx context.Context, id uuid.UUID) (*models.MissionResult, error)
}

// localUserID matches the server's dev identity.
const localUserID = 1

type localDriver struct{ m *session.Manager }

func (d localDriver) start(ctx context.Context, exercise string) (*session.Status, error) {
	return d.m.Start(ctx, localUserID, exercise)
}

func (d localDriver) classify(ctx context.Context, id uuid.UUID, ev mission.Event) (*session.Step, error) {
	return d.m.Classify(ctx, id, ev.Label, ev.Confidence)
}

func (d localDriver) end(ctx context.Context, id uuid.UUID) (*models.MissionResult, error) {
	return d.m.End(ctx, id)
}

type remoteDriver struct{ c *client.Client }

func (d remoteDriver) start(ctx context.Context, exercise string) (*session.Status, error) {
	return d.c.StartMission(ctx, exercise)
}

func (d remoteDriver) classify(ctx context.Context, id uuid.UUID, ev mission.Event) (*session.Step, error) {
	return d.c.Classify(ctx, id, ev.Label, ev.Confidence)
}

func (d remoteDriver) end(ctx context.Context, id uuid.UUID) (*models.MissionResult, error) {
	return d.c.EndMission(ctx, id)
}

// replayReport is the --format json output.
type replayReport struct {
	Source string                `json:"source"`
	Steps  []session.Step        `json:"steps"`
	Result *models.MissionResult `json:"result"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <exercise>",
	Short: "Replay a recording of classifier output through a mission",
	Long: `Replay feeds JSON-lines classification events ({"label":"up","confidence":0.93})
through a mission for the given exercise and prints the feedback a player
would have received.

Without --server the mission runs in-process against --catalog. With
--journal the finished mission is recorded locally, and a recording that was
already journaled is skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventsPath, _ := cmd.Flags().GetString("events")
		serverURL, _ := cmd.Flags().GetString("server")
		apiKey, _ := cmd.Flags().GetString("api-key")
		journalDir, _ := cmd.Flags().GetString("journal")
		format, _ := cmd.Flags().GetString("format")
		force, _ := cmd.Flags().GetBool("force")

		if format != "text" && format != "json" {
			return fmt.Errorf("unknown format %q (want text or json)", format)
		}

		data, err := readEvents(cmd, eventsPath)
		if err != nil {
			return err
		}
		events, err := parseEvents(bytes.NewReader(data))
		if err != nil {
			return err
		}
		source, err := journal.HashSource(bytes.NewReader(data))
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		var j *journal.Journal
		if journalDir != "" {
			if j, err = journal.Open(journalDir); err != nil {
				return err
			}
			defer j.Close()
			seen, err := j.HasSource(ctx, source)
			if err != nil {
				return fmt.Errorf("checking journal: %w", err)
			}
			if seen && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "recording %s already journaled, skipping (use --force to replay)\n", source[:12])
				return nil
			}
		}

		var driver missionDriver
		if serverURL != "" {
			driver = remoteDriver{c: client.NewClient(serverURL, apiKey)}
		} else {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			var rec session.Recorder
			if j != nil {
				rec = session.RecorderFunc(func(ctx context.Context, r *models.MissionResult) error {
					return j.Record(ctx, r, source)
				})
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			driver = localDriver{m: session.NewManager(cat, rec, log)}
		}

		report, err := replay(ctx, driver, args[0], events)
		if err != nil {
			return err
		}
		report.Source = source

		// Local missions are journaled by the manager's recorder on end.
		if j != nil && serverURL != "" {
			if err := j.Record(ctx, report.Result, source); err != nil {
				return err
			}
		}

		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReplay(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	replayCmd.Flags().String("events", "-", "JSON-lines events file, or - for stdin")
	replayCmd.Flags().String("server", "", "replay against a running server at this URL")
	replayCmd.Flags().String("api-key", os.Getenv("HEROMISSIONS_AUTH_API_KEY"), "server API key")
	replayCmd.Flags().String("journal", "", "journal directory for recording replays")
	replayCmd.Flags().String("format", "text", "output format: text or json")
	replayCmd.Flags().Bool("force", false, "replay even if the recording is already journaled")
}

func readEvents(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return data, nil
}

// parseEvents decodes a stream of JSON event objects. Blank lines and plain
// whitespace between objects are allowed.
func parseEvents(r io.Reader) ([]mission.Event, error) {
	dec := json.NewDecoder(r)
	var events []mission.Event
	for {
		var ev mission.Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil, errors.New("recording has no events")
	}
	return events, nil
}

func replay(ctx context.Context, d missionDriver, exercise string, events []mission.Event) (*replayReport, error) {
	st, err := d.start(ctx, exercise)
	if err != nil {
		return nil, err
	}
	report := &replayReport{Steps: make([]session.Step, 0, len(events))}
	for _, ev := range events {
		step, err := d.classify(ctx, st.ID, ev)
		if err != nil {
			return nil, err
		}
		report.Steps = append(report.Steps, *step)
	}
	if report.Result, err = d.end(ctx, st.ID); err != nil {
		return nil, err
	}
	return report, nil
}

func printReplay(w io.Writer, r *replayReport) {
	for i, step := range r.Steps {
		if step.Feedback.Cue == feedback.CueNone {
			continue
		}
		fmt.Fprintf(w, "frame %4d  %-10s reps=%-3d stars=%d  %s\n",
			i+1, step.Feedback.Cue, step.Snapshot.RepetitionCount, step.Snapshot.StarsEarned, step.Feedback.Message)
	}
	res := r.Result
	goal := "not reached"
	if res.GoalReached {
		goal = "reached"
	}
	fmt.Fprintf(w, "\n%s: %d/%d repetitions, %d stars, goal %s\n", res.Exercise, res.Repetitions, res.Goal, res.Stars, goal)
	fmt.Fprintf(w, "events: %d total, %d low confidence, %d mismatched\n",
		res.EventsTotal, res.EventsLowConfidence, res.EventsMismatch)
}
