package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/modpipe/internal/data"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/util"
)

const defaultJobCommandTimeout = 2 * time.Minute

type requeueStuckOptions struct {
	Type string
	All  bool
}

func runJobStats(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, defaultJobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if err := writeln(w, "Type\tPending\tProcessing\tCompleted\tFailed"); err != nil {
			return err
		}
		for _, jobType := range model.JobTypes() {
			stats, statsErr := repo.Stats(ctx, jobType)
			if statsErr != nil {
				return fmt.Errorf("stats for %s: %w", jobType, statsErr)
			}
			if err := writef(w, "%s\t%d\t%d\t%d\t%d\n",
				jobType,
				stats.Pending,
				stats.Processing,
				stats.Completed,
				stats.Failed,
			); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush job stats: %w", err)
		}
		return nil
	})
}

func runJobShow(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: job-show <job-id>")
	}
	id := fs.Arg(0)

	return withDatabase(cmdCtx, defaultJobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		job, err := repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get job %s: %w", id, err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		rows := [][2]string{
			{"ID", job.ID},
			{"Type", string(job.Type)},
			{"Status", string(job.Status)},
			{"Client", job.ClientID},
			{"Retries", fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries)},
			{"Scheduled", job.ScheduledAt.Format(time.RFC3339)},
			{"Processing", util.FormatProcessingDuration(jobProcessingDuration(job))},
		}
		if job.CommentID != nil {
			rows = append(rows, [2]string{"Comment", *job.CommentID})
		}
		if job.LastError != nil {
			rows = append(rows, [2]string{"Last error", *job.LastError})
		}
		if job.Result != nil {
			rows = append(rows,
				[2]string{"Moderation", fmt.Sprintf("%s (%.2f)", job.Result.ModerationResult, job.Result.Confidence)},
				[2]string{"Severity", job.Result.SeverityScore.String()},
				[2]string{"Reasoning", job.Result.Reasoning},
				[2]string{"Scored in", util.FormatProcessingDuration(
					time.Duration(job.Result.ProcessingDurationMS) * time.Millisecond,
				)},
			)
		}
		for _, row := range rows {
			if writeErr := writef(w, "%s\t%s\n", row[0], row[1]); writeErr != nil {
				return writeErr
			}
		}
		if flushErr := w.Flush(); flushErr != nil {
			return fmt.Errorf("flush job details: %w", flushErr)
		}
		return nil
	})
}

// jobProcessingDuration reports how long a job has been (or was) in processing.
func jobProcessingDuration(job *model.Job) time.Duration {
	if job.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return end.Sub(*job.StartedAt)
}

func runRequeueStuck(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequeueStuckFlags(args)
	if err != nil {
		return err
	}

	types := model.JobTypes()
	if !opts.All {
		types = []model.JobType{model.JobType(opts.Type)}
	}

	return withDatabase(cmdCtx, defaultJobCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		var total int64
		for _, jobType := range types {
			n, requeueErr := repo.RequeueExpired(ctx, jobType)
			if requeueErr != nil {
				return fmt.Errorf("requeue %s jobs: %w", jobType, requeueErr)
			}
			total += n
			cmdCtx.Logger.Info("requeued expired jobs", "type", jobType, "count", n)
		}

		return writef(os.Stdout, "requeued %d jobs\n", total)
	})
}

func parseRequeueStuckFlags(args []string) (requeueStuckOptions, error) {
	fs := flag.NewFlagSet("requeue-stuck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts requeueStuckOptions
	fs.StringVar(&opts.Type, "type", "", "Job type to requeue (moderate_comment or deliver_webhook)")
	fs.BoolVar(&opts.All, "all", false, "Requeue expired jobs of every type")

	if err := fs.Parse(args); err != nil {
		return requeueStuckOptions{}, err
	}

	if opts.All {
		if opts.Type != "" {
			return requeueStuckOptions{}, errors.New("--type and --all are mutually exclusive")
		}
		return opts, nil
	}

	if opts.Type == "" {
		return requeueStuckOptions{}, errors.New("--type or --all is required")
	}
	if !model.JobType(opts.Type).Valid() {
		return requeueStuckOptions{}, fmt.Errorf("invalid job type %q", opts.Type)
	}
	return opts, nil
}
