package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/metrics"
	"github.com/nomis52/vetflow/server"
	"github.com/nomis52/vetflow/server/runner"
	"github.com/nomis52/vetflow/session"
	"github.com/nomis52/vetflow/store/backend"
	"github.com/nomis52/vetflow/workflows/builtin"
)

var errStalled = errors.New("workflow is waiting without an open dialog")

func runCmd(configPath *string) *cobra.Command {
	var (
		user    string
		objects []string
	)
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow, answering its dialogs on stdin",
		Example: `  vetflow -c config.yaml run checkin --user user:vet-1
  vetflow -c config.yaml run weigh --user user:vet-1 --object patient:p-3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, *configPath, args[0], user, objects)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Reference of the user running the workflow, as kind:id")
	cmd.Flags().StringSliceVar(&objects, "object", nil, "Reference of an object handed to the workflow, as kind:id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runWorkflow(cmd *cobra.Command, configPath, name, userRef string, objectRefs []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	objects, closer, err := backend.Open(ctx, cfg.Store, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closer.Close()

	seed, err := server.EnsurePractice(ctx, objects, cfg.Practice)
	if err != nil {
		return err
	}

	ref, err := archetype.ParseReference(userRef)
	if err != nil {
		return err
	}
	user, err := objects.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	var supplied []archetype.Object
	for _, s := range objectRefs {
		ref, err := archetype.ParseReference(s)
		if err != nil {
			return err
		}
		obj, err := objects.Get(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", s, err)
		}
		supplied = append(supplied, obj)
	}

	var runnerOpts []runner.Option
	if cfg.Monitoring.PushURL != "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("error getting hostname: %w", err)
		}
		job := cfg.Monitoring.JobName
		if job == "" {
			job = jobName
		}
		reg := metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.PushURL,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      job,
			Instance: hostname,
			Logger:   logger.Logger,
		})
		tm, err := metrics.NewTaskMetrics(reg)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, runner.WithTaskMetrics(tm))
	}

	sessions := session.NewManager(
		session.WithHistorySize(cfg.Session.HistorySize),
		session.WithLogger(logger.Logger),
	)
	defer sessions.Close()
	sess, err := sessions.Login(user, seed...)
	if err != nil {
		return err
	}

	r := runner.New(logger.Logger, staticConfig{&cfg}, builtin.Registry(), objects, runnerOpts...)
	defer r.Shutdown()

	if _, err := r.Run(sess, name, supplied...); err != nil {
		return err
	}
	c := newConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	if err := drive(r, sess, c); err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), r, sess)
}

// drive answers the session's dialogs until its run finishes.
func drive(r *runner.Runner, sess *session.Session, c *console) error {
	shown := 0
	for r.IsRunning(sess.ID) {
		shown = c.showErrors(sess.UI.Errors(), shown)

		pending := sess.UI.Pending()
		if len(pending) == 0 {
			return errStalled
		}
		d := pending[0]
		if err := sess.UI.Respond(d.ID, c.prompt(d)); err != nil {
			fmt.Fprintf(c.out, "%v\n", err)
		}
	}
	c.showErrors(sess.UI.Errors(), shown)
	return nil
}

func report(w io.Writer, r *runner.Runner, sess *session.Session) error {
	st, ok := r.Status(sess.ID)
	if !ok {
		return errors.New("run disappeared")
	}
	fmt.Fprintf(w, "\n%s %s in %s\n", st.Workflow, st.Result, st.Duration())
	for _, key := range sess.Global.Keys() {
		fmt.Fprintf(w, "  %-12s %s\n", key, describe(sess.Global.Get(key)))
	}
	if st.Error != "" {
		return errors.New(st.Error)
	}
	return nil
}
