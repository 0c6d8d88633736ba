package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskmaster/internal/auth"
	"taskmaster/internal/localstore"
	"taskmaster/internal/model"
	"taskmaster/internal/remote"
	syncengine "taskmaster/internal/sync"
	"taskmaster/pkg/config"
	"taskmaster/pkg/logger"
)

var tokenFlag string

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "Offline-first task client",
	Long: `taskctl keeps a local task cache and syncs it with the task API.

Every command reads and writes the local cache first; changes are pushed
to the server in the background and the cache catches up from the server
stream, so the client stays usable without a connection.`,
	SilenceUsage: true,
}

// session bundles everything a command needs to talk to the sync engine.
type session struct {
	engine *syncengine.Engine
	creds  syncengine.StaticCredentials
	store  *localstore.Store
	log    *zap.Logger
}

// task loads one task from the local cache, failing clearly when the id
// is unknown instead of returning nil.
func (s *session) task(ctx context.Context, id string) (*model.Task, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("no task %s in the local cache", id)
	}
	return t, nil
}

func (s *session) close() {
	s.engine.StopListening()
	s.engine.Wait()
	s.store.Close()
	s.log.Sync()
}

func newSession() (*session, error) {
	token := tokenFlag
	if token == "" {
		token = os.Getenv("TASKMASTER_TOKEN")
	}
	if token == "" {
		return nil, errors.New("no token: pass --token or set TASKMASTER_TOKEN")
	}

	owner := auth.OwnerFromToken(token)
	if owner == "" {
		return nil, errors.New("token carries no subject")
	}

	cfg := config.Load()
	log := logger.New(cfg.Log)

	store, err := localstore.Open(cfg.LocalStore.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}

	client := remote.NewClient(cfg.Remote.BaseURL, log)
	engine := syncengine.New(store, client, log)

	return &session{
		engine: engine,
		creds:  syncengine.StaticCredentials{Owner: owner, Token: token},
		store:  store,
		log:    log,
	}, nil
}

var (
	addDesc string
	addDue  string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		var desc *string
		if addDesc != "" {
			desc = &addDesc
		}
		var due *time.Time
		if addDue != "" {
			parsed, err := model.ParseInstant(addDue)
			if err != nil {
				return fmt.Errorf("bad due date %q: %w", addDue, err)
			}
			due = &parsed
		}

		if err := s.engine.AddTask(cmd.Context(), s.creds, args[0], desc, due); err != nil {
			return err
		}
		fmt.Println("added")
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks from the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		snapshots := s.engine.ObserveTasks(ctx, s.creds)
		printTasks(<-snapshots)
		return nil
	},
}

var undoFlag bool

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done (or not done with --undo)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		task, err := s.task(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.engine.UpdateTaskStatus(cmd.Context(), s.creds, *task, !undoFlag)
	},
}

var (
	editTitle string
	editDesc  string
	editDue   string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a task's title, description or due date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		task, err := s.task(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		edited := *task
		if cmd.Flags().Changed("title") {
			edited.Title = editTitle
		}
		if cmd.Flags().Changed("desc") {
			if editDesc == "" {
				edited.Description = nil
			} else {
				edited.Description = &editDesc
			}
		}
		if cmd.Flags().Changed("due") {
			if editDue == "" {
				edited.DueDate = nil
			} else {
				parsed, err := model.ParseInstant(editDue)
				if err != nil {
					return fmt.Errorf("bad due date %q: %w", editDue, err)
				}
				formatted := model.FormatInstant(parsed)
				edited.DueDate = &formatted
			}
		}

		return s.engine.UpdateTaskDetails(cmd.Context(), s.creds, edited)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		task, err := s.task(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.engine.DeleteTask(cmd.Context(), s.creds, *task)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the task list live, syncing from the server stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		s.engine.StartListeningForRemoteUpdates(ctx, s.creds)
		snapshots := s.engine.ObserveTasks(ctx, s.creds)

		for {
			select {
			case tasks, ok := <-snapshots:
				if !ok {
					return nil
				}
				fmt.Println("----")
				printTasks(tasks)
			case <-quit:
				return nil
			}
		}
	},
}

func printTasks(tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, t := range tasks {
		mark := " "
		if t.IsDone {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s  %s", mark, t.ID, t.Title)
		if t.DueDate != nil {
			line += "  due " + *t.DueDate
		}
		fmt.Println(line)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token (defaults to TASKMASTER_TOKEN)")

	addCmd.Flags().StringVar(&addDesc, "desc", "", "task description")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date, RFC 3339")

	doneCmd.Flags().BoolVar(&undoFlag, "undo", false, "mark the task as not done")

	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editDesc, "desc", "", "new description, empty clears it")
	editCmd.Flags().StringVar(&editDue, "due", "", "new due date, empty clears it")

	rootCmd.AddCommand(addCmd, lsCmd, doneCmd, editCmd, rmCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
