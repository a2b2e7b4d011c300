package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/app"
	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdesk CLI",
	Long: `Taskdesk tracks administrative work with numbered records and a fixed approval chain.
- Workspace: a .taskdesk directory holding the database; taskdesk.yml holds settings.
- Receives: the intake ledger; every incoming item gets an RCV number and is OPEN,
  ASSIGNED (has linked tasks) or CLOSED.
- Tasks: numbered work records flowing ACTIVE -> IN_PROGRESS -> COMPLETED -> CLOSED;
  a rejected submission goes back to IN_PROGRESS, a closed record can be reverted.
- Roles: SUPERADMIN > DIRECTOR > DY_DIRECTOR > MANAGER > INCHARGE > EMPLOYEE,
  refined per account with capability grants.
- Every transition is appended to the task log; edits are diffed into history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", app.DefaultAdminID, "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(receiveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var adminName, adminEmail string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			admin, err := app.EnsureAdmin(cmd.Context(), conn, adminName, adminEmail)
			if err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			fmt.Printf("Workspace ready; superadmin account is %q\n", admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminName, "admin-name", "", "superadmin display name")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "superadmin email")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userSetRoleCmd())
	user.AddCommand(userGrantCmd())
	user.AddCommand(userActiveCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email, role, workcenter string
	var caps []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					Name:         name,
					Email:        email,
					Role:         domain.Role(role),
					Capabilities: caps,
					Workcenter:   workcenter,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleEmployee), "role")
	cmd.Flags().StringVar(&workcenter, "workcenter", "", "workcenter")
	cmd.Flags().StringSliceVar(&caps, "capability", nil, "capability grant (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Capabilities", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Role, strings.Join(u.Capabilities, ","), u.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|email>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					u   domain.User
					err error
				)
				if strings.Contains(args[0], "@") {
					u, err = e.Repo.GetUserByEmail(ctx, args[0])
				} else {
					u, err = e.GetUser(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userSetRoleCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "set-role <id>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" {
				return fmt.Errorf("--role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetUserRole(ctx, args[0], domain.Role(role), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "new role")
	return cmd
}

func userGrantCmd() *cobra.Command {
	var caps []string
	cmd := &cobra.Command{
		Use:   "grant <id>",
		Short: "Replace an account's capability grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetUserCapabilities(ctx, args[0], caps, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringSliceVar(&caps, "capability", nil, "capability grant (repeatable)")
	return cmd
}

func userActiveCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <id>",
		Short: "Enable or disable an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetUserActive(ctx, args[0], active, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "active flag")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage task records",
		Long:  "Tasks are numbered work records. They flow ACTIVE -> IN_PROGRESS -> COMPLETED -> CLOSED via assign, forward, submit, acknowledge, reject and revert.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskEditCmd())
	task.AddCommand(taskLogCmd())
	task.AddCommand(taskHistoryCmd())
	task.AddCommand(taskAttachCmd())
	for _, ev := range engine.Events() {
		task.AddCommand(taskEventCmd(ev))
	}
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task record",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&opts.Complexity, "complexity", "", "complexity")
	cmd.Flags().StringVar(&opts.Workcenter, "workcenter", "", "workcenter")
	cmd.Flags().StringVar(&opts.ReceiveID, "receive", "", "receive id to link")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Record", "Title", "Status", "Assignee", "Receive"})
				for _, t := range tasks {
					assignee := ""
					if t.AssignedToID != nil {
						assignee = *t.AssignedToID
					}
					receive := ""
					if t.ReceiveID != nil {
						receive = *t.ReceiveID
					}
					tw.AppendRow(table.Row{t.RecordNumber, t.Title, t.Status, assignee, receive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedToID, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&f.Workcenter, "workcenter", "", "workcenter filter")
	cmd.Flags().StringVar(&f.ReceiveID, "receive", "", "receive filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskEditCmd() *cobra.Command {
	var title, description, priority, complexity, workcenter string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit task fields (diffed into history)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskEditOptions{ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("complexity") {
				opts.Complexity = &complexity
			}
			if cmd.Flags().Changed("workcenter") {
				opts.Workcenter = &workcenter
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.EditTaskFields(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&complexity, "complexity", "", "new complexity")
	cmd.Flags().StringVar(&workcenter, "workcenter", "", "new workcenter")
	return cmd
}

func taskEventCmd(ev engine.Event) *cobra.Command {
	var assignee, note string
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", ev),
		Short: fmt.Sprintf("Apply the %s event", ev),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.TransitionTask(ctx, args[0], ev, viper.GetString("actor-id"), engine.TransitionPayload{
					AssigneeID: assignee,
					Note:       note,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "assignee user id")
	cmd.Flags().StringVar(&note, "note", "", "note for the log entry")
	return cmd
}

func taskLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Show the lifecycle log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTaskActions(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Action", "Actor", "Forwarded To", "Note"})
				for _, a := range items {
					fwd := ""
					if a.ForwardedTo != nil {
						fwd = *a.ForwardedTo
					}
					tw.AppendRow(table.Row{a.TS, a.ActionType, a.ActorID, fwd, a.Note})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show field edit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTaskHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Field", "Old", "New", "Actor"})
				for _, h := range items {
					tw.AppendRow(table.Row{h.TS, h.Field, h.OldValue, h.NewValue, h.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskAttachCmd() *cobra.Command {
	var fileName, fileRef string
	cmd := &cobra.Command{
		Use:   "attach <id>",
		Short: "Attach file metadata to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileName == "" || fileRef == "" {
				return fmt.Errorf("--file-name and --file-ref required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AddAttachment(ctx, args[0], fileName, fileRef, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&fileName, "file-name", "", "original file name")
	cmd.Flags().StringVar(&fileRef, "file-ref", "", "external storage reference")
	return cmd
}

func receiveCmd() *cobra.Command {
	rc := &cobra.Command{
		Use:   "receive",
		Short: "Manage the intake ledger",
		Long:  "Receives record incoming items. A receive is OPEN until a task is linked (ASSIGNED), and can be CLOSED or reopened explicitly.",
	}
	rc.AddCommand(receiveCreateCmd())
	rc.AddCommand(receiveListCmd())
	rc.AddCommand(receiveGetCmd())
	rc.AddCommand(receiveCloseCmd())
	rc.AddCommand(receiveReopenCmd())
	return rc
}

func receiveCreateCmd() *cobra.Command {
	var subject, source string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an incoming item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rc, err := e.CreateReceive(ctx, engine.ReceiveCreateOptions{
					Subject: subject,
					Source:  source,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rc)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&source, "source", "", "originating office or sender")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func receiveListCmd() *cobra.Command {
	var f repo.ReceiveFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListReceives(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Subject", "Status", "Tasks", "Closed At"})
				for _, rc := range items {
					closedAt := ""
					if rc.ClosedAt != nil {
						closedAt = *rc.ClosedAt
					}
					tw.AppendRow(table.Row{rc.ReferenceNumber, rc.Subject, rc.Status, rc.TaskCount, closedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func receiveGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rc, err := e.GetReceive(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rc)
			})
		},
	}
	return cmd
}

func receiveCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close a receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rc, err := e.SetReceiveStatus(ctx, args[0], domain.ReceiveClosed, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rc)
			})
		},
	}
	return cmd
}

func receiveReopenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen a closed receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rc, err := e.SetReceiveStatus(ctx, args[0], domain.ReceiveOpen, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rc)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task counts by lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.TaskStatusCounts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Status", "Tasks"})
				for _, s := range []domain.TaskStatus{domain.TaskActive, domain.TaskInProgress, domain.TaskCompleted, domain.TaskClosed} {
					tw.AppendRow(table.Row{string(s), counts[string(s)]})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "Inspect own notifications"}
	n.AddCommand(notifyListCmd())
	n.AddCommand(notifyReadCmd())
	return n
}

func notifyListCmd() *cobra.Command {
	var unread bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications for the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListNotifications(ctx, viper.GetString("actor-id"), engine.NotificationFilter{
					UnreadOnly: unread,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Message", "Read", "At"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Type, n.Message, n.Read, n.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "unread only")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func notifyReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.MarkNotificationRead(ctx, args[0], viper.GetString("actor-id"), true)
			})
		},
	}
	return cmd
}

func apiKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue an API key for a user (raw key printed once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			raw, err := app.IssueAPIKey(cmd.Context(), conn, args[0], name)
			if err != nil {
				return err
			}
			fmt.Println(raw)
			return nil
		},
	}
	issue.Flags().StringVar(&name, "name", "", "key label")
	key.AddCommand(issue)

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	key.AddCommand(list)

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	key.AddCommand(revoke)
	return key
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if _, err := app.EnsureAdmin(cmd.Context(), conn, "", ""); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Auth.JWTSecret,
				AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
			}
			if secret := os.Getenv("TASKDESK_JWT_SECRET"); secret != "" {
				authCfg.JWTSecret = secret
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskdesk API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if _, err := app.EnsureAdmin(ctx, conn, "", ""); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
