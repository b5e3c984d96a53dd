// Package sessioncmder provides the session command for managing
// conversation sessions on a running medibot server.
package sessioncmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/medibot/pkg/apiclient"
	"github.com/papercomputeco/medibot/pkg/cliui"
	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/dotdir"
)

type sessionCommander struct {
	apiTarget string
	configDir string
	client    *apiclient.Client
	out       io.Writer
}

const sessionLongDesc string = `Manage conversation sessions on a running medibot server.

Commands that take a session id fall back to the session "medibot chat"
last used when the id is omitted.

Examples:
  medibot session create
  medibot session status 3f2a...
  medibot session history
  medibot session clear
  medibot session delete 3f2a...`

const sessionShortDesc string = "Manage conversation sessions"

func NewSessionCmd() *cobra.Command {
	cmder := &sessionCommander{}

	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")

			cmder.client, err = apiclient.New(cmder.apiTarget, nil)
			if err != nil {
				return err
			}
			cmder.out = cmd.OutOrStdout()
			return nil
		},
	}

	var target string
	def := config.Registry[config.FlagAPITarget]
	cmd.PersistentFlags().StringVar(&target, def.Name, config.NewDefaultConfig().Client.APITarget, def.Description)

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create an empty session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.create(commandContext(cmd))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status [id]",
		Short: "Show whether a session exists and how long it is",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.status(commandContext(cmd), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history [id]",
		Short: "Print the messages of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.history(commandContext(cmd), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear [id]",
		Short: "Forget the messages of a session but keep it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.clear(commandContext(cmd), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.delete(commandContext(cmd), args)
		},
	})

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveID returns the explicit id or the one remembered by chat.
func (c *sessionCommander) resolveID(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	state, err := dotdir.NewManager().LoadChatState(c.configDir)
	if err != nil {
		return "", err
	}
	if state == nil || state.SessionID == "" {
		return "", errors.New("no session id given and no chat session to fall back to")
	}
	return state.SessionID, nil
}

func (c *sessionCommander) create(ctx context.Context) error {
	id, err := c.client.CreateSession(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "  %s Created session %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(id))
	return nil
}

func (c *sessionCommander) status(ctx context.Context, args []string) error {
	id, err := c.resolveID(args)
	if err != nil {
		return err
	}
	st, err := c.client.Status(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Session:"), cliui.ValueStyle.Render(id))
	if !st.Exists {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Exists:"), cliui.DimStyle.Render("no"))
		return nil
	}
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Exists:"), cliui.ValueStyle.Render("yes"))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Messages:"), cliui.ValueStyle.Render(fmt.Sprint(st.TurnCount)))
	if !st.LastActivity.IsZero() {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Last activity:"),
			cliui.DimStyle.Render(st.LastActivity.Local().Format(time.DateTime)))
	}
	return nil
}

func (c *sessionCommander) history(ctx context.Context, args []string) error {
	id, err := c.resolveID(args)
	if err != nil {
		return err
	}
	sess, err := c.client.History(ctx, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}

	if len(sess.Turns) == 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("No messages yet."))
		return nil
	}
	for _, t := range sess.Turns {
		fmt.Fprintf(c.out, "  %s %s\n  %s\n\n",
			cliui.KeyStyle.Render(string(t.Role)),
			cliui.DimStyle.Render(t.Timestamp.Local().Format(time.DateTime)),
			t.Content,
		)
	}
	return nil
}

func (c *sessionCommander) clear(ctx context.Context, args []string) error {
	id, err := c.resolveID(args)
	if err != nil {
		return err
	}
	if err := c.client.Clear(ctx, id); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	fmt.Fprintf(c.out, "  %s Cleared session %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(id))
	return nil
}

func (c *sessionCommander) delete(ctx context.Context, args []string) error {
	id, err := c.resolveID(args)
	if err != nil {
		return err
	}
	existed, err := c.client.Delete(ctx, id)
	if err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(c.out, "  %s Deleted session %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(id))
	} else {
		fmt.Fprintf(c.out, "  %s Session %s did not exist\n", cliui.DimStyle.Render("●"), cliui.ValueStyle.Render(id))
	}

	ddm := dotdir.NewManager()
	if state, err := ddm.LoadChatState(c.configDir); err == nil && state != nil && state.SessionID == id {
		return ddm.ClearChatState(c.configDir)
	}
	return nil
}
