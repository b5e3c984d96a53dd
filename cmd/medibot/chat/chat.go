// Package chatcmder provides the chat command, an interactive line client
// for a running medibot server.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/medibot/pkg/apiclient"
	"github.com/papercomputeco/medibot/pkg/cliui"
	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/dotdir"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/serverstate"
	"github.com/papercomputeco/medibot/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("medibot> ")
)

type chatCommander struct {
	apiTarget string
	sessionID string
	fresh     bool
	maxChunks int
	configDir string
	debug     bool
	markdown  bool
	stateDir  *dotdir.Manager
	client    *apiclient.Client
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
}

const chatLongDesc string = `Start an interactive chat with a running medibot server.

The conversation is kept as a server-side session, so follow-up questions
are answered in the context of what was already said. The session id is
remembered in the .medibot/ directory and the next "medibot chat" resumes
it; pass --new to start over.

Commands inside the chat:
  /status    Show the session id and message count
  /history   Print the conversation so far
  /clear     Forget the conversation but keep the session
  /new       Start a new session
  /exit      Leave (Ctrl+D works too)

Examples:
  medibot chat
  medibot chat --new
  medibot chat --api-target http://localhost:9000`

const chatShortDesc string = "Chat with a running medibot server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagAPITarget})

			cmder.apiTarget = v.GetString("client.api_target")
			if !cmd.Flags().Changed(config.Registry[config.FlagAPITarget].Name) &&
				!v.InConfig("client.api_target") && os.Getenv("MEDIBOT_CLIENT_API_TARGET") == "" {
				cmder.apiTarget = discoverServer(cmder.configDir, cmder.apiTarget)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.markdown = cliui.IsTerminal(os.Stdout) && cmder.out == os.Stdout
			cmder.logger = logger.New(logger.WithDebug(cmder.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))
			cmder.stateDir = dotdir.NewManager()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	var target string
	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &target)
	cmd.Flags().StringVarP(&cmder.sessionID, "session", "s", "", "Attach to this session id")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new session instead of resuming")
	cmd.Flags().IntVarP(&cmder.maxChunks, "max-chunks", "k", 0, "Reference passages per answer (1-10, default from server)")

	return cmd
}

// discoverServer prefers the address recorded by a running "medibot serve".
func discoverServer(configDir, fallback string) string {
	m, err := serverstate.NewManager(configDir)
	if err != nil {
		return fallback
	}
	state, err := m.LoadState()
	if err != nil || state == nil || state.APIURL == "" {
		return fallback
	}
	return state.APIURL
}

func (c *chatCommander) run(ctx context.Context) error {
	var err error
	c.client, err = apiclient.New(c.apiTarget, nil)
	if err != nil {
		return err
	}

	if err := c.attach(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Server:"), cliui.DimStyle.Render(c.apiTarget))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /help for commands, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(ctx, input)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			}
			if quit {
				break
			}
			continue
		}

		if err := c.ask(ctx, input); err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// attach resumes the remembered session or starts a new one.
func (c *chatCommander) attach(ctx context.Context) error {
	fmt.Fprintln(c.out)

	if c.sessionID == "" && !c.fresh {
		state, err := c.stateDir.LoadChatState(c.configDir)
		if err != nil {
			c.logger.Warn("ignoring unreadable chat state", "error", err)
		} else if state != nil && state.APITarget == c.apiTarget {
			c.sessionID = state.SessionID
		}
	}

	if c.sessionID != "" {
		st, err := c.client.Status(ctx, c.sessionID)
		if err != nil {
			return err
		}
		if st.Exists {
			fmt.Fprintf(c.out, "  %s Resuming session %s %s\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(utils.Truncate(c.sessionID, 16)),
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", st.TurnCount)),
			)
			return c.remember()
		}
		fmt.Fprintf(c.out, "  %s %s\n", cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render("Previous session expired, starting a new one"))
	}

	return c.newSession(ctx)
}

func (c *chatCommander) newSession(ctx context.Context) error {
	id, err := c.client.CreateSession(ctx)
	if err != nil {
		return err
	}
	c.sessionID = id
	fmt.Fprintf(c.out, "  %s New session %s\n", cliui.DimStyle.Render("●"), cliui.ValueStyle.Render(utils.Truncate(id, 16)))
	return c.remember()
}

func (c *chatCommander) remember() error {
	return c.stateDir.SaveChatState(&dotdir.ChatState{
		SessionID: c.sessionID,
		APITarget: c.apiTarget,
		UpdatedAt: time.Now().UTC(),
	}, c.configDir)
}

func (c *chatCommander) ask(ctx context.Context, query string) error {
	res, err := c.client.Chat(ctx, pipeline.AskRequest{
		Query:     query,
		SessionID: c.sessionID,
		MaxChunks: c.maxChunks,
	})
	if err != nil {
		return err
	}

	// The server replaces unknown or expired sessions.
	if res.SessionID != "" && res.SessionID != c.sessionID {
		c.sessionID = res.SessionID
		if err := c.remember(); err != nil {
			c.logger.Debug("saving chat state failed", "error", err)
		}
	}

	fmt.Fprintln(c.out)
	if badge := cliui.UrgencyBadge(string(res.Urgency)); badge != "" {
		fmt.Fprintf(c.out, "  %s\n\n", badge)
	}

	fmt.Fprint(c.out, assistantPrompt)
	fmt.Fprintln(c.out, c.render(res.Response))

	if !res.Success {
		fmt.Fprintf(c.out, "  %s\n", cliui.WarnStyle.Render("The assistant could not complete this answer."))
	}
	if len(res.Sources) > 0 {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Sources:"), cliui.DimStyle.Render(strings.Join(res.Sources, ", ")))
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) render(text string) string {
	if !c.markdown {
		return text
	}
	rendered, err := cliui.RenderMarkdown(text)
	if err != nil {
		c.logger.Debug("markdown rendering failed", "error", err)
		return text
	}
	return "\n" + strings.TrimRight(rendered, "\n")
}

// command runs a slash command and reports whether the chat should end.
func (c *chatCommander) command(ctx context.Context, input string) (bool, error) {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("/status  /history  /clear  /new  /exit"))
		return false, nil

	case "/status":
		st, err := c.client.Status(ctx, c.sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Session:"), cliui.ValueStyle.Render(c.sessionID))
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Messages:"), cliui.ValueStyle.Render(fmt.Sprint(st.TurnCount)))
		if !st.LastActivity.IsZero() {
			fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Last activity:"),
				cliui.DimStyle.Render(st.LastActivity.Local().Format(time.DateTime)))
		}
		fmt.Fprintln(c.out)
		return false, nil

	case "/history":
		sess, err := c.client.History(ctx, c.sessionID)
		if errors.Is(err, apiclient.ErrNotFound) {
			fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No messages yet."))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		for _, t := range sess.Turns {
			fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(string(t.Role)+":"), utils.Truncate(t.Content, 120))
		}
		fmt.Fprintln(c.out)
		return false, nil

	case "/clear":
		if err := c.client.Clear(ctx, c.sessionID); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
		return false, nil

	case "/new":
		return false, c.newSession(ctx)

	default:
		return false, fmt.Errorf("unknown command %s, try /help", input)
	}
}
