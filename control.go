package xagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Generic control vocabulary understood by every agent.
const (
	CommandHelp   = "HELP"
	CommandStatus = "STATUS"
	CommandStop   = "STOP"
	CommandPause  = "PAUSE"
	CommandResume = "RESUME"
)

// ReportType is the message type of HELP/STATUS replies.
const ReportType = "report.v1"

// Context keys understood by the dispatcher.
const (
	ContextReplyTo   = "reply_to"
	ContextCommandID = "command_id"
	ContextInReplyTo = "in_reply_to"
)

// GenericCommands lists the vocabulary handled by the dispatcher itself.
var GenericCommands = []string{CommandHelp, CommandStatus, CommandStop, CommandPause, CommandResume}

// Command is a control token extracted from a control message.
type Command struct {
	// Name is the token as received, e.g. "STOP" or "builder plan set".
	Name string
	// Payload is the full payload of the carrying message.
	Payload any
	Message Message
}

// Is reports whether the command token equals name, ignoring case.
func (c Command) Is(name string) bool { return strings.EqualFold(strings.TrimSpace(c.Name), name) }

// Fields splits the token on whitespace, lower-cased.
func (c Command) Fields() []string { return strings.Fields(strings.ToLower(c.Name)) }

// ParseCommand extracts the command token: a bare string payload is the token
// itself; a map payload contributes its "command" field.
func ParseCommand(msg Message) Command {
	cmd := Command{Payload: msg.Payload(), Message: msg}
	switch p := msg.payload.(type) {
	case string:
		cmd.Name = p
	case map[string]any:
		if s, ok := p["command"].(string); ok {
			cmd.Name = s
		}
	case map[string]string:
		cmd.Name = p["command"]
	case fmt.Stringer:
		cmd.Name = p.String()
	}
	return cmd
}

// Capabilities returns the commands this agent answers to.
func (a *Agent) Capabilities() []string {
	caps := append([]string(nil), GenericCommands...)
	if l, ok := a.behavior.(CommandLister); ok {
		caps = append(caps, l.Commands()...)
	}
	return caps
}

func (a *Agent) handleControl(ctx context.Context, msg Message) error {
	cmd := ParseCommand(msg)
	token := strings.ToUpper(strings.TrimSpace(cmd.Name))
	defer a.notify(Event{Type: CommandDone, Command: token, MessageType: msg.Type()})

	switch token {
	case CommandHelp:
		caps := a.Capabilities()
		a.logger.Info().Str("commands", strings.Join(caps, ",")).Msg("help")
		return a.report(ctx, msg, token, map[string]any{"commands": toAnySlice(caps)})
	case CommandStatus:
		state := a.State().String()
		a.logger.Info().Str("state", state).Msg("status")
		return a.report(ctx, msg, token, map[string]any{
			"state":  state,
			"cycles": float64(a.Cycles()),
			"sent":   float64(a.Sent()),
		})
	case CommandStop:
		a.logger.Info().Str("source", msg.Source()).Msg("stop requested by control message")
		a.Transition(StateStopped)
		return nil
	case CommandPause:
		a.logger.Info().Str("source", msg.Source()).Msg("pause requested by control message")
		a.Transition(StateIdle)
		return nil
	case CommandResume:
		to, err := a.behavior.HandleResume(ctx, cmd)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		a.Transition(to)
		return nil
	default:
		return a.handleDomainCommand(ctx, cmd)
	}
}

// handleDomainCommand forwards unknown tokens to the behavior; anything it
// does not recognize is logged and dropped.
func (a *Agent) handleDomainCommand(ctx context.Context, cmd Command) error {
	if h, ok := a.behavior.(CommandHandler); ok {
		err := h.HandleCommand(ctx, cmd)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnrecognizedCommand) {
			return fmt.Errorf("command %q: %w", cmd.Name, err)
		}
	}
	a.logger.Warn().Str("command", cmd.Name).Msg("unrecognized command")
	return nil
}

// report answers HELP/STATUS to the mailbox named by the command's reply_to context.
func (a *Agent) report(ctx context.Context, msg Message, command string, body map[string]any) error {
	replyTo, ok := msg.ContextString(ContextReplyTo)
	if !ok || replyTo == "" {
		return nil
	}
	rctx := map[string]any{"command": command}
	if id, ok := msg.ContextString(ContextCommandID); ok {
		rctx[ContextInReplyTo] = id
	}
	reply, err := NewMessage(ReportType, a.name, replyTo, FormatTimestamp(a.clock.Now()), body, StatusOK, rctx)
	if err != nil {
		return err
	}
	return a.Send(ctx, reply)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
