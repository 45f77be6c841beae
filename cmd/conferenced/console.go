package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/conference-hub/internal/application"
)

// console is a line-oriented front end over the services. It owns no business
// rules: every command resolves a principal and delegates, and every error it
// prints is an error the services returned.
type console struct {
	in  io.Reader
	out io.Writer

	conferences   *application.ConferenceService
	events        *application.EventService
	rooms         *application.RoomService
	conversations *application.ConversationService
	users         *application.UserService

	principal application.Principal
	loggedIn  bool
}

func (c *console) run(ctx context.Context) {
	fmt.Fprintln(c.out, "conference hub console; type 'help' for commands, 'quit' to exit")

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return
		}
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := c.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	}
}

func (c *console) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		c.printHelp()
		return nil
	case "login":
		return c.login(ctx, args)
	case "whoami":
		if !c.loggedIn {
			fmt.Fprintln(c.out, "not logged in")
			return nil
		}
		fmt.Fprintln(c.out, c.principal.UserID)
		return nil
	case "users":
		return c.listUsers(ctx)
	}

	if !c.loggedIn {
		return fmt.Errorf("log in first: login <user-id>")
	}

	switch command {
	case "conferences":
		return c.listConferences(ctx)
	case "my-conferences":
		return c.myConferences(ctx)
	case "create-conference":
		return c.createConference(ctx, args)
	case "join":
		return c.withOneArg(args, "join <conference-id>", func(id string) error {
			return c.conferences.JoinConference(ctx, c.principal, id)
		})
	case "leave":
		return c.withOneArg(args, "leave <conference-id>", func(id string) error {
			return c.conferences.RemoveAttendee(ctx, c.principal, id, c.principal.UserID)
		})
	case "edit-conference":
		return c.editConference(ctx, args)
	case "delete-conference":
		return c.withOneArg(args, "delete-conference <conference-id>", func(id string) error {
			return c.conferences.DeleteConference(ctx, c.principal, id)
		})
	case "add-organizer":
		return c.withTwoArgs(args, "add-organizer <conference-id> <user-id>", func(confID, userID string) error {
			return c.conferences.AddOrganizer(ctx, c.principal, confID, userID)
		})
	case "remove-organizer":
		return c.withTwoArgs(args, "remove-organizer <conference-id> <user-id>", func(confID, userID string) error {
			return c.conferences.RemoveOrganizer(ctx, c.principal, confID, userID)
		})
	case "add-speaker":
		return c.withTwoArgs(args, "add-speaker <conference-id> <user-id>", func(confID, userID string) error {
			return c.conferences.AddSpeaker(ctx, c.principal, confID, userID)
		})
	case "add-attendee":
		return c.withTwoArgs(args, "add-attendee <conference-id> <user-id>", func(confID, userID string) error {
			return c.conferences.AddAttendee(ctx, c.principal, confID, userID)
		})
	case "rooms":
		return c.listRooms(ctx, args)
	case "create-room":
		return c.createRoom(ctx, args)
	case "events":
		return c.listEvents(ctx, args)
	case "create-event":
		return c.createEvent(ctx, args)
	case "register":
		return c.withTwoArgs(args, "register <conference-id> <event-id>", func(confID, eventID string) error {
			return c.events.RegisterForEvent(ctx, c.principal, confID, eventID)
		})
	case "unregister":
		return c.withTwoArgs(args, "unregister <conference-id> <event-id>", func(confID, eventID string) error {
			return c.events.UnregisterFromEvent(ctx, c.principal, confID, eventID)
		})
	case "contacts":
		return c.listContacts(ctx)
	case "add-contact":
		return c.withOneArg(args, "add-contact <user-id>", func(id string) error {
			return c.users.AddContact(ctx, c.principal, id)
		})
	case "remove-contact":
		return c.withOneArg(args, "remove-contact <user-id>", func(id string) error {
			return c.users.RemoveContact(ctx, c.principal, id)
		})
	case "conversations":
		return c.listConversations(ctx)
	case "start-conversation":
		return c.startConversation(ctx, args)
	case "messages":
		return c.listMessages(ctx, args)
	case "send":
		return c.sendMessage(ctx, args)
	case "delete-message":
		return c.deleteMessage(ctx, args)
	case "archive":
		return c.withOneArg(args, "archive <conversation-id>", func(id string) error {
			return c.conversations.ArchiveConversation(ctx, c.principal, id)
		})
	case "unread":
		return c.withOneArg(args, "unread <conversation-id>", func(id string) error {
			return c.conversations.UnreadConversation(ctx, c.principal, id)
		})
	}

	return fmt.Errorf("unknown command %q; type 'help'", command)
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `commands:
  login <user-id>                                   act as an existing user
  whoami                                            show the active user
  users                                             list accounts
  conferences | my-conferences                      list conferences
  create-conference <name> <start> <end>            times in RFC 3339
  edit-conference <conference-id> <name> <start> <end>
  join | leave <conference-id>
  add-organizer | remove-organizer | add-speaker | add-attendee <conference-id> <user-id>
  delete-conference <conference-id>
  rooms <conference-id>
  create-room <conference-id> <label> <capacity>
  events <conference-id>
  create-event <conference-id> <name> <start> <end> <room-id>
  register | unregister <conference-id> <event-id>
  contacts | add-contact <user-id> | remove-contact <user-id>
  conversations
  start-conversation <name> <user-id,...> <message...>
  messages <conversation-id>
  send <conversation-id> <message...>
  delete-message <conversation-id> <index>
  archive | unread <conversation-id>
  quit
`)
}

func (c *console) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: login <user-id>")
	}
	user, err := c.users.GetUser(ctx, args[0])
	if err != nil {
		return err
	}
	c.principal = application.Principal{UserID: user.ID, IsGod: user.IsGod}
	c.loggedIn = true
	fmt.Fprintf(c.out, "logged in as %s (%s)\n", user.FullName, user.ID)
	return nil
}

func (c *console) listUsers(ctx context.Context) error {
	users, err := c.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		suffix := ""
		if user.IsGod {
			suffix = " [god]"
		}
		fmt.Fprintf(c.out, "%s  %s%s\n", user.ID, user.FullName, suffix)
	}
	return nil
}

func (c *console) listConferences(ctx context.Context) error {
	summaries, err := c.conferences.ListConferences(ctx)
	if err != nil {
		return err
	}
	c.printSummaries(summaries)
	return nil
}

func (c *console) myConferences(ctx context.Context) error {
	summaries, err := c.conferences.UserConferences(ctx, c.principal)
	if err != nil {
		return err
	}
	c.printSummaries(summaries)
	return nil
}

func (c *console) printSummaries(summaries []application.ConferenceSummary) {
	for _, s := range summaries {
		fmt.Fprintf(c.out, "%s  %s  %s .. %s\n",
			s.ID, s.Name, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
}

func (c *console) createConference(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: create-conference <name> <start> <end>")
	}
	start, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("bad start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return fmt.Errorf("bad end time: %w", err)
	}
	conf, err := c.conferences.CreateConference(ctx, application.CreateConferenceParams{
		Principal: c.principal,
		Input:     application.ConferenceInput{Name: args[0], Start: start, End: end},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "created", conf.ID)
	return nil
}

func (c *console) editConference(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: edit-conference <conference-id> <name> <start> <end>")
	}
	start, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return fmt.Errorf("bad start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, args[3])
	if err != nil {
		return fmt.Errorf("bad end time: %w", err)
	}
	return c.conferences.UpdateConferenceDetails(ctx, c.principal, args[0],
		application.ConferenceInput{Name: args[1], Start: start, End: end})
}

func (c *console) listRooms(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rooms <conference-id>")
	}
	rooms, err := c.rooms.ListRooms(ctx, c.principal, args[0])
	if err != nil {
		return err
	}
	for _, room := range rooms {
		fmt.Fprintf(c.out, "%s  %s  capacity=%d\n", room.ID, room.Label, room.Capacity)
	}
	return nil
}

func (c *console) createRoom(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: create-room <conference-id> <label> <capacity>")
	}
	capacity, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad capacity: %w", err)
	}
	room, err := c.rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal:    c.principal,
		ConferenceID: args[0],
		Input:        application.RoomInput{Label: args[1], Capacity: capacity},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "created", room.ID)
	return nil
}

func (c *console) listEvents(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: events <conference-id>")
	}
	events, err := c.events.ListEvents(ctx, c.principal, args[0])
	if err != nil {
		return err
	}
	for _, event := range events {
		fmt.Fprintf(c.out, "%s  %s  %s .. %s  room=%s  attendees=%d\n",
			event.ID, event.Name,
			event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339),
			event.RoomID, len(event.Attendees))
	}
	return nil
}

func (c *console) createEvent(ctx context.Context, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("usage: create-event <conference-id> <name> <start> <end> <room-id>")
	}
	start, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return fmt.Errorf("bad start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, args[3])
	if err != nil {
		return fmt.Errorf("bad end time: %w", err)
	}
	event, err := c.events.CreateEvent(ctx, application.CreateEventParams{
		Principal:    c.principal,
		ConferenceID: args[0],
		Input:        application.EventInput{Name: args[1], Start: start, End: end, RoomID: args[4]},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "created", event.ID)
	return nil
}

func (c *console) listContacts(ctx context.Context) error {
	contacts, err := c.users.Contacts(ctx, c.principal)
	if err != nil {
		return err
	}
	for _, id := range contacts {
		fmt.Fprintln(c.out, id)
	}
	return nil
}

func (c *console) listConversations(ctx context.Context) error {
	views, err := c.conversations.Conversations(ctx, c.principal)
	if err != nil {
		return err
	}
	for _, view := range views {
		flags := make([]string, 0, 2)
		if !view.HasRead {
			flags = append(flags, "unread")
		}
		if view.IsArchived {
			flags = append(flags, "archived")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = "  [" + strings.Join(flags, ",") + "]"
		}
		fmt.Fprintf(c.out, "%s  %s  participants=%d%s\n",
			view.ID, view.Name, len(view.ParticipantIDs), suffix)
	}
	return nil
}

func (c *console) startConversation(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: start-conversation <name> <user-id,...> <message...>")
	}
	view, err := c.conversations.InitiateConversation(ctx, application.InitiateConversationParams{
		Principal:      c.principal,
		Name:           args[0],
		ParticipantIDs: strings.Split(args[1], ","),
		FirstMessage:   strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "created", view.ID)
	return nil
}

func (c *console) listMessages(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: messages <conversation-id>")
	}
	messages, err := c.conversations.Messages(ctx, c.principal, args[0])
	if err != nil {
		return err
	}
	for _, message := range messages {
		content := message.Content
		if message.Deleted {
			content = "(deleted)"
		}
		fmt.Fprintf(c.out, "[%d] %s  %s  %s\n",
			message.Index, message.SentAt.Format(time.RFC3339), message.SenderID, content)
	}
	return nil
}

func (c *console) sendMessage(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <conversation-id> <message...>")
	}
	_, err := c.conversations.SendMessage(ctx, c.principal, args[0], strings.Join(args[1:], " "))
	return err
}

func (c *console) deleteMessage(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: delete-message <conversation-id> <index>")
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad index: %w", err)
	}
	return c.conversations.DeleteMessage(ctx, c.principal, args[0], index)
}

func (c *console) withOneArg(args []string, usage string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", usage)
	}
	return fn(args[0])
}

func (c *console) withTwoArgs(args []string, usage string, fn func(string, string) error) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", usage)
	}
	return fn(args[0], args[1])
}
