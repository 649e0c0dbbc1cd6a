package tui

import (
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdClear commandKind = iota
	cmdRate
	cmdHelpful
	cmdUnhelpful
	cmdStats
	cmdLogin
	cmdRegister
	cmdLogout
	cmdCopy
	cmdQuit
	cmdHelp
)

type command struct {
	kind      commandKind
	messageID int64
	rating    int
	email     string
	password  string
}

const helpText = `/clear                      clear the conversation
/rate <id> <1-5>            rate a reply
/helpful <id>               mark a reply helpful
/unhelpful <id>             mark a reply not helpful
/stats                      show analytics
/login <email> <password>   sign in
/register <email> <password> create an account
/logout                     sign out
/copy                       copy the last reply
/quit                       exit`

// parseCommand reads a slash command line.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, fmt.Errorf("not a command: %q", line)
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/clear":
		return command{kind: cmdClear}, nil
	case "/stats", "/analytics":
		return command{kind: cmdStats}, nil
	case "/logout":
		return command{kind: cmdLogout}, nil
	case "/copy":
		return command{kind: cmdCopy}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/rate":
		if len(args) != 2 {
			return command{}, fmt.Errorf("usage: /rate <id> <1-5>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return command{}, err
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil || rating < 1 || rating > 5 {
			return command{}, fmt.Errorf("rating must be 1-5, got %q", args[1])
		}
		return command{kind: cmdRate, messageID: id, rating: rating}, nil
	case "/helpful", "/unhelpful":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: %s <id>", name)
		}
		id, err := parseID(args[0])
		if err != nil {
			return command{}, err
		}
		kind := cmdHelpful
		if name == "/unhelpful" {
			kind = cmdUnhelpful
		}
		return command{kind: kind, messageID: id}, nil
	case "/login", "/register":
		if len(args) != 2 {
			return command{}, fmt.Errorf("usage: %s <email> <password>", name)
		}
		kind := cmdLogin
		if name == "/register" {
			kind = cmdRegister
		}
		return command{kind: kind, email: args[0], password: args[1]}, nil
	}
	return command{}, fmt.Errorf("unknown command %s (try /help)", name)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}
