package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Profile(ctx context.Context) error
	EditProfile(ctx context.Context) error

	Challenges(ctx context.Context) error
	MyChallenges(ctx context.Context) error
	TargetingMe(ctx context.Context) error
	CreateChallenge(ctx context.Context) error
	EditChallenge(ctx context.Context, id string) error
	DeleteChallenge(ctx context.Context, id string) error

	Complete(ctx context.Context, challengeID, proofPath string) error
	Completions(ctx context.Context, challengeID string) error
	MyCompletions(ctx context.Context) error
	Review(ctx context.Context, completionID, status string) error

	Leaderboard(ctx context.Context) error
	Share(ctx context.Context, lat, lng float64) error
	Unshare(ctx context.Context) error
	Locations(ctx context.Context) error

	Refresh(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: register, login, whoami, status, exit"
	helpSignedIn  = "Available commands: challenges, mine, targeting, create, edit <id>, delete <id>, " +
		"complete <id> [proof-file], completions <id>, my-completions, review <completion-id> approved|rejected, " +
		"leaderboard, share <lat> <lng>, unshare, map, profile, edit-profile, whoami, refresh, status, logout, exit"
)

// signedOutCommands work without a session.
var signedOutCommands = map[string]bool{
	"help": true, "register": true, "login": true, "whoami": true,
	"status": true, "exit": true, "quit": true,
}

// runREPL starts a simple read–eval–print loop for the dares CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches to methods on 'a'. Handlers read their own prompts from the
// same reader. The loop exits on EOF or when the user types "exit" or "quit".
//
// Commands other than help, register, login, whoami, status and exit
// require a signed-in user. Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("dares %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !signedOutCommands[cmd] && !a.isLoggedIn() {
			if isKnownCommand(cmd) {
				printlnFn("Not signed in. Use 'login' or 'register' first.")
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		report(dispatch(ctx, a, cmd, args))
	}
}

var knownCommands = []string{
	"logout", "profile", "edit-profile", "challenges", "mine", "targeting", "create",
	"edit", "delete", "complete", "completions", "my-completions", "review",
	"leaderboard", "share", "unshare", "map", "locations", "refresh",
}

func isKnownCommand(cmd string) bool {
	return slices.Contains(knownCommands, cmd)
}

// errUsage is returned by dispatch after the usage line has been printed.
var errUsage = errors.New("usage")

func report(err error) {
	if err != nil && !errors.Is(err, errUsage) {
		printlnFn("Error:", err)
	}
}

func usage(text string) error {
	printlnFn("Usage:", text)
	return errUsage
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpSignedOut)
		}
		return nil

	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.Whoami(ctx)
	case "profile":
		return a.Profile(ctx)
	case "edit-profile":
		return a.EditProfile(ctx)

	case "challenges":
		return a.Challenges(ctx)
	case "mine":
		return a.MyChallenges(ctx)
	case "targeting":
		return a.TargetingMe(ctx)
	case "create":
		return a.CreateChallenge(ctx)
	case "edit":
		if len(args) != 1 {
			return usage("edit <challenge-id>")
		}
		return a.EditChallenge(ctx, args[0])
	case "delete":
		if len(args) != 1 {
			return usage("delete <challenge-id>")
		}
		return a.DeleteChallenge(ctx, args[0])

	case "complete":
		if len(args) < 1 || len(args) > 2 {
			return usage("complete <challenge-id> [proof-file]")
		}
		proof := ""
		if len(args) == 2 {
			proof = args[1]
		}
		return a.Complete(ctx, args[0], proof)
	case "completions":
		if len(args) != 1 {
			return usage("completions <challenge-id>")
		}
		return a.Completions(ctx, args[0])
	case "my-completions":
		return a.MyCompletions(ctx)
	case "review":
		if len(args) != 2 {
			return usage("review <completion-id> approved|rejected")
		}
		return a.Review(ctx, args[0], args[1])

	case "leaderboard":
		return a.Leaderboard(ctx)
	case "share":
		if len(args) != 2 {
			return usage("share <lat> <lng>")
		}
		lat, err1 := strconv.ParseFloat(args[0], 64)
		lng, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			return usage("share <lat> <lng>")
		}
		return a.Share(ctx, lat, lng)
	case "unshare":
		return a.Unshare(ctx)
	case "map", "locations":
		return a.Locations(ctx)

	case "refresh":
		return a.Refresh(ctx)
	case "status":
		return a.Status(ctx)
	}

	printlnFn("Unknown command:", cmd)
	return nil
}
