package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. *App satisfies it;
// tests provide a stub.
type execIface interface {
	isRegistered() bool
	Register(ctx context.Context, name string) error
	Keygen(ctx context.Context) error
	CreateChat(ctx context.Context, name string, participants []string) error
	ListChats(ctx context.Context) error
	Open(ctx context.Context, chatID string) error
	More(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Show(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

const (
	helpGuest = "Available commands: register [name], status, exit"
	helpUser  = "Available commands: keygen, chat create <name> <user...>, chats, open <chatId>, more, send <text>, show, logout, status, exit"
)

// runREPL reads commands line by line and dispatches them to a until EOF or
// "exit"/"quit". Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("rc %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isRegistered() {
				printlnFn(helpUser)
			} else {
				printlnFn(helpGuest)
			}

		case "register":
			err = a.Register(ctx, strings.Join(args, " "))

		case "status":
			err = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "keygen", "chat", "chats", "open", "more", "send", "show", "logout":
			if !a.isRegistered() {
				printlnFn("Not registered: run 'register' first")
				continue
			}
			err = dispatchUser(ctx, a, cmd, args, line)

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatchUser(ctx context.Context, a execIface, cmd string, args []string, line string) error {
	switch cmd {
	case "keygen":
		return a.Keygen(ctx)
	case "chat":
		if len(args) < 2 || args[0] != "create" {
			printlnFn("Usage: chat create <name> <user...>")
			return nil
		}
		return a.CreateChat(ctx, args[1], args[2:])
	case "chats":
		return a.ListChats(ctx)
	case "open":
		if len(args) != 1 {
			printlnFn("Usage: open <chatId>")
			return nil
		}
		return a.Open(ctx, args[0])
	case "more":
		return a.More(ctx)
	case "send":
		text := strings.TrimSpace(strings.TrimPrefix(line, "send"))
		if text == "" {
			printlnFn("Usage: send <text>")
			return nil
		}
		return a.Send(ctx, text)
	case "show":
		return a.Show(ctx)
	case "logout":
		return a.Logout(ctx)
	}
	return nil
}
