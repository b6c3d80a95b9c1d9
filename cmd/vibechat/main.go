// Command vibechat is a terminal chat client for a running vibecreator server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"vibecreator-backend/internal/chatclient"
	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/stream"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/peterh/liner"
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func main() {
	server := flag.String("server", envOr("VIBECHAT_SERVER", "http://localhost:8080"), "base URL of the vibecreator server")
	styleID := flag.String("style", "", "id of the style to chat in (prompted when empty)")
	flag.Parse()

	if err := run(*server, *styleID); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("[Error]"), err)
		os.Exit(1)
	}
}

func run(server, styleID string) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := historyPath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		saveHistory(line, historyFile)
		line.Close()
	}()

	style, err := chooseStyle(line, server, styleID)
	if err != nil {
		return err
	}

	session := chatclient.NewSession(server, nil, style.Name, style.Config)
	session.Conversation().OnDelta = func(_, delta string) { fmt.Print(delta) }
	printAssistant(session.Conversation().Messages[0].Content)
	fmt.Println(dimStyle.Render("/reset starts over, /quit exits, Ctrl+C stops a reply."))

	replies := &replyCanceller{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if replies.handle(sig) {
				// liner holds the terminal in raw mode; restore it before leaving.
				saveHistory(line, historyFile)
				line.Close()
				os.Exit(143)
			}
		}
	}()

	for {
		input, err := line.Prompt(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed terminal.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			return nil
		case "/reset":
			session.Reset()
			printAssistant(session.Conversation().Messages[0].Content)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		replies.start(cancel)

		fmt.Print(assistantStyle.Render("assistant> "))
		_, err = session.Send(ctx, input)
		fmt.Println()

		replies.finish()
		cancel()

		switch {
		case err == nil:
			if n := session.StylePromptTokens(); n > 0 {
				fmt.Println(dimStyle.Render(fmt.Sprintf("[style prompt ~%d tokens]", n)))
			}
		case errors.Is(err, context.Canceled):
			fmt.Println(dimStyle.Render("[Cancelled]"))
		default:
			fmt.Fprintln(os.Stderr, errorStyle.Render("[Error]"), err)
		}
	}
}

// replyCanceller tracks the reply being streamed. Ctrl+C cancels only that
// reply; SIGTERM cancels it and asks the caller to exit, even at the prompt.
type replyCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *replyCanceller) start(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

func (r *replyCanceller) finish() {
	r.mu.Lock()
	r.cancel = nil
	r.mu.Unlock()
}

// handle reacts to sig and reports whether the process should exit.
func (r *replyCanceller) handle(sig os.Signal) bool {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	return sig == syscall.SIGTERM
}

// chooseStyle loads the style named by id, or lets the user pick one.
func chooseStyle(line *liner.State, server, id string) (*models.StyleRecord, error) {
	ctx := context.Background()
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid style id %q", id)
		}
		return chatclient.FetchStyle(ctx, nil, server, parsed)
	}

	styles, err := chatclient.ListStyles(ctx, nil, server)
	if err != nil {
		return nil, err
	}
	if len(styles) == 0 {
		return nil, errors.New("no saved styles yet; analyze a script first")
	}
	for i, s := range styles {
		fmt.Printf("%s %s %s\n", dimStyle.Render(fmt.Sprintf("%2d.", i+1)), s.Name, dimStyle.Render(s.Description))
	}
	for {
		answer, err := line.Prompt(promptStyle.Render("style #> "))
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err == nil && n >= 1 && n <= len(styles) {
			return &styles[n-1], nil
		}
		fmt.Println(errorStyle.Render("Pick a number from the list."))
	}
}

func printAssistant(text string) {
	fmt.Println(assistantStyle.Render(string(stream.RoleAssistant)+">"), text)
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vibecreator", "chat_history")
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
