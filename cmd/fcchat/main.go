package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/chatview"
	"github.com/nasirmalek/FamilyCircle/internal/config"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository/sqldb"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/viewmodel"
	"github.com/nasirmalek/FamilyCircle/pkg/logger"
)

var (
	username = flag.String("user", "", "Username to act as")
	familyID = flag.String("family", "", "Family id whose chats to list")
	chatID   = flag.String("chat", "", "Chat id to open")
	driver   = flag.String("driver", "", "Database driver (defaults to DATABASE_DRIVER or postgres)")
	dsn      = flag.String("dsn", "", "Database URL (defaults to DATABASE_URL)")
	logLevel = flag.String("log-level", "warn", "Log level")
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	if *driver == "" {
		*driver = os.Getenv("DATABASE_DRIVER")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *username == "" || *dsn == "" || (*familyID == "" && *chatID == "") {
		fmt.Fprintln(os.Stderr, "usage: fcchat -user <username> (-family <id> | -chat <id>) [-dsn <url>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := logger.NewWithFormat(*logLevel, "text", os.Stderr)

	db, err := config.NewDatabase(ctx, *driver, *dsn, l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	b := db.Backend()
	svc := service.New(l, nil,
		sqldb.NewChatRepository(b),
		sqldb.NewMessageRepository(b),
		sqldb.NewProfileRepository(b),
		sqldb.NewFamilyRepository(b),
	)

	user, err := svc.Profiles.GetByUsername(ctx, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unknown user %q: %v\n", *username, err)
		os.Exit(1)
	}

	if *chatID == "" {
		err = listChats(ctx, svc, user)
	} else {
		err = openChat(ctx, svc, l, user.ID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func listChats(ctx context.Context, svc *service.Service, user *models.UserProfile) error {
	chats, err := svc.ListChats(ctx, *familyID, user.ID)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println(faint("No chats yet"))
		return nil
	}

	for _, item := range viewmodel.BuildChatList(chats, user.DisplayName(), time.Now()) {
		fmt.Printf("%s  %s\n", boldCyan(item.Name), faint(item.Timestamp))
		fmt.Printf("    %s\n", item.LastMessage)
		fmt.Printf("    %s\n", faint(item.ChatID))
	}
	return nil
}

// printer writes each message once, in order, as states arrive.
type printer struct {
	mu      sync.Mutex
	seen    map[string]bool
	lastErr string
}

func (p *printer) render(st chatview.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range st.Messages {
		if p.seen[b.ID] {
			continue
		}
		p.seen[b.ID] = true
		name := boldCyan(b.SenderName)
		if b.IsOwn {
			name = boldGreen("You")
		}
		fmt.Printf("%s %s: %s\n", faint(b.Time), name, b.Content)
	}
	if st.SendError != "" && st.SendError != p.lastErr {
		fmt.Println(red(st.SendError))
	}
	p.lastErr = st.SendError
}

func openChat(ctx context.Context, svc *service.Service, l *logrus.Logger, userID string) error {
	ok, err := svc.IsChatParticipant(ctx, *chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("you are not a participant of chat %s", *chatID)
	}

	view := chatview.New(svc, userID, l)
	p := &printer{seen: map[string]bool{}}

	if err := view.Mount(ctx, *chatID); err != nil {
		return err
	}
	defer view.Unmount()

	header := view.State().Header
	fmt.Printf("%s  %s\n", boldGreen(header.Title), faint(header.Subtitle))
	fmt.Println("Type your message and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	p.render(view.State())
	view.OnChange(p.render)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case line, ok := <-lines:
			if !ok || strings.ToLower(strings.TrimSpace(line)) == "exit" {
				return nil
			}
			view.SetInput(line)
			// backend failures arrive as State.SendError
			if _, err := view.Send(ctx); models.IsValidation(err) {
				fmt.Println(red(err.Error()))
			}
		}
	}
}
