package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/nasirmalek/FamilyCircle/internal/api"
	"github.com/nasirmalek/FamilyCircle/internal/config"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository/sqldb"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/pkg/logger"
)

var (
	filler   = flag.Int("filler", 20, "Random messages added to the family group")
	tokenTTL = flag.Duration("token-ttl", 30*24*time.Hour, "Lifetime of the printed tokens")
	seed     = flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
)

type demoUser struct {
	username string
	relation string
	role     string
}

var demoUsers = []demoUser{
	{"Mom", "Mother", models.RoleAdmin},
	{"Dad", "Father", models.RoleAdmin},
	{"Sarah", "Sister", models.RoleMember},
	{"John", "Brother", models.RoleMember},
}

type demoChat struct {
	kind     models.ChatType
	name     string
	creator  string
	members  []string
	messages [][2]string // sender, content
}

var demoChats = []demoChat{
	{
		kind: models.ChatTypeGroup, name: "Family Group", creator: "Mom",
		members: []string{"Dad", "Sarah", "John"},
		messages: [][2]string{
			{"Dad", "Who is bringing dessert this weekend?"},
			{"John", "I can pick up a cake"},
			{"Mom", "Looking forward to Sunday dinner everyone! 🍽️"},
		},
	},
	{
		kind: models.ChatTypeDirect, creator: "Mom",
		members: []string{"John"},
		messages: [][2]string{
			{"Mom", "Can you pick up milk on your way home?"},
		},
	},
	{
		kind: models.ChatTypeGroup, name: "Summer Trip Planning", creator: "Dad",
		members: []string{"Sarah", "John"},
		messages: [][2]string{
			{"Dad", "Beach or mountains this year?"},
			{"Sarah", "I found a great resort! Sharing photos..."},
		},
	},
	{
		kind: models.ChatTypeDirect, creator: "John",
		members: []string{"Sarah"},
		messages: [][2]string{
			{"John", "Thanks for the birthday gift! 🎁"},
		},
	},
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.NewDatabase(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	b := db.Backend()
	svc := service.New(l, nil,
		sqldb.NewChatRepository(b),
		sqldb.NewMessageRepository(b),
		sqldb.NewProfileRepository(b),
		sqldb.NewFamilyRepository(b),
	)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(*seed)

	if err := run(ctx, svc, faker, []byte(cfg.JWTSecret)); err != nil {
		l.Fatalf("Seeding failed: %v", err)
	}
}

func run(ctx context.Context, svc *service.Service, faker *gofakeit.Faker, secret []byte) error {
	family, err := svc.Families.Create(ctx, &models.Family{Name: "Smith Family"})
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	ids := make(map[string]string, len(demoUsers))
	for _, u := range demoUsers {
		profile, err := svc.Profiles.GetByUsername(ctx, u.username)
		if models.IsNotFound(err) {
			profile, err = svc.Profiles.Create(ctx, &models.UserProfile{
				Username: u.username,
				Email:    strings.ToLower(u.username) + "@" + faker.DomainName(),
			})
		}
		if err != nil {
			return fmt.Errorf("failed to ensure profile %s: %w", u.username, err)
		}
		ids[u.username] = profile.ID

		if err := svc.Families.AddMember(ctx, &models.FamilyMember{
			FamilyID: family.ID,
			UserID:   profile.ID,
			Role:     u.role,
			Relation: u.relation,
		}); err != nil {
			return fmt.Errorf("failed to add %s to family: %w", u.username, err)
		}
	}

	var groupID string
	for _, c := range demoChats {
		memberIDs := make([]string, 0, len(c.members))
		for _, m := range c.members {
			memberIDs = append(memberIDs, ids[m])
		}
		chat, err := svc.CreateChat(ctx, service.CreateChatInput{
			Kind:      c.kind,
			Name:      c.name,
			MemberIDs: memberIDs,
			FamilyID:  family.ID,
			CreatorID: ids[c.creator],
		})
		if err != nil {
			return fmt.Errorf("failed to create chat %q: %w", c.name, err)
		}
		if groupID == "" {
			groupID = chat.ID
		}

		for _, m := range c.messages {
			if _, err := svc.SendMessage(ctx, chat.ID, m[1], ids[m[0]]); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
		}
	}

	for i := 0; i < *filler; i++ {
		sender := demoUsers[faker.Number(0, len(demoUsers)-1)].username
		if _, err := svc.SendMessage(ctx, groupID, faker.Sentence(faker.Number(3, 12)), ids[sender]); err != nil {
			return fmt.Errorf("failed to send filler message: %w", err)
		}
	}

	fmt.Printf("family_id=%s\n", family.ID)
	for _, u := range demoUsers {
		token, err := api.IssueToken(secret, ids[u.username], *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Printf("%s user_id=%s token=%s\n", u.username, ids[u.username], token)
	}
	return nil
}
