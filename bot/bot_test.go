package bot

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-sarah/v4"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/hm-eit/eitbot/config"
	"github.com/hm-eit/eitbot/discord"
	"github.com/hm-eit/eitbot/guild"
)

// mockSession implements Session and records the calls that change something.
type mockSession struct {
	mu      sync.Mutex
	members []*discordgo.Member
	ops     []string
}

func (m *mockSession) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *mockSession) operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

func (m *mockSession) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return []*discordgo.Role{
		{ID: "r-student", Name: "Student"},
		{ID: "r-gast", Name: "Gast"},
		{ID: "r-gamer", Name: "Gamer"},
		{ID: "r-ws23a", Name: "WS23A"},
	}, nil
}

func (m *mockSession) GuildChannels(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return []*discordgo.Channel{
		{ID: "c-kalender", Name: "kalender", Type: discordgo.ChannelTypeGuildText},
		{ID: "c-1", Name: "1-semester-termine", Type: discordgo.ChannelTypeGuildText},
	}, nil
}

func (m *mockSession) GuildMembers(_ string, _ string, _ int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	return m.members, nil
}

func (m *mockSession) GuildMember(_ string, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	for _, member := range m.members {
		if member.User.ID == userID {
			return member, nil
		}
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (m *mockSession) GuildMemberRoleAdd(_ string, userID string, roleID string, _ ...discordgo.RequestOption) error {
	m.record("add " + userID + " " + roleID)
	return nil
}

func (m *mockSession) GuildMemberRoleRemove(_ string, userID string, roleID string, _ ...discordgo.RequestOption) error {
	m.record("remove " + userID + " " + roleID)
	return nil
}

func (m *mockSession) GuildMemberNickname(_ string, userID string, nickname string, _ ...discordgo.RequestOption) error {
	m.record("nick " + userID + " " + nickname)
	return nil
}

func (m *mockSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (m *mockSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.record("send " + channelID + " " + content)
	return &discordgo.Message{}, nil
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.record("embed " + channelID + " " + embed.Title)
	return &discordgo.Message{ID: "m-" + channelID}, nil
}

func (m *mockSession) ChannelMessageEditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.record("edit " + messageID + " " + embed.Title)
	return &discordgo.Message{ID: messageID}, nil
}

func (m *mockSession) ChannelMessageDelete(_ string, messageID string, _ ...discordgo.RequestOption) error {
	m.record("delete " + messageID)
	return nil
}

// mockSource implements calendar.Source with one upcoming event.
type mockSource struct{}

func (mockSource) CalendarList(_ context.Context) ([]*gcal.CalendarListEntry, error) {
	return []*gcal.CalendarListEntry{{Id: "inf1", Summary: "WS23A-Mathe"}}, nil
}

func (mockSource) Events(_ context.Context, _ string, timeMin time.Time, _ int64) ([]*gcal.Event, error) {
	return []*gcal.Event{{
		Id:      "abc",
		Updated: "2024-01-01T12:00:00Z",
		Summary: "Mathematik 1",
		Start:   &gcal.EventDateTime{DateTime: timeMin.Add(10 * time.Minute).Format(time.RFC3339)},
	}}, nil
}

func newSession() *mockSession {
	return &mockSession{
		members: []*discordgo.Member{
			{User: &discordgo.User{ID: "u1"}, Roles: []string{"r-student", "r-ws23a"}},
			{User: &discordgo.User{ID: "u2"}, Roles: []string{"r-gast"}},
		},
	}
}

func newBot(t *testing.T, ctx context.Context, session *mockSession, options ...Option) *Bot {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Server = 42
	cfg.Roles = []string{"Student", "Gast", "Gamer"}
	cfg.Channels = []string{"kalender"}
	cfg.Semesters = map[int][]string{1: {"WS23A"}}
	cfg.Discord.Token = "secret"
	cfg.Calendar.FallbackChannel = "kalender"
	cfg.Calendar.RefreshInterval = time.Hour
	cfg.Calendar.UpdateInterval = time.Hour

	g, err := guild.Resolve(ctx, session, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	b, err := New(ctx, cfg, session, g, options...)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	return b
}

func input(authorID string, content string) *discord.Input {
	in, _ := discord.MessageToInput(&discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "c-bot",
			Content:   content,
			Author:    &discordgo.User{ID: authorID},
		},
	})
	return in
}

func content(t *testing.T, res *sarah.CommandResponse) string {
	t.Helper()
	if res == nil {
		t.Fatal("Expected a response")
	}
	s, ok := res.Content.(string)
	if !ok {
		t.Fatalf("Expected string content, got %T", res.Content)
	}
	return s
}

func waitPending(t *testing.T, b *Bot, userID string, channelID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !b.Registry().Pending(userID, channelID) {
		if time.Now().After(deadline) {
			t.Fatalf("No pending wait for %s in %s", userID, channelID)
		}
		time.Sleep(time.Millisecond)
	}
}

func answer(t *testing.T, b *Bot, userID string, text string) {
	t.Helper()
	channelID := "dm-" + userID
	waitPending(t, b, userID, channelID)
	delivered := b.Registry().Deliver(&discordgo.Message{
		ChannelID: channelID,
		Content:   text,
		Author:    &discordgo.User{ID: userID},
	})
	if !delivered {
		t.Fatalf("Answer %q was not delivered", text)
	}
}

func TestBot_Commands(t *testing.T) {
	b := newBot(t, context.TODO(), newSession())

	props, err := b.Commands()
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if len(props) != 8 {
		t.Errorf("Expected 8 commands, got %d", len(props))
	}
}

func TestBot_OnMemberJoin(t *testing.T) {
	session := newSession()
	b := newBot(t, context.TODO(), session)

	b.OnMemberJoin(context.TODO(), session.members[1])

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Wait()
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the dialog finished")
	case <-time.After(10 * time.Millisecond):
	}

	answer(t, b, "u2", "Erika Musterfrau")
	answer(t, b, "u2", "ws23a")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dialog did not finish")
	}

	ops := session.operations()
	for _, expected := range []string{"nick u2 Erika Musterfrau", "add u2 r-ws23a", "add u2 r-student", "embed dm-u2 Ende"} {
		if !slices.Contains(ops, expected) {
			t.Errorf("Expected %q in %v", expected, ops)
		}
	}
}

func TestBot_setup(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		session := newSession()
		b := newBot(t, ctx, session)

		res, err := b.setup(context.TODO(), input("u1", ".setup"), "")
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		if !strings.Contains(content(t, res), "Direktnachrichten") {
			t.Errorf("Unexpected response: %s", content(t, res))
		}

		waitPending(t, b, "u1", "dm-u1")
		cancel()
		b.Wait()

		if ops := session.operations(); !slices.Contains(ops, "embed dm-u1 Setup") {
			t.Errorf("Expected the greeting, got %v", ops)
		}
	})

	t.Run("stranger", func(t *testing.T) {
		b := newBot(t, context.TODO(), newSession())

		res, err := b.setup(context.TODO(), input("stranger", ".setup"), "")
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		if !strings.Contains(content(t, res), "kein Mitglied") {
			t.Errorf("Unexpected response: %s", content(t, res))
		}
	})
}

func TestBot_semesterStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := newSession()
	b := newBot(t, ctx, session)

	if _, err := b.semesterStart(context.TODO(), input("u1", ".semesterstart"), ""); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	answer(t, b, "u1", "Gast")
	cancel()
	b.Wait()

	ops := session.operations()
	for _, expected := range []string{"embed dm-u1 Semesterstart", "remove u1 r-ws23a", "add u1 r-gast", "remove u1 r-student"} {
		if !slices.Contains(ops, expected) {
			t.Errorf("Expected %q in %v", expected, ops)
		}
	}
}

func TestBot_gamer(t *testing.T) {
	session := newSession()
	b := newBot(t, context.TODO(), session)

	res, err := b.gamer(context.TODO(), input("u1", ".gamer"), "")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if res != nil {
		t.Errorf("Expected no channel response, got %+v", res)
	}
	if ops := session.operations(); !slices.Contains(ops, "add u1 r-gamer") {
		t.Errorf("Expected the role to be added, got %v", ops)
	}
}

func TestBot_broadcast(t *testing.T) {
	tests := []struct {
		args     string
		expected string
	}{
		{args: "", expected: "Benutzung"},
		{args: "Student dance", expected: "Benutzung"},
		{args: "setup", expected: "Es muss eine Rolle angegeben werden!"},
		{args: "Tutor setup", expected: "Unbekannte Rolle"},
		{args: "Student Gast semesterstart", expected: "semesterstart wurde für 2 Mitglieder gestartet."},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			b := newBot(t, ctx, newSession())

			res, err := b.broadcast(context.TODO(), input("u1", ".broadcast "+tt.args), tt.args)
			if err != nil {
				t.Fatalf("Unexpected error: %s", err.Error())
			}
			if !strings.Contains(content(t, res), tt.expected) {
				t.Errorf("Expected %q, got %q", tt.expected, content(t, res))
			}

			cancel()
			b.Wait()
		})
	}
}

func TestBot_calendarCommands(t *testing.T) {
	t.Run("without calendar", func(t *testing.T) {
		b := newBot(t, context.TODO(), newSession())

		for _, fn := range []commandFunc{b.start, b.stop} {
			res, err := fn(context.TODO(), input("u1", ""), "")
			if err != nil {
				t.Fatalf("Unexpected error: %s", err.Error())
			}
			if content(t, res) != "Es ist kein Kalender eingerichtet." {
				t.Errorf("Unexpected response: %s", content(t, res))
			}
		}

		res, _ := b.ongoing(context.TODO(), input("u1", ".ongoing"), "")
		if content(t, res) != noOngoing {
			t.Errorf("Unexpected response: %s", content(t, res))
		}
	})

	t.Run("with calendar", func(t *testing.T) {
		session := newSession()
		b := newBot(t, context.Background(), session, WithCalendarSource(mockSource{}))

		expected := []struct {
			fn       commandFunc
			response string
		}{
			{fn: b.stop, response: "Der Kalender läuft nicht."},
			{fn: b.start, response: "Der Kalender wurde gestartet."},
			{fn: b.start, response: "Der Kalender läuft bereits."},
		}
		for i, e := range expected {
			res, err := e.fn(context.TODO(), input("u1", ""), "")
			if err != nil {
				t.Fatalf("Unexpected error: %s", err.Error())
			}
			if content(t, res) != e.response {
				t.Errorf("Step %d: expected %q, got %q", i, e.response, content(t, res))
			}
		}

		if err := b.Calendar().Refresh(context.TODO()); err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		res, _ := b.ongoing(context.TODO(), input("u1", ".ongoing"), "")
		if content(t, res) != "```WS23A-Mathe: Mathematik 1```" {
			t.Errorf("Unexpected response: %s", content(t, res))
		}

		res, _ = b.stop(context.TODO(), input("u1", ".stop"), "")
		if content(t, res) != "Der Kalender wurde gestoppt." {
			t.Errorf("Unexpected response: %s", content(t, res))
		}
	})
}

func TestBot_showConfig(t *testing.T) {
	b := newBot(t, context.TODO(), newSession())

	res, err := b.showConfig(context.TODO(), input("u1", ".config"), "")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	out := content(t, res)
	if strings.Contains(out, "secret") {
		t.Error("Expected the token to be masked")
	}
	for _, fragment := range []string{"server: 42", "guild: 42", "1.Semester (#1-semester-termine): WS23A"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("Expected %q in %s", fragment, out)
		}
	}
}

func TestBot_respondLong(t *testing.T) {
	session := newSession()
	b := newBot(t, context.TODO(), session)

	res, err := b.respondLong(input("u1", ""), strings.Repeat("x", MaxBlockLength+10))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	ops := session.operations()
	if len(ops) != 1 || !strings.HasPrefix(ops[0], "send c-bot ```x") {
		t.Errorf("Expected the first part to be sent directly, got %d operations", len(ops))
	}
	if content(t, res) != codeBlock(strings.Repeat("x", 10)) {
		t.Errorf("Unexpected last part: %s", content(t, res))
	}
}

func TestSplitCodeBlocks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		lengths []int
	}{
		{name: "empty", content: "", lengths: []int{0}},
		{name: "short", content: "abc", lengths: []int{3}},
		{name: "exact", content: strings.Repeat("a", MaxBlockLength), lengths: []int{MaxBlockLength}},
		{name: "one over", content: strings.Repeat("a", MaxBlockLength+1), lengths: []int{MaxBlockLength, 1}},
		{name: "runes", content: strings.Repeat("ü", 2*MaxBlockLength+3), lengths: []int{MaxBlockLength, MaxBlockLength, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := SplitCodeBlocks(tt.content)
			if len(blocks) != len(tt.lengths) {
				t.Fatalf("Expected %d blocks, got %d", len(tt.lengths), len(blocks))
			}
			for i, block := range blocks {
				if !strings.HasPrefix(block, "```") || !strings.HasSuffix(block, "```") {
					t.Errorf("Block %d is not a code block", i)
				}
				inner := []rune(strings.TrimSuffix(strings.TrimPrefix(block, "```"), "```"))
				if len(inner) != tt.lengths[i] {
					t.Errorf("Block %d: expected %d runes, got %d", i, tt.lengths[i], len(inner))
				}
			}
		})
	}
}
