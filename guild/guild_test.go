package guild

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/hm-eit/eitbot/config"
)

// mockSession implements Session for testing.
type mockSession struct {
	roles    []*discordgo.Role
	channels []*discordgo.Channel
	members  []*discordgo.Member

	guildRolesErr   error
	roleAddFunc     func(userID string, roleID string) error
	memberPageCalls []string

	ops []string
}

func (m *mockSession) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return m.roles, m.guildRolesErr
}

func (m *mockSession) GuildChannels(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return slices.Clone(m.channels), nil
}

func (m *mockSession) GuildMembers(_ string, after string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	m.memberPageCalls = append(m.memberPageCalls, after)

	start := 0
	if after != "" {
		for i, member := range m.members {
			if member.User.ID == after {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(m.members))
	return m.members[start:end], nil
}

func (m *mockSession) GuildMember(_ string, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	for _, member := range m.members {
		if member.User.ID == userID {
			return member, nil
		}
	}
	return nil, &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember},
	}
}

func (m *mockSession) GuildMemberRoleAdd(_ string, userID string, roleID string, _ ...discordgo.RequestOption) error {
	m.ops = append(m.ops, "add "+userID+" "+roleID)
	if m.roleAddFunc != nil {
		return m.roleAddFunc(userID, roleID)
	}
	return nil
}

func (m *mockSession) GuildMemberRoleRemove(_ string, userID string, roleID string, _ ...discordgo.RequestOption) error {
	m.ops = append(m.ops, "remove "+userID+" "+roleID)
	return nil
}

func (m *mockSession) GuildMemberNickname(_ string, userID string, nickname string, _ ...discordgo.RequestOption) error {
	m.ops = append(m.ops, "nick "+userID+" "+nickname)
	return nil
}

func (m *mockSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (m *mockSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.ops = append(m.ops, "send "+channelID+" "+content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func newSession() *mockSession {
	return &mockSession{
		roles: []*discordgo.Role{
			{ID: "r-student", Name: "Student"},
			{ID: "r-gast", Name: "Gast"},
			{ID: "r-gamer", Name: "Gamer"},
			{ID: "r-ws23a", Name: "WS23A"},
			{ID: "r-ws23b", Name: "WS23B"},
			{ID: "r-ss24", Name: "SS24"},
		},
		channels: []*discordgo.Channel{
			{ID: "c-kalender", Name: "kalender", Type: discordgo.ChannelTypeGuildText},
			{ID: "c-voice", Name: "1-semester-termine", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "c-1", Name: "1-semester-termine", Type: discordgo.ChannelTypeGuildText},
			{ID: "c-2", Name: "2-semester-chat", Type: discordgo.ChannelTypeGuildText},
		},
		members: []*discordgo.Member{
			{User: &discordgo.User{ID: "u1"}, Roles: []string{"r-student", "r-ws23a"}},
			{User: &discordgo.User{ID: "u2"}, Roles: []string{"r-gast"}},
			{User: &discordgo.User{ID: "bot", Bot: true}, Roles: []string{"r-student"}},
			{User: &discordgo.User{ID: "u3"}, Roles: []string{"r-gamer"}},
		},
	}
}

func newConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Server = 42
	cfg.Roles = []string{"Student", "Gast", "Gamer", "Tutor"}
	cfg.Channels = []string{"kalender", "archiv"}
	cfg.Semesters = map[int][]string{
		1: {"WS23A", "WS23B", "WS23C"},
		2: {"SS24"},
	}
	return cfg
}

func resolve(t *testing.T, session *mockSession) *Guild {
	t.Helper()
	g, err := Resolve(context.TODO(), session, newConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	return g
}

func TestResolve(t *testing.T) {
	g := resolve(t, newSession())

	if g.ID != "42" {
		t.Errorf("Unexpected guild ID: %s", g.ID)
	}
	if _, ok := g.Role("Tutor"); ok {
		t.Error("Expected missing role to be skipped")
	}
	if role, ok := g.Role("Gamer"); !ok || role.ID != "r-gamer" {
		t.Errorf("Unexpected role: %+v", role)
	}
	if _, ok := g.Channel("archiv"); ok {
		t.Error("Expected missing channel to be skipped")
	}

	semesters := g.Semesters()
	if len(semesters) != 2 {
		t.Fatalf("Expected 2 semesters, got %d", len(semesters))
	}
	if semesters[0].Channel == nil || semesters[0].Channel.ID != "c-1" {
		t.Errorf("Expected the text announcement channel, got %+v", semesters[0].Channel)
	}
	if semesters[1].Channel != nil {
		t.Errorf("Expected no announcement channel, got %+v", semesters[1].Channel)
	}
	if len(semesters[0].Groups) != 2 || semesters[0].String() != "1.Semester" {
		t.Errorf("Unexpected semester: %s %+v", semesters[0], semesters[0].Groups)
	}
	if len(g.Groups()) != 3 {
		t.Errorf("Expected 3 groups, got %d", len(g.Groups()))
	}

	mapping := g.ChannelMapping()
	if len(mapping) != 2 || mapping["WS23A"] != "c-1" || mapping["WS23B"] != "c-1" {
		t.Errorf("Unexpected mapping: %+v", mapping)
	}

	summary := g.Summary()
	for _, fragment := range []string{"roles: Gamer, Gast, Student", "1.Semester (#1-semester-termine): WS23A, WS23B", "2.Semester (-): SS24"} {
		if !strings.Contains(summary, fragment) {
			t.Errorf("Expected summary to contain %q:\n%s", fragment, summary)
		}
	}
}

func TestResolve_Error(t *testing.T) {
	session := newSession()
	session.guildRolesErr = errors.New("missing access")

	if _, err := Resolve(context.TODO(), session, newConfig()); err == nil {
		t.Error("Expected error")
	}
}

func TestGuild_RoleFor(t *testing.T) {
	g := resolve(t, newSession())

	tests := []struct {
		answer   string
		expected string
	}{
		{answer: "gast", expected: "r-gast"},
		{answer: " STUDENT ", expected: "r-student"},
		{answer: "ws23b", expected: "r-ws23b"},
		{answer: "ss", expected: "r-ss24"},
		{answer: "WS23", expected: "r-ws23a"},
		{answer: "Informatik", expected: ""},
		{answer: "", expected: ""},
	}

	for _, tt := range tests {
		role, ok := g.RoleFor(tt.answer)
		if tt.expected == "" {
			if ok {
				t.Errorf("%q: expected no role, got %s", tt.answer, role.ID)
			}
			continue
		}
		if !ok || role.ID != tt.expected {
			t.Errorf("%q: expected %s, got %+v", tt.answer, tt.expected, role)
		}
	}
}

func TestGuild_ToggleRole(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		session := newSession()
		g := resolve(t, session)

		added, err := g.ToggleRole(context.TODO(), "u1", "Gamer")
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		if !added {
			t.Error("Expected the role to be added")
		}
		expected := []string{"add u1 r-gamer", "send dm-u1 Du hast die Rolle **Gamer** erhalten!"}
		if !slices.Equal(session.ops, expected) {
			t.Errorf("Unexpected operations: %v", session.ops)
		}
	})

	t.Run("remove", func(t *testing.T) {
		session := newSession()
		g := resolve(t, session)

		added, err := g.ToggleRole(context.TODO(), "u3", "Gamer")
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		if added {
			t.Error("Expected the role to be removed")
		}
		expected := []string{"remove u3 r-gamer", "send dm-u3 Deine Rolle **Gamer** wurde entfernt!"}
		if !slices.Equal(session.ops, expected) {
			t.Errorf("Unexpected operations: %v", session.ops)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		g := resolve(t, newSession())
		if _, err := g.ToggleRole(context.TODO(), "u1", "Tutor"); !errors.Is(err, ErrUnknownRole) {
			t.Errorf("Expected ErrUnknownRole, got %v", err)
		}
	})

	t.Run("not a member", func(t *testing.T) {
		g := resolve(t, newSession())
		if _, err := g.ToggleRole(context.TODO(), "stranger", "Gamer"); !errors.Is(err, ErrNotMember) {
			t.Errorf("Expected ErrNotMember, got %v", err)
		}
	})

	t.Run("add fails", func(t *testing.T) {
		session := newSession()
		session.roleAddFunc = func(_ string, _ string) error { return errors.New("forbidden") }
		g := resolve(t, session)

		if _, err := g.ToggleRole(context.TODO(), "u1", "Gamer"); err == nil {
			t.Error("Expected error")
		}
		if len(session.ops) != 1 {
			t.Errorf("Expected no notification, got %v", session.ops)
		}
	})
}

func TestGuild_AssignGroup(t *testing.T) {
	t.Run("group", func(t *testing.T) {
		session := newSession()
		g := resolve(t, session)
		role, _ := g.RoleFor("WS23B")

		if err := g.AssignGroup(context.TODO(), session.members[0], role); err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		expected := []string{"remove u1 r-ws23a", "add u1 r-ws23b", "add u1 r-student"}
		if !slices.Equal(session.ops, expected) {
			t.Errorf("Unexpected operations: %v", session.ops)
		}
	})

	t.Run("guest", func(t *testing.T) {
		session := newSession()
		g := resolve(t, session)
		role, _ := g.RoleFor("Gast")

		if err := g.AssignGroup(context.TODO(), session.members[0], role); err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		expected := []string{"remove u1 r-ws23a", "add u1 r-gast", "remove u1 r-student"}
		if !slices.Equal(session.ops, expected) {
			t.Errorf("Unexpected operations: %v", session.ops)
		}
	})

	t.Run("no member", func(t *testing.T) {
		g := resolve(t, newSession())
		if err := g.AssignGroup(context.TODO(), nil, &discordgo.Role{ID: "x"}); !errors.Is(err, ErrNotMember) {
			t.Errorf("Expected ErrNotMember, got %v", err)
		}
	})
}

func TestGuild_MembersWithRoles(t *testing.T) {
	t.Run("filters by role", func(t *testing.T) {
		g := resolve(t, newSession())

		members, err := g.MembersWithRoles(context.TODO(), []string{"Student", "Gast"})
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.User.ID)
		}
		if !slices.Equal(ids, []string{"u1", "u2"}) {
			t.Errorf("Unexpected members: %v", ids)
		}
	})

	t.Run("pages through the member list", func(t *testing.T) {
		session := newSession()
		session.members = nil
		for i := range membersPageSize + 5 {
			session.members = append(session.members, &discordgo.Member{
				User:  &discordgo.User{ID: fmt.Sprintf("u%04d", i)},
				Roles: []string{"r-gamer"},
			})
		}
		g := resolve(t, session)

		members, err := g.MembersWithRoles(context.TODO(), []string{"Gamer"})
		if err != nil {
			t.Fatalf("Unexpected error: %s", err.Error())
		}
		if len(members) != membersPageSize+5 {
			t.Errorf("Expected all members, got %d", len(members))
		}
		if len(session.memberPageCalls) != 2 || session.memberPageCalls[1] != "u0999" {
			t.Errorf("Unexpected page requests: %v", session.memberPageCalls)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		g := resolve(t, newSession())
		if _, err := g.MembersWithRoles(context.TODO(), []string{"Tutor"}); !errors.Is(err, ErrUnknownRole) {
			t.Errorf("Expected ErrUnknownRole, got %v", err)
		}
	})
}

func TestGuild_SetNickname(t *testing.T) {
	session := newSession()
	g := resolve(t, session)

	if err := g.SetNickname(context.TODO(), "u1", "Max Muster"); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if !slices.Equal(session.ops, []string{"nick u1 Max Muster"}) {
		t.Errorf("Unexpected operations: %v", session.ops)
	}
}
