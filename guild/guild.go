package guild

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"

	"github.com/hm-eit/eitbot/config"
	"github.com/hm-eit/eitbot/discord"
)

const (
	// RoleStudent is held by every member in a study group.
	RoleStudent = "Student"

	// RoleGuest is chosen by members that do not study in one of the groups.
	RoleGuest = "Gast"

	// RoleGamer is toggled by the gamer command.
	RoleGamer = "Gamer"

	announcementMarker = "termine"
	membersPageSize    = 1000
)

// Session abstracts the discordgo.Session methods Guild uses.
// *discordgo.Session satisfies this interface.
type Session interface {
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMember(guildID string, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID string, userID string, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID string, userID string, roleID string, options ...discordgo.RequestOption) error
	GuildMemberNickname(guildID string, userID string, nickname string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Session = (*discordgo.Session)(nil)

// Semester is a semester number with its announcement channel and study groups.
type Semester struct {
	Year int

	// Channel is the text channel whose name contains the year and "termine". It is nil when there is none.
	Channel *discordgo.Channel

	Groups []*Group
}

func (s *Semester) String() string {
	return fmt.Sprintf("%d.Semester", s.Year)
}

// Group is a study group backed by a guild role of the same name.
type Group struct {
	Name     string
	Role     *discordgo.Role
	Semester *Semester
}

// Guild is the resolved view of the managed Discord guild.
type Guild struct {
	ID string

	session   Session
	roles     map[string]*discordgo.Role
	channels  map[string]*discordgo.Channel
	semesters []*Semester
	groups    []*Group
}

// Resolve looks up every configured name in the guild. Names that do not exist are logged and skipped.
func Resolve(ctx context.Context, session Session, cfg *config.Config) (*Guild, error) {
	guildID := cfg.GuildID()

	roles, err := session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of guild %s: %w", guildID, err)
	}

	channels, err := session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list channels of guild %s: %w", guildID, err)
	}
	textChannels := slices.DeleteFunc(channels, func(ch *discordgo.Channel) bool {
		return ch.Type != discordgo.ChannelTypeGuildText
	})

	g := &Guild{
		ID:       guildID,
		session:  session,
		roles:    map[string]*discordgo.Role{},
		channels: map[string]*discordgo.Channel{},
	}

	for _, name := range cfg.Roles {
		if role := roleByName(roles, name); role != nil {
			g.roles[name] = role
		} else {
			logger.Warnf("Role %s not found in guild %s", name, guildID)
		}
	}

	for _, name := range cfg.Channels {
		if channel := channelByName(textChannels, name); channel != nil {
			g.channels[name] = channel
		} else {
			logger.Warnf("Channel %s not found in guild %s", name, guildID)
		}
	}

	for _, year := range cfg.Years() {
		semester := &Semester{Year: year}

		marker := fmt.Sprintf("%d", year)
		for _, ch := range textChannels {
			if strings.Contains(ch.Name, marker) && strings.Contains(ch.Name, announcementMarker) {
				semester.Channel = ch
				break
			}
		}
		if semester.Channel == nil {
			logger.Warnf("No announcement channel found for %s", semester)
		}

		for _, name := range cfg.Semesters[year] {
			role := roleByName(roles, name)
			if role == nil {
				logger.Warnf("Group role %s not found in guild %s", name, guildID)
				continue
			}
			group := &Group{Name: name, Role: role, Semester: semester}
			semester.Groups = append(semester.Groups, group)
			g.groups = append(g.groups, group)
		}

		g.semesters = append(g.semesters, semester)
	}

	logger.Infof("Resolved guild %s: %d roles, %d channels, %d groups", guildID, len(g.roles), len(g.channels), len(g.groups))
	return g, nil
}

// Role returns the resolved role of the given configured name.
func (g *Guild) Role(name string) (*discordgo.Role, bool) {
	role, ok := g.roles[name]
	return role, ok
}

// Channel returns the resolved text channel of the given configured name.
func (g *Guild) Channel(name string) (*discordgo.Channel, bool) {
	channel, ok := g.channels[name]
	return channel, ok
}

// Semesters returns the semesters in ascending order.
func (g *Guild) Semesters() []*Semester {
	return g.semesters
}

// Groups returns all study groups.
func (g *Guild) Groups() []*Group {
	return g.groups
}

// RoleFor converts a dialog answer into a role: a configured role whose name equals the answer ignoring case,
// or else the first group whose name contains the answer ignoring case.
func (g *Guild) RoleFor(answer string) (*discordgo.Role, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, false
	}

	names := make([]string, 0, len(g.roles))
	for name := range g.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.EqualFold(name, answer) {
			return g.roles[name], true
		}
	}

	upper := strings.ToUpper(answer)
	for _, group := range g.groups {
		if strings.Contains(strings.ToUpper(group.Name), upper) {
			return group.Role, true
		}
	}

	return nil, false
}

// ChannelMapping maps each group name to the ID of its semester's announcement channel.
// Groups of semesters without such a channel are left out.
func (g *Guild) ChannelMapping() map[string]string {
	mapping := make(map[string]string, len(g.groups))
	for _, group := range g.groups {
		if group.Semester.Channel != nil {
			mapping[group.Name] = group.Semester.Channel.ID
		}
	}
	return mapping
}

// Member fetches the guild member of userID.
func (g *Guild) Member(ctx context.Context, userID string) (*discordgo.Member, error) {
	member, err := g.session.GuildMember(g.ID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if discord.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotMember, userID)
		}
		return nil, fmt.Errorf("failed to fetch member %s: %w", userID, err)
	}
	return member, nil
}

// SetNickname changes the nickname of userID in the guild.
func (g *Guild) SetNickname(ctx context.Context, userID string, nickname string) error {
	return g.session.GuildMemberNickname(g.ID, userID, nickname, discordgo.WithContext(ctx))
}

// ToggleRole gives the configured role to userID or takes it away, and tells the user by DM.
// The returned bool is true when the role was added.
func (g *Guild) ToggleRole(ctx context.Context, userID string, roleName string) (bool, error) {
	role, ok := g.Role(roleName)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	member, err := g.Member(ctx, userID)
	if err != nil {
		return false, err
	}

	var notice string
	added := !slices.Contains(member.Roles, role.ID)
	if added {
		err = g.session.GuildMemberRoleAdd(g.ID, userID, role.ID, discordgo.WithContext(ctx))
		notice = fmt.Sprintf("Du hast die Rolle **%s** erhalten!", role.Name)
	} else {
		err = g.session.GuildMemberRoleRemove(g.ID, userID, role.ID, discordgo.WithContext(ctx))
		notice = fmt.Sprintf("Deine Rolle **%s** wurde entfernt!", role.Name)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle role %s of %s: %w", role.Name, userID, err)
	}

	if err := g.sendDirect(ctx, userID, notice); err != nil {
		logger.Warnf("Could not notify %s about role %s: %+v", userID, role.Name, err)
	}

	return added, nil
}

// AssignGroup replaces the member's group roles with role. Choosing the guest role removes the student role,
// any other role adds it.
func (g *Guild) AssignGroup(ctx context.Context, member *discordgo.Member, role *discordgo.Role) error {
	if member == nil || member.User == nil {
		return ErrNotMember
	}
	userID := member.User.ID

	for _, group := range g.groups {
		if group.Role.ID == role.ID || !slices.Contains(member.Roles, group.Role.ID) {
			continue
		}
		if err := g.session.GuildMemberRoleRemove(g.ID, userID, group.Role.ID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to remove group %s from %s: %w", group.Name, userID, err)
		}
	}

	if err := g.session.GuildMemberRoleAdd(g.ID, userID, role.ID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role %s to %s: %w", role.Name, userID, err)
	}

	student, ok := g.Role(RoleStudent)
	if !ok {
		logger.Warnf("Role %s is not configured, skipping it for %s", RoleStudent, userID)
		return nil
	}

	if guest, ok := g.Role(RoleGuest); ok && guest.ID == role.ID {
		if err := g.session.GuildMemberRoleRemove(g.ID, userID, student.ID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to remove role %s from %s: %w", student.Name, userID, err)
		}
		return nil
	}

	if err := g.session.GuildMemberRoleAdd(g.ID, userID, student.ID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role %s to %s: %w", student.Name, userID, err)
	}
	return nil
}

// MembersWithRoles returns the human members holding at least one of the given configured roles.
func (g *Guild) MembersWithRoles(ctx context.Context, roleNames []string) ([]*discordgo.Member, error) {
	wanted := make(map[string]bool, len(roleNames))
	for _, name := range roleNames {
		role, ok := g.Role(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, name)
		}
		wanted[role.ID] = true
	}

	var members []*discordgo.Member
	after := ""
	for {
		page, err := g.session.GuildMembers(g.ID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list members of guild %s: %w", g.ID, err)
		}

		for _, member := range page {
			if member.User == nil || member.User.Bot {
				continue
			}
			if slices.ContainsFunc(member.Roles, func(id string) bool { return wanted[id] }) {
				members = append(members, member)
			}
		}

		if len(page) < membersPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Summary renders the resolved state for operators.
func (g *Guild) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "guild: %s\n", g.ID)

	names := make([]string, 0, len(g.roles))
	for name := range g.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(&b, "roles: %s\n", strings.Join(names, ", "))

	names = names[:0]
	for name := range g.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(&b, "channels: %s\n", strings.Join(names, ", "))

	for _, semester := range g.semesters {
		channel := "-"
		if semester.Channel != nil {
			channel = "#" + semester.Channel.Name
		}
		groups := make([]string, 0, len(semester.Groups))
		for _, group := range semester.Groups {
			groups = append(groups, group.Name)
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", semester, channel, strings.Join(groups, ", "))
	}

	return strings.TrimSpace(b.String())
}

func (g *Guild) sendDirect(ctx context.Context, userID string, content string) error {
	channel, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = g.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return err
}

func roleByName(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

func channelByName(channels []*discordgo.Channel, name string) *discordgo.Channel {
	for _, ch := range channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}
