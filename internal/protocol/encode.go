package protocol

import (
	"strconv"
	"strings"

	"chatd/internal/domain"
)

// Message is one chat line as delivered to a client.
type Message struct {
	TargetID   int64
	SenderName string
	Content    string
	Kind       ChatKind
	Time       string
	SenderID   int64
	UUID       string
}

// MessageFromRecord builds the wire form of an archived record. target is
// the id the receiving client files the message under.
func MessageFromRecord(target int64, kind ChatKind, rec domain.ChatRecord) Message {
	return Message{
		TargetID:   target,
		SenderName: rec.SenderName,
		Content:    rec.Content,
		Kind:       kind,
		Time:       rec.Timestamp,
		SenderID:   rec.SenderID,
		UUID:       rec.UUID,
	}
}

func EncodeMessage(m Message) string {
	var b strings.Builder
	b.WriteString("MSG:")
	b.WriteString(itoa(m.TargetID))
	b.WriteByte('|')
	b.WriteString(m.SenderName)
	b.WriteByte('|')
	b.WriteString(m.Content)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(m.Kind)))
	b.WriteByte('|')
	b.WriteString(m.Time)
	b.WriteByte('|')
	b.WriteString(itoa(m.SenderID))
	b.WriteByte('|')
	b.WriteString(m.UUID)
	b.WriteByte('\n')
	return b.String()
}

func LoginSuccess(id int64) string   { return cmd("LOGIN_SUCCESS", itoa(id)) }
func LoginFail(reason string) string { return cmd("LOGIN_FAIL", reason) }
func GrantAdmin() string             { return cmd("GRANT_ADMIN") }
func RevokeAdmin() string            { return cmd("REVOKE_ADMIN") }
func ClearChat() string              { return cmd("CLEAR_CHAT") }

func StatusUpdate(id int64, online bool) string {
	return cmd("STATUS_UPDATE", itoa(id), flag(online))
}

func FriendAdded(id int64, name string) string {
	return cmd("FRIEND_ADD", itoa(id)+","+name)
}

func KickedFromGroup(gid int64) string {
	return cmd("KICKED_FROM_GROUP", itoa(gid))
}

func UserList(users []domain.OnlineUser) string {
	return list("USER_LIST", len(users), func(i int) []string {
		return []string{itoa(users[i].ID), users[i].Username}
	})
}

func FriendList(friends []domain.Friend) string {
	return list("FRIEND_LIST", len(friends), func(i int) []string {
		f := friends[i]
		return []string{itoa(f.ID), f.Username, flag(f.Online)}
	})
}

func GroupList(groups []domain.GroupRef) string {
	return list("GROUP_LIST", len(groups), func(i int) []string {
		return []string{itoa(groups[i].ID), groups[i].Name}
	})
}

func GroupMembers(members []domain.GroupMember) string {
	return list("GROUP_MEMBERS", len(members), func(i int) []string {
		m := members[i]
		return []string{itoa(m.ID), m.Username, flag(m.Online), strconv.Itoa(int(m.Role))}
	})
}

func RequestList(reqs []domain.Request) string {
	return list("REQUEST_LIST", len(reqs), func(i int) []string {
		r := reqs[i]
		return []string{string(r.Type), itoa(r.FromID), r.FromName, itoa(r.TargetID)}
	})
}

// Notice is a human-readable line such as "[System] ...".
func Notice(text string) string {
	return strings.TrimRight(text, "\n") + "\n"
}

func cmd(name string, fields ...string) string {
	var b strings.Builder
	b.WriteString(cmdPrefix)
	b.WriteString(name)
	for _, f := range fields {
		b.WriteByte('|')
		b.WriteString(f)
	}
	b.WriteByte('\n')
	return b.String()
}

// list encodes n records as "CMD:NAME|a,b;c,d;". An empty list is "CMD:NAME|".
func list(name string, n int, record func(int) []string) string {
	var b strings.Builder
	b.WriteString(cmdPrefix)
	b.WriteString(name)
	b.WriteByte('|')
	for i := 0; i < n; i++ {
		b.WriteString(strings.Join(record(i), ","))
		b.WriteByte(';')
	}
	b.WriteByte('\n')
	return b.String()
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
