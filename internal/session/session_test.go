package session_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatd/internal/domain"
	"chatd/internal/session"
)

func TestEndToEndDirectMessageAndDelete(t *testing.T) {
	h := newHarness(t, session.Options{})
	ctx := context.Background()

	alice := h.login("alice")
	assert.True(t, alice.Has("CMD:LOGIN_SUCCESS|1001"))
	assert.True(t, h.groups.IsMember(h.lobbyID, "alice"), "new accounts join the default group")

	bob := h.login("bob")
	assert.True(t, bob.Has("CMD:LOGIN_SUCCESS|1002"))
	h.waitLine(alice, "CMD:STATUS_UPDATE|1002|1")

	bob.Write("/friend_add 1001\n")
	h.waitLine(bob, "[System] Friend request sent to 1001")
	h.waitLine(alice, "CMD:FRIEND_ADD|1002,bob")
	h.waitLine(alice, "[System] bob added you as friend.")

	alice.Write("CMD:ENTER_FRIEND|1002\n")
	h.sync(alice)

	bob.Write("SEND:0|1001|hello<br>world\n")
	got := h.waitPrefix(alice, "MSG:1002|bob|hello<br>world|0|")
	fields := strings.Split(got, "|")
	require.Len(t, fields, 7)
	assert.Equal(t, "1002", fields[5])
	id := fields[6]
	require.NotEmpty(t, id)

	h.waitLine(bob, "MSG:1001|bob|hello<br>world|0|"+fields[4]+"|1002|"+id)

	data, err := os.ReadFile(filepath.Join(h.dir, "FriendRecord", "1001_1002.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "|"+id+"|"), lines[0])

	alice.Reset()
	alice.Write("/delete " + id + "\n")
	h.waitLine(alice, "CMD:CLEAR_CHAT")

	data, err = os.ReadFile(filepath.Join(h.dir, "FriendRecord", "1001_1002.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(data)), "|"+id+"|d1001,"), string(data))

	key := domain.DirectConversation(1001, 1002)
	mine, err := h.archive.Query(ctx, key, 1001)
	require.NoError(t, err)
	assert.Empty(t, mine)
	theirs, err := h.archive.Query(ctx, key, 1002)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, id, theirs[0].UUID)

	assert.Empty(t, withPrefix(alice.Sent(), "MSG:"), "replay after delete is empty for the deleter")
}

func TestDirectMessageReachesUnfocusedTarget(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	bob.Write("SEND:0|1001|ping\n")
	h.waitPrefix(alice, "MSG:1002|bob|ping|0|")
	h.waitPrefix(bob, "MSG:1001|bob|ping|0|")

	bob.Write("SEND:0|4242|nobody\n")
	h.waitLine(bob, "[Error] User not found.")
}

func TestGroupNarrowcast(t *testing.T) {
	h := newHarness(t, session.Options{})
	lobby := itoa(h.lobbyID)

	alice := h.login("alice")
	bob := h.login("bob")
	carol := h.login("carol")

	alice.Write("CMD:ENTER_GROUP|" + lobby + "\n")
	bob.Write("CMD:ENTER_GROUP|" + lobby + "\n")
	h.waitPrefix(alice, "CMD:GROUP_MEMBERS|")
	h.waitPrefix(bob, "CMD:GROUP_MEMBERS|")

	alice.Write("SEND:1|" + lobby + "|hi all\n")
	h.waitPrefix(alice, "MSG:"+lobby+"|alice|hi all|1|")
	h.waitPrefix(bob, "MSG:"+lobby+"|alice|hi all|1|")

	h.sync(carol)
	assert.Empty(t, withPrefix(carol.Sent(), "MSG:"), "members not viewing the group get nothing")

	bob.Write("CMD:LEAVE_GROUP\n")
	h.sync(bob)
	bob.Reset()
	alice.Write("SEND:1|" + lobby + "|second\n")
	h.waitPrefix(alice, "MSG:"+lobby+"|alice|second|1|")
	h.sync(bob)
	assert.Empty(t, withPrefix(bob.Sent(), "MSG:"))
}

func TestGroupSendRequiresMembership(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	alice.Write("/g_create devs\n")
	h.waitLine(alice, "[Group] Created [devs] successfully! GroupID: 2")
	h.waitPrefix(alice, "CMD:GROUP_LIST|")
	alice.Write("CMD:ENTER_GROUP|2\n")
	h.waitPrefix(alice, "CMD:GROUP_MEMBERS|")

	bob.Write("SEND:1|2|sneaky\n")
	h.waitLine(bob, "[System] Failed to send: You are not a member of this group.")

	h.sync(alice)
	assert.Empty(t, withPrefix(alice.Sent(), "MSG:"))
	_, err := os.Stat(filepath.Join(h.dir, "GroupRecord", "devs.txt"))
	assert.True(t, os.IsNotExist(err), "nothing archived")

	bob.Write("CMD:ENTER_GROUP|2\n")
	h.waitLine(bob, "[Error] You are not a member of this group.")
}

func TestHistoryReplayOnEnter(t *testing.T) {
	h := newHarness(t, session.Options{})
	lobby := itoa(h.lobbyID)
	alice := h.login("alice")
	bob := h.login("bob")

	alice.Write("CMD:ENTER_GROUP|" + lobby + "\n")
	h.waitPrefix(alice, "CMD:GROUP_MEMBERS|")
	alice.Write("SEND:1|" + lobby + "|one\n")
	alice.Write("SEND:1|" + lobby + "|two\n")
	h.waitPrefix(alice, "MSG:"+lobby+"|alice|two|1|")

	bob.Write("CMD:ENTER_GROUP|" + lobby + "\n")
	h.waitPrefix(bob, "CMD:GROUP_MEMBERS|")
	msgs := withPrefix(bob.Sent(), "MSG:")
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0], "MSG:"+lobby+"|alice|one|1|"))
	assert.True(t, strings.HasPrefix(msgs[1], "MSG:"+lobby+"|alice|two|1|"))
}

func TestLogin(t *testing.T) {
	t.Run("WrongPassword", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		h.login("alice").Close()

		c := h.dial()
		c.Write("CMD:LOGIN|alice|nope\n")
		h.waitLine(c, "CMD:LOGIN_FAIL|Wrong Password")
		assert.Eventually(t, c.Closed, waitFor, tick)
	})

	t.Run("ReservedName", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		c := h.dial()
		c.Write("CMD:LOGIN|System|pw\n")
		h.waitLine(c, "CMD:LOGIN_FAIL|Invalid Username")
		assert.Eventually(t, c.Closed, waitFor, tick)
	})

	t.Run("MalformedClosesSilently", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		c := h.dial()
		c.Write("CMD:LOGIN|alice\n")
		assert.Eventually(t, c.Closed, waitFor, tick)
		assert.Empty(t, c.Sent())
	})

	t.Run("BareNameRejectedByDefault", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		c := h.dial()
		c.Write("alice\n")
		assert.Eventually(t, c.Closed, waitFor, tick)
		assert.Empty(t, c.Sent())
	})

	t.Run("LegacyBareName", func(t *testing.T) {
		h := newHarness(t, session.Options{LegacyLogin: true, LegacyPassword: "123456"})
		c := h.dial()
		c.Write("alice\r\n")
		h.waitLine(c, "CMD:LOGIN_SUCCESS|1001")

		c2 := h.dial()
		c2.Write("CMD:LOGIN|alice|123456\n")
		h.waitLine(c2, "CMD:LOGIN_SUCCESS|1001")
	})

	t.Run("SplitAcrossReads", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		c := h.dial()
		c.Write("CMD:LOG")
		c.Write("IN|alice|p")
		c.Write("w\r\n")
		h.waitLine(c, "CMD:LOGIN_SUCCESS|1001")
	})

	t.Run("AdminWelcome", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		h.perms.Grant("root")
		c := h.login("root")
		h.waitLine(c, "CMD:GRANT_ADMIN")
		h.waitLine(c, "[System] Welcome Administrator root")
	})
}

func TestDuplicateLoginReplacesConnection(t *testing.T) {
	h := newHarness(t, session.Options{})
	bob := h.login("bob")
	first := h.login("alice")
	second := h.login("alice")

	assert.Eventually(t, first.Closed, waitFor, tick)
	h.sync(second)
	h.sync(bob)

	var names []string
	for _, u := range h.mgr.Online() {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
	assert.False(t, bob.Has("CMD:STATUS_UPDATE|1002|0"))
	assert.False(t, bob.Has("CMD:STATUS_UPDATE|1001|0"), "the replaced connection does not announce offline")
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	bob.Close()
	h.waitLine(alice, "CMD:STATUS_UPDATE|1002|0")
	h.waitLine(alice, "CMD:USER_LIST|1001,alice;")
}

func TestRawLineIsBroadcast(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	bob.Write("hello everyone\n")
	h.waitLine(alice, "[bob]: hello everyone")
	h.waitLine(bob, "[bob]: hello everyone")
}

func TestFriendRequestAccept(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	alice.Write("CMD:ENTER_REQUEST_LIST\n")
	h.waitLine(alice, "CMD:REQUEST_LIST|")

	bob.Write("/friend_add alice\n")
	h.waitLine(alice, "CMD:REQUEST_LIST|FRIEND,1002,bob,1001;")

	bob.Write("CMD:DECISION_REQUEST|FRIEND|1002|1001|1\n")
	h.sync(bob)
	assert.False(t, bob.HasPrefix("CMD:FRIEND_LIST|1001"), "only the addressee decides")

	alice.Reset()
	alice.Write("CMD:DECISION_REQUEST|FRIEND|1002|1001|1\n")
	h.waitLine(alice, "CMD:FRIEND_LIST|1002,bob,1;")
	h.waitLine(alice, "CMD:STATUS_UPDATE|1002|1")
	h.waitLine(alice, "CMD:REQUEST_LIST|")
	h.waitLine(bob, "CMD:FRIEND_LIST|1001,alice,1;")
	h.waitLine(bob, "CMD:STATUS_UPDATE|1001|1")

	recs, err := h.archive.Query(context.Background(), domain.DirectConversation(1001, 1002), 1001)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.SystemName, recs[0].SenderName)
	assert.Equal(t, "Friend Added", recs[0].Content)

	bob.Write("/friend_add alice\n")
	h.waitLine(bob, "[Error] You are already friends with alice.")
}

func TestDecisionWithoutPendingRequestIsIgnored(t *testing.T) {
	t.Run("Friend", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		alice := h.login("alice")
		bob := h.login("bob")

		bob.Write("CMD:DECISION_REQUEST|FRIEND|1001|1002|1\n")
		h.waitLine(bob, "CMD:REQUEST_LIST|")
		h.sync(bob)
		h.sync(alice)

		_, err := os.Stat(filepath.Join(h.dir, "FriendRecord", "1001_1002.txt"))
		assert.True(t, os.IsNotExist(err), "no friendship archive")
		assert.False(t, bob.HasPrefix("CMD:FRIEND_LIST|"))
		assert.False(t, alice.HasPrefix("CMD:FRIEND_LIST|"))
	})

	t.Run("Group", func(t *testing.T) {
		h := newHarness(t, session.Options{})
		alice := h.login("alice")
		bob := h.login("bob")

		alice.Write("/g_create club\n")
		h.waitLine(alice, "[Group] Created [club] successfully! GroupID: 2")

		alice.Write("CMD:DECISION_REQUEST|GROUP|1002|2|1\n")
		h.waitLine(alice, "CMD:REQUEST_LIST|")
		h.sync(alice)
		h.sync(bob)

		assert.False(t, h.groups.IsMember(2, "bob"))
		assert.False(t, bob.Has("CMD:GROUP_LIST|1,Lobby;2,club;"))
	})
}

func TestGroupJoinRequestAndKick(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	alice.Write("/g_create devs\n")
	h.waitLine(alice, "[Group] Created [devs] successfully! GroupID: 2")
	alice.Write("CMD:ENTER_REQUEST_LIST\n")
	h.waitLine(alice, "CMD:REQUEST_LIST|")

	bob.Write("/g_join devs\n")
	h.waitLine(bob, "[System] Join request sent to Group devs(ID:2)")
	h.waitLine(alice, "CMD:REQUEST_LIST|GROUP,1002,bob,2;")

	alice.Write("CMD:DECISION_REQUEST|GROUP|1002|2|1\n")
	h.waitLine(bob, "CMD:GROUP_LIST|1,Lobby;2,devs;")
	assert.True(t, h.groups.IsMember(2, "bob"))

	bob.Write("/g_join 2\n")
	h.waitLine(bob, "[Error] You are already a member of this group.")

	bob.Write("CMD:ENTER_GROUP|2\n")
	h.waitPrefix(bob, "CMD:GROUP_MEMBERS|")
	alice.Write("CMD:ENTER_GROUP|2\n")
	h.waitPrefix(alice, "CMD:GROUP_MEMBERS|")

	bob.Write("/g_kick 2 alice\n")
	h.waitLine(bob, "[Permission Denied] Admin only.")

	alice.Reset()
	alice.Write("/g_kick 2 bob\n")
	h.waitLine(alice, "[Group] Kicked bob.")
	h.waitLine(alice, "CMD:GROUP_MEMBERS|1001,alice,1,3;")
	h.waitLine(bob, "CMD:KICKED_FROM_GROUP|2")
	h.waitLine(bob, "[System] You have been kicked from Group 2")
	assert.False(t, h.groups.IsMember(2, "bob"))

	bob.Reset()
	alice.Write("SEND:1|2|bye\n")
	h.waitPrefix(alice, "MSG:2|alice|bye|1|")
	h.sync(bob)
	assert.Empty(t, withPrefix(bob.Sent(), "MSG:"), "kicked member lost the group focus")
}

func TestSetRoleAndKickMember(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")
	carol := h.login("carol")

	alice.Write("/g_create devs\n")
	h.waitLine(alice, "[Group] Created [devs] successfully! GroupID: 2")
	require.NoError(t, h.groups.JoinGroup(2, "bob"))
	require.NoError(t, h.groups.JoinGroup(2, "carol"))

	alice.Write("CMD:ENTER_GROUP|2\n")
	h.waitPrefix(alice, "CMD:GROUP_MEMBERS|")

	alice.Write("CMD:SET_ROLE|2|1002|2\n")
	h.waitLine(alice, "CMD:GROUP_MEMBERS|1001,alice,1,3;1002,bob,1,2;1003,carol,1,1;")
	assert.Equal(t, domain.RoleAdmin, h.groups.Role(2, "bob"))

	// equal rank cannot act
	require.NoError(t, h.groups.SetRole(2, "carol", domain.RoleAdmin))
	bob.Write("CMD:KICK_MEMBER|2|1003\n")
	h.sync(bob)
	assert.True(t, h.groups.IsMember(2, "carol"))

	alice.Write("CMD:KICK_MEMBER|2|1003\n")
	h.waitLine(carol, "CMD:KICKED_FROM_GROUP|2")
	assert.False(t, h.groups.IsMember(2, "carol"))
	assert.True(t, h.groups.IsMember(h.lobbyID, "carol"), "kicking from one group leaves the others alone")
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	bob := h.login("bob")

	alice.Write("/kick bob\n")
	h.waitLine(alice, "[Permission Denied] Admin only.")
	alice.Write("/op alice\n")
	h.waitLine(alice, "[Permission Denied] Only Admin can use /op.")
	alice.Write("/all hi\n")
	h.waitLine(alice, "[Permission Denied] Admin only.")

	out := h.mgr.ExecuteConsole(context.Background(), "op alice")
	assert.Equal(t, []string{"[System] Success: User [alice] is now an Admin."}, out)
	h.waitLine(alice, "CMD:GRANT_ADMIN")
	h.waitLine(alice, "[System] Server console granted you Admin permissions.")

	alice.Write("/who\n")
	h.waitLine(alice, " * alice [ADMIN]")
	h.waitLine(alice, " * bob [USER]")

	alice.Write("/all maintenance at noon\n")
	h.waitLine(bob, "[Server Broadcast]: maintenance at noon")

	alice.Write("/op bob\n")
	h.waitLine(alice, "[System] You granted Admin to [bob].")
	h.waitLine(bob, "CMD:GRANT_ADMIN")
	h.waitLine(bob, "[System] You have been promoted to Server Admin!")

	alice.Write("/deop bob\n")
	h.waitLine(bob, "CMD:REVOKE_ADMIN")

	alice.Write("/kick bob\n")
	h.waitLine(bob, "You have been kicked by Admin.")
	h.waitLine(alice, "[System] User bob kicked.")
	assert.Eventually(t, bob.Closed, waitFor, tick)
	h.waitLine(alice, "CMD:STATUS_UPDATE|1002|0")

	alice.Write("/kick bob\n")
	h.waitLine(alice, "[System] User not found.")
}

func TestSlashUsageAndUnknown(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")

	tests := []struct {
		line string
		want string
	}{
		{"/friend_add", "Usage: /friend_add <ID or Name>"},
		{"/friend_add alice", "[Error] You cannot add yourself."},
		{"/friend_add ghost", "[Error] User [ghost] not found in server database."},
		{"/g_join", "Usage: /g_join <GroupID or GroupName>"},
		{"/g_join nowhere", "[Error] Group not found: nowhere"},
		{"/g_create", "Usage: /g_create <GroupName>"},
		{"/g_create Lobby", "[Error] Group name 'Lobby' already exists."},
		{"/g_create None", "[Error] Invalid group name."},
		{"/delete", "Usage: /delete <UUID>"},
		{"/delete abc", "[Error] Open a conversation first."},
		{"/frobnicate", "[Error] Unknown command. Type /help for list."},
		{"/help", "--- General Commands ---"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			alice.Write(tt.line + "\n")
			h.waitLine(alice, tt.want)
		})
	}
}

func TestDeleteUnknownMessage(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	h.login("bob")

	alice.Write("SEND:0|1002|x\n")
	h.waitPrefix(alice, "MSG:1002|alice|x|0|")
	alice.Write("CMD:ENTER_FRIEND|1002\n")
	alice.Write("/delete not-a-uuid\n")
	h.waitLine(alice, "[Error] Message not found.")
}

func TestMalformedLinesAreDropped(t *testing.T) {
	h := newHarness(t, session.Options{})
	alice := h.login("alice")
	alice.Reset()

	alice.Write("CMD:ENTER_GROUP|abc\nSEND:7|1|x\nCMD:KICK_MEMBER|1\n")
	h.sync(alice)
	assert.Equal(t, []string{"--- Online Users ---", " * alice [USER]"}, alice.Sent())
}
