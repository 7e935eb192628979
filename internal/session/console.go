package session

import (
	"context"
	"errors"
	"strings"

	"chatd/internal/domain"
	"chatd/internal/protocol"
)

const consoleHelp = `--- Server Console Help ---
 /op <User>      - Set Admin
 /deop <User>    - Revoke Admin
 /kick <User>    - Kick User
 /who            - List Users
 /all <Msg>      - Broadcast
 /create_group <Name> [Owner]`

// ExecuteConsole runs one operator command and returns its output lines.
// The leading slash is optional.
func (m *Manager) ExecuteConsole(ctx context.Context, line string) []string {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	fields := strings.Fields(raw)
	command := fields[0]
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	var out []string
	switch command {
	case "/op":
		out = m.consoleOp(ctx, arg(1))
	case "/deop":
		out = m.consoleDeop(ctx, arg(1))
	case "/kick":
		out = m.consoleKick(ctx, arg(1))
	case "/who":
		out = strings.Split(strings.TrimSuffix(m.whoLines(m.whoHeader()), "\n"), "\n")
	case "/all":
		_, text, _ := strings.Cut(raw, " ")
		text = strings.TrimSpace(text)
		if text == "" {
			return []string{"[Error] Usage: all <message>"}
		}
		m.presence.BroadcastToAll(protocol.Notice("[Server Console]: " + text))
		m.svc.Audit.Record(ctx, domain.ConsoleName, "broadcast", text)
		out = []string{"[Broadcast] " + text}
	case "/create_group":
		out = m.consoleCreateGroup(ctx, arg(1), arg(2))
	case "/help":
		out = strings.Split(consoleHelp, "\n")
	default:
		out = []string{"[Error] Unknown command: " + command}
	}

	for _, l := range out {
		m.log.Info(l, "source", "console")
	}
	return out
}

func (m *Manager) whoHeader() string {
	return "--- Online Users (" + itoa(int64(m.presence.Count())) + ") ---"
}

func (m *Manager) consoleOp(ctx context.Context, target string) []string {
	if target == "" {
		return []string{"[Error] Usage: op <username>"}
	}
	m.perms.Grant(target)
	m.svc.Audit.Record(ctx, domain.ConsoleName, "admin.grant", target)
	m.presence.SendTo(target, protocol.GrantAdmin()+protocol.Notice("[System] Server console granted you Admin permissions."))
	return []string{"[System] Success: User [" + target + "] is now an Admin."}
}

func (m *Manager) consoleDeop(ctx context.Context, target string) []string {
	if target == "" {
		return []string{"[Error] Usage: deop <username>"}
	}
	m.perms.Revoke(target)
	m.svc.Audit.Record(ctx, domain.ConsoleName, "admin.revoke", target)
	m.presence.SendTo(target, protocol.RevokeAdmin()+protocol.Notice("[System] Your Admin permissions have been revoked by Server Console."))
	return []string{"[System] Success: User [" + target + "] is no longer an Admin."}
}

func (m *Manager) consoleKick(ctx context.Context, target string) []string {
	if target == "" {
		return []string{"[Error] Usage: kick <username>"}
	}
	if !m.presence.Kick(target, protocol.Notice("[System] You have been kicked by Server Console.")) {
		return []string{"[Error] User [" + target + "] not found."}
	}
	m.svc.Audit.Record(ctx, domain.ConsoleName, "kick", target)
	return []string{"[System] User [" + target + "] has been kicked."}
}

func (m *Manager) consoleCreateGroup(ctx context.Context, name, owner string) []string {
	if name == "" {
		return []string{"[Error] Usage: /create_group <Name> [Owner]"}
	}
	if owner == "" {
		owner = domain.ConsoleName
	}
	gid, err := m.svc.Groups.Create(ctx, owner, name)
	switch {
	case errors.Is(err, domain.ErrConflict):
		return []string{"[Error] Group name already exists."}
	case errors.Is(err, domain.ErrInvalidInput):
		return []string{"[Error] Invalid group name."}
	case err != nil:
		m.log.Error("create group", "name", name, "err", err)
		return []string{"[Error] " + err.Error()}
	}
	if conn, ok := m.presence.Lookup(owner); ok {
		m.pushGroups(conn, owner)
	}
	return []string{"[System] Group [" + name + "] created. ID: " + itoa(gid)}
}
