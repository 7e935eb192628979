package protocol

import (
	"errors"
	"strconv"
	"strings"

	"chatd/internal/domain"
)

// ErrMalformed is returned for a known command with missing or non-numeric
// fields. Such lines are dropped without a reply.
var ErrMalformed = errors.New("malformed command")

const (
	cmdPrefix  = "CMD:"
	sendPrefix = "SEND:"
)

// Parse decodes one line (without its terminator).
func Parse(line string) (Command, error) {
	switch {
	case strings.HasPrefix(line, cmdPrefix):
		return parseCmd(line)
	case strings.HasPrefix(line, sendPrefix):
		return parseSend(line[len(sendPrefix):])
	case strings.HasPrefix(line, "/"):
		return parseSlash(line)
	default:
		return Raw{Line: line}, nil
	}
}

func parseCmd(line string) (Command, error) {
	body := line[len(cmdPrefix):]
	name, rest, _ := strings.Cut(body, "|")
	var fields []string
	if rest != "" {
		fields = strings.Split(rest, "|")
	}

	switch name {
	case "LOGIN":
		parts := strings.SplitN(rest, "|", 2)
		if len(parts) < 2 || parts[0] == "" {
			return nil, ErrMalformed
		}
		return Login{Username: parts[0], Password: parts[1]}, nil

	case "ENTER_FRIEND":
		nums, err := ids(fields, 1)
		if err != nil {
			return nil, err
		}
		return EnterFriend{FriendID: nums[0]}, nil

	case "LEAVE_FRIEND":
		return LeaveFriend{}, nil

	case "ENTER_GROUP":
		nums, err := ids(fields, 1)
		if err != nil {
			return nil, err
		}
		return EnterGroup{GroupID: nums[0]}, nil

	case "LEAVE_GROUP":
		return LeaveGroup{}, nil

	case "ENTER_REQUEST_LIST":
		return EnterRequestList{}, nil

	case "LEAVE_REQUEST_LIST":
		return LeaveRequestList{}, nil

	case "DECISION_REQUEST":
		if len(fields) < 4 {
			return nil, ErrMalformed
		}
		typ := domain.RequestType(fields[0])
		if !typ.Valid() {
			return nil, ErrMalformed
		}
		nums, err := ids(fields[1:], 3)
		if err != nil {
			return nil, err
		}
		if nums[2] != 0 && nums[2] != 1 {
			return nil, ErrMalformed
		}
		return DecideRequest{Type: typ, FromID: nums[0], TargetID: nums[1], Accept: nums[2] == 1}, nil

	case "KICK_MEMBER":
		nums, err := ids(fields, 2)
		if err != nil {
			return nil, err
		}
		return KickMember{GroupID: nums[0], TargetID: nums[1]}, nil

	case "SET_ROLE":
		nums, err := ids(fields, 3)
		if err != nil {
			return nil, err
		}
		return SetRole{GroupID: nums[0], TargetID: nums[1], Role: domain.Role(nums[2])}, nil

	case "REQ_FRIEND_LIST":
		return RequestFriendList{}, nil

	case "REQ_GROUP_LIST":
		return RequestGroupList{}, nil

	case "REQ_GROUP_MEMBERS":
		nums, err := ids(fields, 1)
		if err != nil {
			return nil, err
		}
		return RequestGroupMembers{GroupID: nums[0]}, nil
	}

	return Raw{Line: line}, nil
}

func parseSend(body string) (Command, error) {
	parts := strings.SplitN(body, "|", 3)
	if len(parts) < 3 {
		return nil, ErrMalformed
	}
	var kind ChatKind
	switch parts[0] {
	case "0":
		kind = KindDirect
	case "1":
		kind = KindGroup
	default:
		return nil, ErrMalformed
	}
	target, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	return Send{Kind: kind, TargetID: target, Content: parts[2]}, nil
}

func parseSlash(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return UnknownSlash{Name: line}, nil
	}
	name := fields[0]
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch name {
	case "/delete":
		return DeleteMessage{UUID: arg(1)}, nil
	case "/friend_add":
		return FriendAdd{Target: arg(1)}, nil
	case "/g_join":
		return GroupJoin{Target: arg(1)}, nil
	case "/g_create":
		return GroupCreate{Name: arg(1)}, nil
	case "/g_kick":
		gid, err := strconv.ParseInt(arg(1), 10, 64)
		if err != nil || gid <= 0 || arg(2) == "" {
			return nil, ErrMalformed
		}
		return GroupKick{GroupID: gid, Username: arg(2)}, nil
	case "/op":
		return Op{Username: arg(1)}, nil
	case "/deop":
		return Deop{Username: arg(1)}, nil
	case "/kick":
		return Kick{Username: arg(1)}, nil
	case "/all":
		_, text, _ := strings.Cut(line, " ")
		return Broadcast{Text: strings.TrimSpace(text)}, nil
	case "/who":
		return Who{}, nil
	case "/help":
		return Help{}, nil
	}
	return UnknownSlash{Name: name}, nil
}

func ids(fields []string, n int) ([]int64, error) {
	if len(fields) < n {
		return nil, ErrMalformed
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseInt(strings.TrimSpace(fields[i]), 10, 64)
		if err != nil {
			return nil, ErrMalformed
		}
		out[i] = v
	}
	return out, nil
}
