package types

import "strings"

// Permission is a bitmask of chat-platform permissions relevant to
// moderation commands.
type Permission uint64

const (
	PermSendMessages Permission = 1 << iota
	PermManageChannels
	PermManageGuild
	PermAdministrator
)

var permissionNames = map[Permission]string{
	PermSendMessages:   "SEND_MESSAGES",
	PermManageChannels: "MANAGE_CHANNELS",
	PermManageGuild:    "MANAGE_GUILD",
	PermAdministrator:  "ADMINISTRATOR",
}

// Has reports whether p satisfies every bit of required.
// Administrator implies all other permissions.
func (p Permission) Has(required Permission) bool {
	if p&PermAdministrator != 0 {
		return true
	}
	return p&required == required
}

// Missing returns the names of the bits in required that p lacks.
func (p Permission) Missing(required Permission) []string {
	if p.Has(required) {
		return nil
	}
	var missing []string
	for bit := PermSendMessages; bit <= PermAdministrator; bit <<= 1 {
		if required&bit != 0 && p&bit == 0 {
			missing = append(missing, permissionNames[bit])
		}
	}
	return missing
}

// String returns a readable form like "MANAGE_CHANNELS|SEND_MESSAGES".
func (p Permission) String() string {
	if p == 0 {
		return "NONE"
	}
	var names []string
	for bit := PermSendMessages; bit <= PermAdministrator; bit <<= 1 {
		if p&bit != 0 {
			names = append(names, permissionNames[bit])
		}
	}
	return strings.Join(names, "|")
}

// CommandRequirements captures the permission bits a command demands from
// the invoking actor and from the bot itself.
type CommandRequirements struct {
	Actor Permission
	Bot   Permission
}
