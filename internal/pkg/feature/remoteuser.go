package feature

import (
	"os/user"
)

// RemoteUser is the user account install.sh should treat as the "remote
// user" of the devcontainer, even though install.sh itself always runs as
// root.
type RemoteUser struct {
	Name string
	Home string
}

// candidateRemoteUsers is the probing order used when no --remote-user was
// given: the two most common devcontainer base-image users, then the
// codespaces convention, before falling back to a well-known uid.
var candidateRemoteUsers = []string{"vscode", "node", "codespace"}

// ResolveRemoteUser implements the probing chain: explicit name, then the
// devcontainer convention names in order, then uid 1000, then uid 0, then
// whatever uid nanolayer itself is running as.
func ResolveRemoteUser(explicit string) RemoteUser {
	if explicit != "" {
		if u, err := user.Lookup(explicit); err == nil {
			return RemoteUser{Name: u.Username, Home: u.HomeDir}
		}
		return RemoteUser{Name: explicit, Home: "/home/" + explicit}
	}

	for _, name := range candidateRemoteUsers {
		if u, err := user.Lookup(name); err == nil {
			return RemoteUser{Name: u.Username, Home: u.HomeDir}
		}
	}

	if u, err := user.LookupId("1000"); err == nil {
		return RemoteUser{Name: u.Username, Home: u.HomeDir}
	}

	if u, err := user.LookupId("0"); err == nil {
		return RemoteUser{Name: u.Username, Home: u.HomeDir}
	}

	if u, err := user.Current(); err == nil {
		return RemoteUser{Name: u.Username, Home: u.HomeDir}
	}
	return RemoteUser{Name: "root", Home: "/root"}
}
