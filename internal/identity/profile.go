package identity

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/session"
)

// Profile is the logged-in user as written by the login flow. The
// client never authenticates itself; it only reads what login left
// behind.
type Profile struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Email     string `toml:"email"`
	AvatarURL string `toml:"avatar_url"`
}

// ErrNoProfile means the session has never been logged in.
var ErrNoProfile = fmt.Errorf("no profile for this session, log in first")

// LoadProfile reads the session's profile file.
func LoadProfile(sessionName string) (Profile, error) {
	path := session.ProfilePath(sessionName)
	var p Profile
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p, ErrNoProfile
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return p, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("profile at %s has no user id", path)
	}
	return p, nil
}

// SaveProfile writes the profile file, creating the session directory
// if needed.
func SaveProfile(sessionName string, p Profile) error {
	if err := session.EnsureDir(sessionName); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	f, err := os.OpenFile(session.ProfilePath(sessionName), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create profile file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return nil
}

// Identity converts the stored profile into the in-memory identity.
func (p Profile) Identity() chat.Identity {
	return chat.Identity{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
	}
}
