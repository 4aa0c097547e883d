// Package identity is the member directory: who exists, their role and team.
// Members live as YAML files under <home>/members/ and are resolved into
// guard.Actor values for permission checks.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// ErrUnknownMember is returned when an ID is not in the directory.
var ErrUnknownMember = errors.New("unknown member")

// MembersDir returns the path to the members directory: <home>/members/.
func MembersDir(home string) string {
	return filepath.Join(home, "members")
}

// MemberPath returns the path to a member file: <home>/members/<id>.yaml.
// The ID is sanitized for the filesystem (spaces -> _, lowercase).
func MemberPath(home, id string) string {
	safe := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), " ", "_"))
	safe = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(safe)
	if safe == "" {
		safe = "default"
	}
	return filepath.Join(MembersDir(home), safe+".yaml")
}

// Validate checks the fields every member needs.
func Validate(m models.Member) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("member id is required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Role == models.RoleTeamLeader && m.TeamID == "" {
		return errors.New("team_leader requires a team_id")
	}
	return nil
}

// LoadMember loads <home>/members/<id>.yaml. A missing file returns nil, nil.
func LoadMember(home, id string) (*models.Member, error) {
	data, err := os.ReadFile(MemberPath(home, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m models.Member
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMember validates m and writes it to <home>/members/<id>.yaml.
func SaveMember(home string, m models.Member) error {
	if err := Validate(m); err != nil {
		return err
	}
	if err := os.MkdirAll(MembersDir(home), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(MemberPath(home, m.ID), data, 0o644)
}

// Directory is an in-memory view of the members directory.
type Directory struct {
	home    string
	mu      sync.RWMutex
	members map[string]models.Member
}

// Load reads every member file under home. Invalid files fail the load.
func Load(home string) (*Directory, error) {
	d := &Directory{home: home}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDirectory builds a directory from a fixed member list without touching
// disk. Add still persists when home is non-empty.
func NewDirectory(home string, members ...models.Member) *Directory {
	d := &Directory{home: home, members: make(map[string]models.Member, len(members))}
	for _, m := range members {
		d.members[m.ID] = m
	}
	return d
}

// Reload re-reads the members directory.
func (d *Directory) Reload() error {
	entries, err := os.ReadDir(MembersDir(d.home))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	members := make(map[string]models.Member, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(MembersDir(d.home), e.Name()))
		if err != nil {
			return err
		}
		var m models.Member
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := Validate(m); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		members[m.ID] = m
	}
	d.mu.Lock()
	d.members = members
	d.mu.Unlock()
	return nil
}

// Add saves m and makes it visible to lookups.
func (d *Directory) Add(m models.Member) error {
	if d.home != "" {
		if err := SaveMember(d.home, m); err != nil {
			return err
		}
	} else if err := Validate(m); err != nil {
		return err
	}
	d.mu.Lock()
	d.members[m.ID] = m
	d.mu.Unlock()
	return nil
}

// Lookup returns the member with id. A miss falls back to the member file so
// members added while the server runs are picked up without a reload.
func (d *Directory) Lookup(id string) (models.Member, bool) {
	d.mu.RLock()
	m, ok := d.members[id]
	d.mu.RUnlock()
	if ok || d.home == "" || strings.TrimSpace(id) == "" {
		return m, ok
	}
	loaded, err := LoadMember(d.home, id)
	if err != nil || loaded == nil || loaded.ID != id || Validate(*loaded) != nil {
		return models.Member{}, false
	}
	d.mu.Lock()
	d.members[id] = *loaded
	d.mu.Unlock()
	return *loaded, true
}

// List returns all members ordered by ID.
func (d *Directory) List() []models.Member {
	d.mu.RLock()
	out := make([]models.Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TeamMembers returns the members of team, ordered by ID.
func (d *Directory) TeamMembers(team string) []models.Member {
	var out []models.Member
	for _, m := range d.List() {
		if m.TeamID == team {
			out = append(out, m)
		}
	}
	return out
}

// Actor resolves id to the actor used by permission checks.
func (d *Directory) Actor(id string) (guard.Actor, error) {
	m, ok := d.Lookup(id)
	if !ok {
		return guard.Actor{}, fmt.Errorf("%w: %s", ErrUnknownMember, id)
	}
	return ActorOf(m), nil
}

func ActorOf(m models.Member) guard.Actor {
	return guard.Actor{ID: m.ID, Role: m.Role, TeamID: m.TeamID}
}
