package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maplebear/saf-portal/internal/domain"
)

// UserRepository defines read access to portal operators.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type usersFile struct {
	Users []domain.User `yaml:"users"`
}

type userRepository struct {
	byID       map[string]domain.User
	byUsername map[string]string
	order      []string
}

// NewUserRepository indexes a fixed set of users.
func NewUserRepository(users []domain.User) (UserRepository, error) {
	repo := &userRepository{
		byID:       make(map[string]domain.User, len(users)),
		byUsername: make(map[string]string, len(users)),
	}
	for _, u := range users {
		if u.ID == "" || u.Username == "" {
			return nil, fmt.Errorf("user entry missing id or username")
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s: unknown role %q", u.ID, u.Role)
		}
		if _, dup := repo.byID[u.ID]; dup {
			return nil, fmt.Errorf("user %s: %w", u.ID, ErrDuplicateID)
		}
		key := strings.ToLower(u.Username)
		if _, dup := repo.byUsername[key]; dup {
			return nil, fmt.Errorf("username %s is used twice", u.Username)
		}
		repo.byID[u.ID] = u
		repo.byUsername[key] = u.ID
		repo.order = append(repo.order, u.ID)
	}
	return repo, nil
}

// ParseUsers decodes the YAML users document.
func ParseUsers(data []byte) ([]domain.User, error) {
	var doc usersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return doc.Users, nil
}

// LoadUsersFile reads and indexes the YAML users file at path.
func LoadUsersFile(path string) (UserRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	users, err := ParseUsers(data)
	if err != nil {
		return nil, err
	}
	return NewUserRepository(users)
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	id, ok := r.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *userRepository) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}
