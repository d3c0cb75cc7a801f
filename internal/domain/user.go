package domain

// Role enumerates portal operator roles.
type Role string

const (
	RoleAgent       Role = "AGENT"
	RoleCoordinator Role = "COORDINATOR"
	RoleAdmin       Role = "ADMIN"
)

func (r Role) rank() int {
	switch r {
	case RoleAgent:
		return 1
	case RoleCoordinator:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Includes reports whether r grants the permissions of other.
// Admin includes every role and Coordinator includes Agent.
func (r Role) Includes(other Role) bool {
	return r.Valid() && other.Valid() && r.rank() >= other.rank()
}

// User is a portal operator loaded from the users file.
type User struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         Role   `yaml:"role"`
	AgentID      string `yaml:"agent_id"`
}

// Actor returns the identity recorded on mutations performed by the user.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role, AgentID: u.AgentID}
}

// Actor identifies who performed a mutation.
type Actor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	AgentID string `json:"agent_id,omitempty"`
}

// IsCoordinator reports whether the actor may approve, reject and evaluate.
func (a Actor) IsCoordinator() bool {
	return a.Role.Includes(RoleCoordinator)
}

// SystemActor is used for mutations triggered by background workers.
var SystemActor = Actor{ID: "system", Name: "Sistema", Role: RoleAdmin}
