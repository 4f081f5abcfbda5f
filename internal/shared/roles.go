package shared

// Roles recognised by the billing system. Role grants are strictly
// hierarchical: admin > finance > clerk.
const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleClerk   = "clerk"
)

// Actor identifies the authenticated user performing an operation. Services
// receive it explicitly instead of reading authentication state themselves.
type Actor struct {
	ID   int64
	Role string
}

var roleRank = map[string]int{
	RoleClerk:   1,
	RoleFinance: 2,
	RoleAdmin:   3,
}

// HasRole reports whether the actor's role is at least the required role.
func (a Actor) HasRole(required string) bool {
	return roleRank[a.Role] >= roleRank[required] && roleRank[required] > 0
}
