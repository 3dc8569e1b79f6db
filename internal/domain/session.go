package domain

type Role string

const (
	RoleMerchant   Role = "merchant"
	RoleOperations Role = "operations_team"
)

func (r Role) CanCreateOrders() bool {
	return r == RoleMerchant
}

func (r Role) CanTransitionStatus() bool {
	return r == RoleOperations
}

func (r Role) CanListMerchants() bool {
	return r == RoleOperations
}

type Session struct {
	Subject     string
	Role        Role
	DisplayName string
	Token       string
}

func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.Subject != ""
}
