package app

// RegisterCompanyRequest is the input for creating a farm with its founding
// admin user.
type RegisterCompanyRequest struct {
	FarmName string
	Username string
	Email    string
	Password string
}
