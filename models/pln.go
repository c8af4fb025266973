package models

// Pln is a Private LOCKSS Network: a set of boxes that hold copies
// of the same content. All boxes in a Pln accept the same web service
// credentials.
type Pln struct {
	Id       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}
