package app

// Session tracks a CLI invocation that may mutate the database. Sessions are
// created in memory with ID=0. Only DB-mutating commands persist them (giving
// them an auto-increment ID from the database).
type Session struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewSession creates a new in-memory session record.
func NewSession(operation, parameters string) *Session {
	return &Session{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this session has been saved to the database.
func (s *Session) Persisted() bool {
	return s.ID != 0
}
