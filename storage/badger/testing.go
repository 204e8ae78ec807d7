package badger

// OpenMemory creates an in-memory store for testing.
// Caller must Close it when done.
func OpenMemory() (*Store, error) {
	return open("", true)
}
