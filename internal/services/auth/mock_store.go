package auth

// MockStore is an in-memory auth store for testing.
type MockStore struct {
	passwords map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{passwords: make(map[string]string)}
}

func (m *MockStore) SetPassword(remote string, password string) error {
	m.passwords[NormalizeRemote(remote)] = password
	return nil
}

func (m *MockStore) GetPassword(remote string) (string, error) {
	password, ok := m.passwords[NormalizeRemote(remote)]
	if !ok {
		return "", ErrPasswordNotFound
	}
	return password, nil
}

func (m *MockStore) DeletePassword(remote string) error {
	key := NormalizeRemote(remote)
	if _, ok := m.passwords[key]; !ok {
		return ErrPasswordNotFound
	}
	delete(m.passwords, key)
	return nil
}
