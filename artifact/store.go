package artifact

// Store persists transcripts grouped by world and chat.
type Store interface {
	Save(t Transcript) error
	Get(worldID, chatID, id string) (Transcript, error)
	List(worldID, chatID string) ([]string, error)
	Delete(worldID, chatID, id string) error
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*DirStore)(nil)
)
