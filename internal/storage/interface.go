package storage

// Interface abstracts the durable key/value layer used for the active-brand
// preference and sweep archives.
type Interface interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(name string) error
}
