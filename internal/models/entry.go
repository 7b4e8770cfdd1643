package models

// Entry represents a link-registry entry in the database
type Entry struct {
	ID      int64
	Label   string // original spelling from the source file
	Target  string
	Quoted  bool
	Section string
	Tags    []string
}
