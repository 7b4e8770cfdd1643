package models

// Section represents a comment header grouping entries in a registry file
type Section struct {
	ID       int64
	Title    string
	Position int
}

// Substitution represents a reST substitution definition kept with the registry
type Substitution struct {
	ID      int64
	Name    string
	Text    string
	Section string
}
