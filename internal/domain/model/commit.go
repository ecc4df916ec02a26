package model

// Commit is a minimal view of a repository commit: just enough to identify
// the actor for validation purposes.
type Commit struct {
	SHA         string
	AuthorLogin string // GitHub login of the commit author; may be empty on degraded API responses.
	AuthorName  string // Git author name, used as a fallback when no login is attached.
}

// Actor returns the best available identity for the commit author: the
// GitHub login when present, otherwise the git author name.
func (c Commit) Actor() string {
	if c.AuthorLogin != "" {
		return c.AuthorLogin
	}
	return c.AuthorName
}

// CompareFile is one changed file in a commit comparison.
type CompareFile struct {
	Filename string
	Status   string // "added", "modified", "removed", etc.
}

// RepoContent is a directory entry from the repository contents API.
type RepoContent struct {
	Name string
	Path string
}

// WikiChange is one edited page from a wiki-update (gollum) event.
type WikiChange struct {
	PageTitle string
	Action    string // "created" or "edited".
	HTMLURL   string
}
