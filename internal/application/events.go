package application

// Webhook payload shapes, decoded strictly according to the event kind
// carried in the delivery header. Only the fields the dispatcher consumes
// are declared.

type repositoryRef struct {
	FullName string `json:"full_name"`
}

type userRef struct {
	Login string `json:"login"`
}

type pushEvent struct {
	Ref        string        `json:"ref"`
	Repository repositoryRef `json:"repository"`
}

type branchRef struct {
	Name string `json:"name"`
}

type statusEvent struct {
	SHA        string        `json:"sha"`
	State      string        `json:"state"`
	Context    string        `json:"context"`
	Branches   []branchRef   `json:"branches"`
	Repository repositoryRef `json:"repository"`
}

type pullRequestEvent struct {
	Action      string        `json:"action"`
	Repository  repositoryRef `json:"repository"`
	PullRequest struct {
		Number  int     `json:"number"`
		Merged  bool    `json:"merged"`
		HTMLURL string  `json:"html_url"`
		User    userRef `json:"user"`
		Head    struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
}

type issueCommentEvent struct {
	Repository repositoryRef `json:"repository"`
	Issue      struct {
		Number int `json:"number"`
		// Present only when the comment is attached to a pull request.
		PullRequest *struct {
			URL string `json:"url"`
		} `json:"pull_request"`
	} `json:"issue"`
}

type gollumEvent struct {
	Repository repositoryRef `json:"repository"`
	Sender     userRef       `json:"sender"`
	Pages      []struct {
		Title   string `json:"title"`
		Action  string `json:"action"`
		HTMLURL string `json:"html_url"`
	} `json:"pages"`
}
