package wiki

// Links carries the relative and absolute links the REST API attaches to resources.
type Links struct {
	Self  string `json:"self,omitempty"`
	WebUI string `json:"webui,omitempty"`
	Next  string `json:"next,omitempty"`
}

// PageSummary is one entry of a content listing.
type PageSummary struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	Links  Links  `json:"_links"`
}

// PageList is one page of /rest/api/content results. A nil Results means the
// field was absent from the response.
type PageList struct {
	Results *[]PageSummary `json:"results"`
	Links   Links          `json:"_links"`
}

// Storage holds a body in the wiki's stored format.
type Storage struct {
	Value string `json:"value"`
}

// Body wraps the requested body representations.
type Body struct {
	Storage Storage `json:"storage"`
}

// User identifies an editor.
type User struct {
	PublicName string `json:"publicName"`
}

// Version describes the last edit of a page.
type Version struct {
	By           User   `json:"by"`
	When         string `json:"when"`
	FriendlyWhen string `json:"friendlyWhen"`
}

// Space is the owning space of a page.
type Space struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Links Links  `json:"_links"`
}

// Ancestor is one entry of a page's ancestor chain.
type Ancestor struct {
	Title string `json:"title"`
	Links Links  `json:"_links"`
}

// PageDetail is a page fetched with expand=body.storage,space,ancestors,version.
type PageDetail struct {
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Links     Links      `json:"_links"`
	Body      Body       `json:"body"`
	Version   Version    `json:"version"`
	Space     Space      `json:"space"`
	Ancestors []Ancestor `json:"ancestors"`
}

// StatusCurrent marks a live, published page.
const StatusCurrent = "current"
