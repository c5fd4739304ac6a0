package tools

// Tool names and schemas shared by the MCP server and any client that
// wants to advertise these tools itself.

const (
	SearchToolName        = "web_search"
	SearchToolDescription = "Search the web for information. Returns result titles, snippets, and source links."

	FetchToolName        = "fetch_url"
	FetchToolDescription = "Fetch a web page and return its content as text."
)

// SearchArgs are the arguments of the web_search tool.
type SearchArgs struct {
	Query      string `json:"query"`
	Count      int    `json:"count,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	Structured bool   `json:"structured,omitempty"`
}

// FetchArgs are the arguments of the fetch_url tool.
type FetchArgs struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt,omitempty"`
}
