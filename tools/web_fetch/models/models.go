package models

// Result is the visible text extracted from one page. Text is empty
// when the page could not be rendered or carried no readable content.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
