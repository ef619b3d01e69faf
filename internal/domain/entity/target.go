package entity

type TargetType string

const (
	TargetTypePage           TargetType = "page"
	TargetTypeServiceWorker  TargetType = "service_worker"
	TargetTypeSharedWorker   TargetType = "shared_worker"
	TargetTypeBackgroundPage TargetType = "background_page"
	TargetTypeIframe         TargetType = "iframe"
	TargetTypeBrowser        TargetType = "browser"
)

// TargetInfo describes a debuggable target as the browser lists it.
type TargetInfo struct {
	ID    string     `json:"id"`
	Type  TargetType `json:"type"`
	URL   string     `json:"url"`
	Title string     `json:"title"`
}

func (t TargetInfo) IsPage() bool {
	return t.Type == TargetTypePage
}

// TargetSummary is a read-only view of an attached target.
type TargetSummary struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	ToolCount int    `json:"toolCount"`
}
