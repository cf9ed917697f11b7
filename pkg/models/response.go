package models

// Mode selects between direct-answer Chat Mode and the two-stage Agent Mode.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeAgent Mode = "agent"
)

// Stage is meaningful only while Mode == ModeAgent.
type Stage string

const (
	StageHIL      Stage = "hil"
	StageResearch Stage = "research"
)

// ThinkingStep is an observable record of one completed tool invocation,
// emitted once per completed call and never re-emitted (spec §3).
type ThinkingStep struct {
	Step      int      `json:"step"`
	Tool      string   `json:"tool"`
	Input     any      `json:"input"`
	Output    string   `json:"output"`
	Success   bool     `json:"success"`
	Reasoning string   `json:"reasoning,omitempty"`
	URLs      []string `json:"urls,omitempty"`
	HasCode   bool     `json:"has_code"`
	HasImage  bool     `json:"has_image"`
}

// Source is a citation-target record produced only by the web_search tool.
// Index is 1-based and stable within a single response.
type Source struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Age       string `json:"age,omitempty"`
	CachePath string `json:"cache_path,omitempty"`
}

// Artifact is a large self-contained HTML document produced only in
// Agent/Research mode's final-answer phase.
type Artifact struct {
	Type          string  `json:"type"` // always "html_blog"
	Title         string  `json:"title"`
	HTMLContent   string  `json:"html_content"`
	WorkspacePath string  `json:"workspace_path"`
	SizeKB        float64 `json:"size_kb"`
}

// ChatResponse is the envelope closing each turn.
type ChatResponse struct {
	ResponseID       string         `json:"response_id"`
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id"`
	UserMessage      string         `json:"user_message"`
	AssistantMessage string         `json:"assistant_message"`
	Mode             Mode           `json:"mode"`
	ThinkingSteps    []ThinkingStep `json:"thinking_steps,omitempty"`
	Sources          []Source       `json:"sources,omitempty"`
	UsedTools        bool           `json:"used_tools"`
	HasCode          bool           `json:"has_code"`
	HasWebResults    bool           `json:"has_web_results"`
	TotalTimeMS      int64          `json:"total_time_ms"`
	Model            string         `json:"model"`
	Temperature      float64        `json:"temperature"`
	PromptTokens     int            `json:"prompt_tokens"`
	Artifact         *Artifact      `json:"artifact,omitempty"`
}
