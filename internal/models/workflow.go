package models

// WorkflowDiagram describes every screen and the navigation between them.
// SystemOverview.TotalScreens always equals len(ScreenAnalysis).
type WorkflowDiagram struct {
	SystemOverview          SystemOverview          `json:"systemOverview"`
	ScreenAnalysis          []ScreenAnalysis        `json:"screenAnalysis"`
	NavigationFlow          NavigationFlow          `json:"navigationFlow"`
	TechnicalSpecifications TechnicalSpecifications `json:"technicalSpecifications"`
	ImplementationNotes     []string                `json:"implementationNotes"`
	Source                  string                  `json:"source"` // "model" or "template"
}

// SystemOverview summarises the system the screens belong to.
type SystemOverview struct {
	SystemName      string `json:"systemName"`
	SystemType      string `json:"systemType"`
	TotalScreens    int    `json:"totalScreens"`
	PrimaryFunction string `json:"primaryFunction"`
}

// ScreenAnalysis is the elaborated description of a single screen.
type ScreenAnalysis struct {
	ScreenName        string     `json:"screenName"`
	Purpose           string     `json:"purpose"`
	KeyElements       []string   `json:"keyElements"`
	Functionality     []string   `json:"functionality"`
	Navigation        Navigation `json:"navigation"`
	Behavior          string     `json:"behavior"`
	DataVisualization string     `json:"dataVisualization"`
	UserRoles         []string   `json:"userRoles"`
}

// Navigation lists the screens reachable from a screen.
type Navigation struct {
	Previous string   `json:"previous,omitempty"`
	Next     string   `json:"next,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// NavigationFlow holds the textual diagram and the screen transitions.
type NavigationFlow struct {
	Diagram           string       `json:"diagram"`
	ScreenTransitions []Transition `json:"screenTransitions"`
}

// Transition is a directed navigation edge between two screen names.
type Transition struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Trigger     string `json:"trigger"`
	Description string `json:"description"`
}

// TechnicalSpecifications captures platform-level notes for the HMI.
type TechnicalSpecifications struct {
	Platform       string   `json:"platform"`
	Resolution     string   `json:"resolution"`
	UpdateRate     string   `json:"updateRate"`
	Communication  []string `json:"communication"`
	SecurityLevels []string `json:"securityLevels"`
}
