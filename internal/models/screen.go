package models

// Screen is one HMI screen identified in a document. ScreenName is its
// identity and must be unique within a workflow.
type Screen struct {
	ScreenID      string `json:"screenId"`
	ScreenName    string `json:"screenName"`
	ScreenPurpose string `json:"screenPurpose"`
	ScreenType    string `json:"screenType,omitempty"`
}

// ScreenList is the result of screen identification.
type ScreenList struct {
	TotalScreens int      `json:"totalScreens"`
	ScreenList   []Screen `json:"screenList"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// Names returns the screen names in list order.
func (l ScreenList) Names() []string {
	names := make([]string, len(l.ScreenList))
	for i, s := range l.ScreenList {
		names[i] = s.ScreenName
	}
	return names
}
