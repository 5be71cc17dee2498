package presenter

const (
	DefaultHeading    = "Voice Expense Entry"
	DefaultSubheading = "Add expenses by speaking naturally, e.g. \"I spent 300 rs yesterday on sandwich\"."
)

// PageView is the page shell around the panel.
type PageView struct {
	Heading    string    `json:"heading"`
	Subheading string    `json:"subheading"`
	Panel      PanelView `json:"panel"`
}

// Page composes heading text with a Panel.
type Page struct {
	Heading    string
	Subheading string
	Panel      *Panel
}

func NewPage(panel *Panel) *Page {
	return &Page{Heading: DefaultHeading, Subheading: DefaultSubheading, Panel: panel}
}

func (p *Page) View() PageView {
	return PageView{Heading: p.Heading, Subheading: p.Subheading, Panel: p.Panel.View()}
}
