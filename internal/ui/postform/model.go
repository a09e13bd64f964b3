package postform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/posts"
	"github.com/nhle/epikom-hub/internal/theme"
)

// PostCreatedMsg is dispatched when a new post is submitted via the form.
type PostCreatedMsg struct {
	Input model.PostInput
}

// PostUpdatedMsg is dispatched when an existing post is edited via the form.
type PostUpdatedMsg struct {
	ID    string
	Input model.PostInput
}

// PostFormCancelMsg is dispatched when the user cancels the form.
type PostFormCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title         string
	content       string
	platform      model.Platform
	scheduledDate string
	scheduledTime string
	notifyBefore  string
	hashtags      string
	notes         string
}

// Model is the Bubble Tea model for the scheduled post create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   string
	width    int
	height   int
}

// New creates a new post form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{platform: model.PlatformInstagram},
		width:  width,
		height: height,
	}
}

// StartCreate initializes the form for a new post scheduled on date.
func (m *Model) StartCreate(date time.Time) tea.Cmd {
	m.editMode = false
	m.editID = ""
	*m.fb = formBindings{
		platform:      model.PlatformInstagram,
		scheduledDate: date.Format("2006-01-02"),
		notifyBefore:  strconv.Itoa(model.DefaultNotifyBeforeHours),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form for editing an existing post.
func (m *Model) StartEdit(p model.SocialPost) tea.Cmd {
	m.editMode = true
	m.editID = p.ID
	*m.fb = formBindings{
		title:         p.Title,
		content:       deref(p.Content),
		platform:      p.Platform,
		scheduledDate: p.ScheduledDate,
		scheduledTime: deref(p.ScheduledTime),
		notifyBefore:  strconv.Itoa(p.NotifyBeforeHours),
		hashtags:      strings.Join(p.Hashtags, " "),
		notes:         deref(p.Notes),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Active reports whether a form is open.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the post form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		m.form = nil
		return m, func() tea.Msg { return PostFormCancelMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		submit := m.handleSubmit()
		m.form = nil
		return m, submit
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return PostFormCancelMsg{} }
	}

	return m, cmd
}

// View renders the post form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Post"
	if m.editMode {
		titleText = "Edit Post"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	platforms := make([]huh.Option[model.Platform], len(model.Platforms))
	for i, p := range model.Platforms {
		platforms[i] = huh.NewOption(posts.PlatformIcon(p)+" "+posts.PlatformLabel(p), p)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("Campaign teaser").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewSelect[model.Platform]().
				Title("Platform").
				Options(platforms...).
				Value(&m.fb.platform),
			huh.NewText().
				Title("Content").
				Placeholder("Caption...").
				Value(&m.fb.content),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Date").
				Placeholder("YYYY-MM-DD").
				Value(&m.fb.scheduledDate).
				Validate(validateDate),
			huh.NewInput().
				Title("Time").
				Placeholder("HH:MM (optional)").
				Value(&m.fb.scheduledTime).
				Validate(validateOptionalClock),
			huh.NewInput().
				Title("Remind hours before").
				Value(&m.fb.notifyBefore).
				Validate(validatePositive),
			huh.NewInput().
				Title("Hashtags").
				Placeholder("#launch #spring").
				Value(&m.fb.hashtags),
			huh.NewText().
				Title("Notes").
				Value(&m.fb.notes),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	fb := *m.fb
	title := strings.TrimSpace(fb.title)
	platform := fb.platform
	date := strings.TrimSpace(fb.scheduledDate)
	hours, _ := strconv.Atoi(strings.TrimSpace(fb.notifyBefore))

	in := model.PostInput{
		Title:             &title,
		Platform:          &platform,
		ScheduledDate:     &date,
		NotifyBeforeHours: &hours,
		Content:           optional(fb.content),
		ScheduledTime:     optional(fb.scheduledTime),
		Notes:             optional(fb.notes),
		Hashtags:          strings.Fields(fb.hashtags),
	}

	if m.editMode {
		id := m.editID
		return func() tea.Msg { return PostUpdatedMsg{ID: id, Input: in} }
	}
	return func() tea.Msg { return PostCreatedMsg{Input: in} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateDate(s string) error {
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateOptionalClock(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time format, use HH:MM")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number of hours")
	}
	return nil
}
