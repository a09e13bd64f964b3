// Package files lists a project's files and uploads local ones.
package files

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/apperr"
	svc "github.com/nhle/epikom-hub/internal/files"
	"github.com/nhle/epikom-hub/internal/keys"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/theme"
)

// Source manages project files. *files.Service satisfies it.
type Source interface {
	List(ctx context.Context, projectID string) ([]model.FileRecord, error)
	Upload(ctx context.Context, uploader model.Profile, projectID string, in svc.Upload) (*model.FileRecord, error)
	Delete(ctx context.Context, id string) error
	DownloadURL(storagePath string) (string, error)
}

// LoadedMsg carries the project's files.
type LoadedMsg struct {
	ProjectID string
	Files     []model.FileRecord
	Err       error
}

// ActionDoneMsg reports a finished upload or delete.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// Model is the project files view.
type Model struct {
	source    Source
	actor     model.Profile
	projectID string
	project   string
	keys      *keys.KeyMap

	files  []model.FileRecord
	cursor int
	link   string
	status string
	err    error

	width  int
	height int
}

// New creates a files view for actor.
func New(source Source, actor model.Profile, k *keys.KeyMap, width, height int) Model {
	return Model{source: source, actor: actor, keys: k, width: width, height: height}
}

// SetProject switches the view to a project and loads its files.
func (m *Model) SetProject(projectID, projectName string) tea.Cmd {
	m.projectID = projectID
	m.project = projectName
	m.files, m.cursor = nil, 0
	m.link, m.status, m.err = "", "", nil
	return m.load()
}

func (m Model) load() tea.Cmd {
	src, id := m.source, m.projectID
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		list, err := src.List(context.Background(), id)
		return LoadedMsg{ProjectID: id, Files: list, Err: err}
	}
}

// UploadPath returns a command uploading the local file at p to the
// current project.
func (m Model) UploadPath(p, description string) tea.Cmd {
	src, actor, id := m.source, m.actor, m.projectID
	if id == "" {
		return func() tea.Msg {
			return ActionDoneMsg{Action: "Upload", Err: apperr.Invalid("project", "no project selected")}
		}
	}
	return func() tea.Msg {
		f, err := os.Open(p)
		if err != nil {
			return ActionDoneMsg{Action: "Upload", Err: err}
		}
		defer f.Close()

		in := svc.Upload{
			Name:     filepath.Base(p),
			MimeType: mimeType(p),
			Body:     f,
		}
		if d := strings.TrimSpace(description); d != "" {
			in.Description = &d
		}
		_, err = src.Upload(context.Background(), actor, id, in)
		return ActionDoneMsg{Action: "Upload", Err: err}
	}
}

func mimeType(p string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Update handles messages for the files view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.ProjectID != m.projectID {
			return m, nil
		}
		m.err = msg.Err
		if msg.Err == nil {
			m.files = msg.Files
		}
		m.cursor = min(m.cursor, max(len(m.files)-1, 0))
		return m, nil

	case ActionDoneMsg:
		m.status = ""
		if msg.Err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.Action, msg.Err)
		}
		return m, m.load()

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.files)-1 {
			m.cursor++
			m.link = ""
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.link = ""
		}
	case key.Matches(msg, m.keys.OpenURL):
		f, ok := m.selected()
		if !ok {
			return m, nil
		}
		u, err := m.source.DownloadURL(f.StoragePath)
		if err != nil {
			m.status = "Could not sign link: " + err.Error()
			return m, nil
		}
		m.link = u
	case key.Matches(msg, m.keys.Delete):
		f, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !CanDelete(m.actor, f) {
			m.status = "Only admins or the uploader can delete a file."
			return m, nil
		}
		src, id := m.source, f.ID
		return m, func() tea.Msg {
			return ActionDoneMsg{Action: "Delete", Err: src.Delete(context.Background(), id)}
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	}
	return m, nil
}

// CanDelete reports whether actor may delete f.
func CanDelete(actor model.Profile, f model.FileRecord) bool {
	return actor.IsAdmin() || (f.UploadedBy != nil && *f.UploadedBy == actor.ID)
}

func (m Model) selected() (model.FileRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.files) {
		return model.FileRecord{}, false
	}
	return m.files[m.cursor], true
}

// View renders the files view.
func (m Model) View() string {
	title := "Files"
	if m.project != "" {
		title += " · " + m.project
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title) + "\n\n")

	switch {
	case m.projectID == "":
		b.WriteString(theme.DimmedStyle.Render("No project selected. Press p to pick one."))
	case m.err != nil:
		b.WriteString(theme.ErrorStyle.Render("Could not load files: " + m.err.Error()))
	case len(m.files) == 0:
		b.WriteString(theme.DimmedStyle.Render("No files yet. Use :upload <path> to add one."))
	}

	for i, f := range m.files {
		line := fmt.Sprintf("%s %s  %s", svc.Icon(f.MimeType), f.OriginalName,
			theme.DimmedStyle.Render(svc.FormatSize(f.Size)+" · "+f.CreatedAt.Format("Jan 2 15:04")))
		if f.Description != nil {
			line += "\n   " + *f.Description
		}
		if i == m.cursor {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.link != "" {
		b.WriteString("\n" + theme.HelpStyle.Render("Link: ") + m.link)
	}
	if m.status != "" {
		b.WriteString("\n" + theme.ErrorStyle.Render(m.status))
	}
	return lipgloss.NewStyle().Padding(0, 1).Width(m.width).Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
