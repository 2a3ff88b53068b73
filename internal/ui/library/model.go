package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/installer"
	"github.com/bnema/chfctl/internal/ui/styles"
)

// SnapshotReason labels snapshots taken from the library view
const SnapshotReason = "Manual"

type viewState int

const (
	viewList viewState = iota
	viewInstall
	viewConfirmRemove
	viewProgress
	viewInfo
)

// characterItem implements list.Item for installed characters
type characterItem struct {
	c characters.Character
}

func (i characterItem) Title() string {
	return i.c.Name
}

func (i characterItem) Description() string {
	var parts []string
	parts = append(parts, i.c.LocalFilename)
	if i.c.Author != "" && i.c.Author != characters.UnknownAuthor {
		parts = append(parts, "by "+i.c.Author)
	}
	if !i.c.InstalledAt.IsZero() {
		parts = append(parts, i.c.InstalledAt.Format("2006-01-02"))
	}
	if len(i.c.Tags) > 0 {
		parts = append(parts, styles.FormatTags(i.c.Tags))
	}
	return strings.Join(parts, " | ")
}

func (i characterItem) FilterValue() string {
	return i.c.Name + " " + i.c.Author + " " + i.c.LocalFilename
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	Install  key.Binding
	Remove   key.Binding
	Snapshot key.Binding
	Restore  key.Binding
	Info     key.Binding
	Repair   key.Binding
	Quit     key.Binding
	Back     key.Binding
	Confirm  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Install:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "install url")),
		Remove:   key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove")),
		Snapshot: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snapshot")),
		Restore:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "restore latest")),
		Info:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "info")),
		Repair:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repair")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Confirm:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
	}
}

// Model is the TUI over the installed characters
type Model struct {
	ctx       context.Context
	repo      *characters.Repository
	installer *installer.Installer
	backups   *backup.Manager

	list      list.Model
	textInput textinput.Model
	spinner   spinner.Model
	keys      KeyMap

	state         viewState
	width, height int

	selected    *characters.Character
	statusMsg   string
	errorMsg    string
	progressMsg string
}

// NewModel creates the library TUI
func NewModel(ctx context.Context, repo *characters.Repository, inst *installer.Installer, backups *backup.Manager) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Primary).
		BorderForeground(styles.Primary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.Muted).
		BorderForeground(styles.Primary)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Installed Characters"
	l.Styles.Title = styles.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	ti := textinput.New()
	ti.Placeholder = "https://example.com/characters/zara.chf"
	ti.CharLimit = 512
	ti.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	return Model{
		ctx:       ctx,
		repo:      repo,
		installer: inst,
		backups:   backups,
		list:      l,
		textInput: ti,
		spinner:   s,
		keys:      DefaultKeyMap(),
		state:     viewList,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.spinner.Tick)
}

type charactersLoadedMsg struct {
	list []characters.Character
}

type errMsg struct {
	err error
}

type operationCompleteMsg struct {
	success bool
	message string
}

func (m Model) load() tea.Msg {
	list, err := m.repo.List()
	if err != nil {
		return errMsg{err}
	}
	characters.Sort(list, characters.SortByName)
	return charactersLoadedMsg{list}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h, v := styles.App.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-2)
		return m, nil

	case tea.KeyMsg:
		if m.state != viewInstall && key.Matches(msg, m.keys.Quit) && m.list.FilterState() != list.Filtering {
			if m.state == viewList {
				return m, tea.Quit
			}
			m.state = viewList
			m.errorMsg, m.statusMsg = "", ""
			return m, nil
		}

		switch m.state {
		case viewList:
			return m.updateList(msg)
		case viewInstall:
			return m.updateInstall(msg)
		case viewConfirmRemove:
			return m.updateConfirmRemove(msg)
		case viewInfo:
			return m.updateInfo(msg)
		}

	case charactersLoadedMsg:
		items := make([]list.Item, len(msg.list))
		for i, c := range msg.list {
			items[i] = characterItem{c: c}
		}
		m.list.SetItems(items)
		m.list.Title = fmt.Sprintf("Installed Characters (%d)", len(msg.list))
		return m, nil

	case errMsg:
		m.errorMsg = msg.err.Error()
		m.state = viewList
		return m, nil

	case operationCompleteMsg:
		if msg.success {
			m.statusMsg, m.errorMsg = msg.message, ""
		} else {
			m.errorMsg, m.statusMsg = msg.message, ""
		}
		m.state = viewList
		return m, m.load

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) selectedItem() (characters.Character, bool) {
	item, ok := m.list.SelectedItem().(characterItem)
	return item.c, ok
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Install):
		m.state = viewInstall
		m.textInput.Focus()
		m.textInput.SetValue("")
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Remove):
		if c, ok := m.selectedItem(); ok {
			m.selected = &c
			m.state = viewConfirmRemove
		}
		return m, nil

	case key.Matches(msg, m.keys.Snapshot):
		if c, ok := m.selectedItem(); ok {
			m.state = viewProgress
			m.progressMsg = "Snapshotting " + c.Name + "..."
			return m, m.snapshot(c)
		}
		return m, nil

	case key.Matches(msg, m.keys.Restore):
		if c, ok := m.selectedItem(); ok {
			m.state = viewProgress
			m.progressMsg = "Restoring " + c.Name + "..."
			return m, m.restore(c)
		}
		return m, nil

	case key.Matches(msg, m.keys.Info):
		if c, ok := m.selectedItem(); ok {
			m.selected = &c
			m.state = viewInfo
		}
		return m, nil

	case key.Matches(msg, m.keys.Repair):
		m.state = viewProgress
		m.progressMsg = "Repairing character folder..."
		return m, m.repair
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInstall(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		url := strings.TrimSpace(m.textInput.Value())
		if url == "" {
			return m, nil
		}
		m.state = viewProgress
		m.progressMsg = "Downloading character..."
		return m, m.installURL(url)

	case tea.KeyEsc, tea.KeyCtrlC:
		m.state = viewList
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) updateConfirmRemove(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		if m.selected != nil {
			m.state = viewProgress
			m.progressMsg = "Removing " + m.selected.Name + "..."
			return m, m.remove(*m.selected)
		}
		m.state = viewList
		return m, nil

	case key.Matches(msg, m.keys.Back), msg.String() == "n":
		m.state = viewList
		m.selected = nil
		return m, nil
	}
	return m, nil
}

func (m Model) updateInfo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) || msg.Type == tea.KeyEnter {
		m.state = viewList
		m.selected = nil
	}
	return m, nil
}

// Commands

func (m Model) installURL(url string) tea.Cmd {
	return func() tea.Msg {
		c, err := m.installer.InstallFromURL(m.ctx, url)
		if err != nil {
			return operationCompleteMsg{false, err.Error()}
		}
		return operationCompleteMsg{true, fmt.Sprintf("Installed %s as %s", c.Name, c.LocalFilename)}
	}
}

func (m Model) remove(c characters.Character) tea.Cmd {
	return func() tea.Msg {
		removed, err := m.installer.Uninstall(&c, true)
		if err != nil {
			return operationCompleteMsg{false, err.Error()}
		}
		if !removed {
			return operationCompleteMsg{false, c.Name + " was not found on disk"}
		}
		return operationCompleteMsg{true, c.Name + " removed (snapshot created)"}
	}
}

func (m Model) snapshot(c characters.Character) tea.Cmd {
	return func() tea.Msg {
		name, err := m.backups.CreateSnapshot(m.repo.Path(c.LocalFilename), SnapshotReason)
		if err != nil {
			return operationCompleteMsg{false, err.Error()}
		}
		if name == "" {
			return operationCompleteMsg{false, "Nothing to snapshot"}
		}
		return operationCompleteMsg{true, "Snapshot " + name + " created"}
	}
}

func (m Model) restore(c characters.Character) tea.Cmd {
	return func() tea.Msg {
		restored, err := m.backups.RestoreLatest(characters.Stem(c.LocalFilename), m.repo.Dir())
		if err != nil {
			return operationCompleteMsg{false, err.Error()}
		}
		return operationCompleteMsg{true, "Restored " + restored}
	}
}

func (m Model) repair() tea.Msg {
	result, err := m.repo.Repair()
	if err != nil {
		return operationCompleteMsg{false, err.Error()}
	}
	if result.IssuesFound() == 0 {
		return operationCompleteMsg{true, "No issues found"}
	}
	return operationCompleteMsg{true, fmt.Sprintf("Fixed %d issue(s)", result.IssuesFound())}
}

// View renders the UI
func (m Model) View() string {
	var content string

	switch m.state {
	case viewInstall:
		content = m.viewInstall()
	case viewConfirmRemove:
		content = m.viewConfirmRemove()
	case viewProgress:
		content = m.spinner.View() + " " + m.progressMsg
	case viewInfo:
		content = m.viewInfo()
	default:
		content = m.viewList()
	}

	return styles.App.Render(content)
}

func (m Model) viewList() string {
	var s strings.Builder

	s.WriteString(m.list.View())

	if m.errorMsg != "" {
		s.WriteString("\n" + styles.FormatError(m.errorMsg))
	} else if m.statusMsg != "" {
		s.WriteString("\n" + styles.FormatSuccess(m.statusMsg))
	}

	s.WriteString("\n" + styles.Help.Render("i:install url  d:remove  s:snapshot  R:restore  r:repair  q:quit"))
	return s.String()
}

func (m Model) viewInstall() string {
	var s strings.Builder
	s.WriteString(styles.Title.Render("Install From URL") + "\n\n")
	s.WriteString("Enter a direct .chf download URL:\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(styles.Help.Render("enter:install  esc:cancel"))
	return s.String()
}

func (m Model) viewConfirmRemove() string {
	name := ""
	if m.selected != nil {
		name = m.selected.Name
	}

	var s strings.Builder
	s.WriteString(styles.Title.Render("Remove Character") + "\n\n")
	fmt.Fprintf(&s, "Are you sure you want to remove %s?\n", styles.Highlighted.Render(name))
	s.WriteString("A snapshot will be created.\n\n")
	s.WriteString(styles.Help.Render("y:confirm  n/esc:cancel"))
	return s.String()
}

func (m Model) viewInfo() string {
	if m.selected == nil {
		return "No character selected"
	}
	c := m.selected

	var s strings.Builder
	s.WriteString(styles.Title.Render("Character Info") + "\n\n")
	s.WriteString(styles.CharacterName.Render(c.Name) + "\n\n")

	fmt.Fprintf(&s, "File:      %s\n", c.LocalFilename)
	if c.Author != "" {
		fmt.Fprintf(&s, "Author:    %s\n", c.Author)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(&s, "Tags:      %s\n", styles.FormatTags(c.Tags))
	}
	if !c.InstalledAt.IsZero() {
		fmt.Fprintf(&s, "Installed: %s\n", c.InstalledAt.Format("2006-01-02 15:04"))
	}
	if c.DownloadURL != "" {
		fmt.Fprintf(&s, "Source:    %s\n", c.DownloadURL)
	}
	if c.Description != "" {
		fmt.Fprintf(&s, "\n%s\n", c.Description)
	}

	if history, err := m.backups.ListSnapshots(characters.Stem(c.LocalFilename)); err == nil && len(history) > 0 {
		fmt.Fprintf(&s, "\nSnapshots: %d (latest %s, %s)\n", len(history), history[0].Timestamp, history[0].Reason)
	}

	s.WriteString("\n" + styles.Help.Render("esc/enter:back"))
	return s.String()
}
